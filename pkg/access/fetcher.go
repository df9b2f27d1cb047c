package access

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	agerr "github.com/StricklySoft/accessguard/pkg/errors"
)

// maxKeySetSize bounds the key set document read from the issuer.
const maxKeySetSize = 1 << 20

// DefaultFetchTimeout bounds a fetch made by a default HTTPFetcher.
const DefaultFetchTimeout = 10 * time.Second

// Fetcher retrieves the current key set published for cfg's issuer.
// Every failure is reported as a single error; callers do not retry.
type Fetcher interface {
	Fetch(ctx context.Context, cfg *Config) (*KeySet, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, cfg *Config) (*KeySet, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, cfg *Config) (*KeySet, error) {
	return f(ctx, cfg)
}

// HTTPClient is the subset of *http.Client used by HTTPFetcher.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPFetcher fetches the key set document from cfg.CertsURL().
type HTTPFetcher struct {
	client HTTPClient
	now    func() time.Time
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher returns an HTTPFetcher using client. A nil client means an
// *http.Client with DefaultFetchTimeout.
func NewHTTPFetcher(client HTTPClient) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	return &HTTPFetcher{client: client, now: time.Now}
}

// jwksDocument is the published key set. Entries carry more fields than
// SigningKey (alg, use, x5c); they are ignored.
type jwksDocument struct {
	Keys []SigningKey `json:"keys"`
}

// Fetch GETs the key set and keeps the RSA entries that have a kid and
// decodable key material. A document with no such entry is an error.
func (f *HTTPFetcher) Fetch(ctx context.Context, cfg *Config) (*KeySet, error) {
	url := cfg.CertsURL()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, keyRetrievalError(err, "failed to create key set request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, keyRetrievalError(err, "key set request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, agerr.Newf(agerr.CodeKeyRetrieval,
			"access: key set endpoint returned status %d", resp.StatusCode).
			WithDetail("url", url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeySetSize))
	if err != nil {
		return nil, keyRetrievalError(err, "failed to read key set response")
	}

	var doc jwksDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, keyRetrievalError(err, "failed to parse key set document")
	}

	keys := make([]SigningKey, 0, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.KeyID == "" {
			continue
		}
		if _, err := k.PublicKey(); err != nil {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil, agerr.New(agerr.CodeKeyRetrieval,
			"access: key set document contains no usable RSA keys").
			WithDetail("url", url)
	}

	return &KeySet{Keys: keys, FetchedAt: f.now()}, nil
}

func keyRetrievalError(err error, msg string) *agerr.Error {
	return agerr.Wrap(err, agerr.CodeKeyRetrieval, fmt.Sprintf("access: %s", msg))
}
