// Package edgetest runs a fake identity edge for tests: an httptest server
// publishing an RSA key set at the Access certs path, plus helpers that
// sign tokens with the matching private keys.
//
//	edge := edgetest.New(t, "k1")
//	tok := edge.Sign(t, "k1", edge.Claims("aud-123", "user-1"))
package edgetest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// CertsPath is where the edge serves its key set.
const CertsPath = "/cdn-cgi/access/certs"

// keyBits matches the key size production edges publish.
const keyBits = 2048

// JWK is one published key.
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg,omitempty"`
	Use string `json:"use,omitempty"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

// Edge is a fake identity edge. It is safe for concurrent use.
type Edge struct {
	server *httptest.Server

	mu        sync.Mutex
	keys      map[string]*rsa.PrivateKey
	published []string
	extra     []JWK
	status    int

	fetches atomic.Int64
}

// New starts an edge publishing a fresh key for each kid. The server is
// closed when the test ends.
func New(t testing.TB, kids ...string) *Edge {
	t.Helper()
	e := &Edge{keys: make(map[string]*rsa.PrivateKey), status: http.StatusOK}
	for _, kid := range kids {
		e.AddKey(t, kid)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(CertsPath, e.serveCerts)
	e.server = httptest.NewServer(mux)
	t.Cleanup(e.server.Close)
	return e
}

// URL is the edge's base URL, usable as an issuer.
func (e *Edge) URL() string { return e.server.URL }

// Fetches counts key set requests served so far.
func (e *Edge) Fetches() int { return int(e.fetches.Load()) }

// AddKey generates and publishes a key under kid.
func (e *Edge) AddKey(t testing.TB, kid string) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	require.NoError(t, err, "generate RSA key")

	e.mu.Lock()
	defer e.mu.Unlock()
	e.keys[kid] = key
	e.published = append(e.published, kid)
	return key
}

// AddUnpublishedKey generates a key the edge can sign with but does not
// publish.
func (e *Edge) AddUnpublishedKey(t testing.TB, kid string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	require.NoError(t, err, "generate RSA key")

	e.mu.Lock()
	defer e.mu.Unlock()
	e.keys[kid] = key
}

// Publish sets the published kids, in order. Kids must have been added.
func (e *Edge) Publish(kids ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.published = append([]string(nil), kids...)
}

// PublishExtra adds raw entries, such as EC keys, after the RSA keys.
func (e *Edge) PublishExtra(keys ...JWK) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.extra = append(e.extra, keys...)
}

// FailWith makes the certs endpoint answer status. http.StatusOK restores
// normal service.
func (e *Edge) FailWith(status int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = status
}

// PublicJWK returns the published form of kid's key.
func (e *Edge) PublicJWK(kid string) JWK {
	e.mu.Lock()
	defer e.mu.Unlock()
	return rsaJWK(kid, &e.keys[kid].PublicKey)
}

// Claims returns a valid claim set for audience and subject, expiring in
// one minute.
func (e *Edge) Claims(audience, subject string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":            e.URL(),
		"aud":            []string{audience},
		"sub":            subject,
		"email":          subject + "@example.com",
		"type":           "app",
		"identity_nonce": uuid.NewString(),
		"country":        "US",
		"iat":            now.Unix(),
		"nbf":            now.Unix(),
		"exp":            now.Add(time.Minute).Unix(),
	}
}

// Sign returns claims signed RS256 with kid's key.
func (e *Edge) Sign(t testing.TB, kid string, claims jwt.MapClaims) string {
	t.Helper()
	e.mu.Lock()
	key, ok := e.keys[kid]
	e.mu.Unlock()
	require.True(t, ok, "unknown kid %q", kid)

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	signed, err := tok.SignedString(key)
	require.NoError(t, err, "sign token")
	return signed
}

// Client returns an HTTP client that sends every request to this edge
// whatever its host, so a Config can use a production-looking issuer.
func (e *Edge) Client() *http.Client {
	target, _ := url.Parse(e.server.URL)
	return &http.Client{
		Timeout: 5 * time.Second,
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			r = r.Clone(r.Context())
			r.URL.Scheme = target.Scheme
			r.URL.Host = target.Host
			r.Host = target.Host
			return http.DefaultTransport.RoundTrip(r)
		}),
	}
}

func (e *Edge) serveCerts(w http.ResponseWriter, _ *http.Request) {
	e.fetches.Add(1)

	e.mu.Lock()
	status := e.status
	doc := struct {
		Keys []JWK `json:"keys"`
	}{Keys: make([]JWK, 0, len(e.published)+len(e.extra))}
	for _, kid := range e.published {
		doc.Keys = append(doc.Keys, rsaJWK(kid, &e.keys[kid].PublicKey))
	}
	doc.Keys = append(doc.Keys, e.extra...)
	e.mu.Unlock()

	if status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}

func rsaJWK(kid string, pub *rsa.PublicKey) JWK {
	return JWK{
		Kty: "RSA",
		Kid: kid,
		Alg: "RS256",
		Use: "sig",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
