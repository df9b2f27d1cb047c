package access

import (
	"net/url"
	"strings"
	"time"

	agerr "github.com/StricklySoft/accessguard/pkg/errors"
)

// DefaultCertsPath is where an Access team domain publishes its signing
// keys.
const DefaultCertsPath = "/cdn-cgi/access/certs"

// Config identifies the deployment tokens must be minted for. It is
// immutable once built and is shared by pointer between verifications.
type Config struct {
	issuer    string
	audience  string
	certsPath string
}

// NewConfig returns a Config for the given issuer (the team domain URL,
// e.g. "https://acme.cloudflareaccess.com") and audience tag.
func NewConfig(issuer, audience string) *Config {
	return &Config{issuer: issuer, audience: audience, certsPath: DefaultCertsPath}
}

// Issuer returns the issuer verbatim. A token's iss claim must equal it
// exactly.
func (c *Config) Issuer() string { return c.issuer }

// Audience returns the audience tag a token's aud claim must contain.
func (c *Config) Audience() string { return c.audience }

// TeamName returns the first label of the issuer host: one leading
// "https://" or "http://" is dropped, then everything from the first "."
// on. An issuer without a "." is returned whole after the scheme is
// dropped.
func (c *Config) TeamName() string {
	name := c.issuer
	if rest, ok := strings.CutPrefix(name, "https://"); ok {
		name = rest
	} else if rest, ok := strings.CutPrefix(name, "http://"); ok {
		name = rest
	}
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}

// CertsURL returns the URL of the issuer's published key set.
func (c *Config) CertsURL() string {
	return strings.TrimRight(c.issuer, "/") + c.certsPath
}

// Settings is the loadable form of a Config, meant for config.Loader with
// the "ACCESS" env prefix.
type Settings struct {
	// Issuer is the team domain URL, e.g. https://acme.cloudflareaccess.com.
	Issuer string `json:"issuer" yaml:"issuer" env:"ISSUER" required:"true"`

	// Audience is the application audience (AUD) tag.
	Audience string `json:"audience" yaml:"audience" env:"AUDIENCE" required:"true"`

	// CertsPath is appended to Issuer to locate the key set document.
	CertsPath string `json:"certs_path" yaml:"certs_path" env:"CERTS_PATH" envDefault:"/cdn-cgi/access/certs"`

	// FetchTimeout bounds a single key set fetch.
	FetchTimeout time.Duration `json:"fetch_timeout" yaml:"fetch_timeout" env:"FETCH_TIMEOUT" envDefault:"10s"`
}

// Validate checks that the settings describe a usable deployment.
func (s *Settings) Validate() error {
	u, err := url.Parse(s.Issuer)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return agerr.Newf(agerr.CodeValidation,
			"access: issuer %q must be an absolute http(s) URL", s.Issuer)
	}
	if strings.TrimSpace(s.Audience) == "" {
		return agerr.New(agerr.CodeValidation, "access: audience must not be empty")
	}
	if s.CertsPath != "" && !strings.HasPrefix(s.CertsPath, "/") {
		return agerr.Newf(agerr.CodeValidation,
			"access: certs path %q must start with /", s.CertsPath)
	}
	if s.FetchTimeout < 0 {
		return agerr.New(agerr.CodeValidation, "access: fetch timeout must be non-negative")
	}
	return nil
}

// Config builds the immutable Config described by s.
func (s *Settings) Config() *Config {
	cfg := NewConfig(s.Issuer, s.Audience)
	if s.CertsPath != "" {
		cfg.certsPath = s.CertsPath
	}
	return cfg
}
