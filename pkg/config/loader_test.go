package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/accessguard/internal/testutil"
	agerr "github.com/StricklySoft/accessguard/pkg/errors"
)

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

type edgeSettings struct {
	Issuer   string        `env:"ISSUER" yaml:"issuer" json:"issuer" required:"true"`
	Audience string        `env:"AUDIENCE" yaml:"audience" json:"audience"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"10s" yaml:"timeout" json:"timeout"`
	Debug    bool          `env:"DEBUG" envDefault:"false" yaml:"debug" json:"debug"`
	Retries  int32         `env:"RETRIES" envDefault:"2" yaml:"retries" json:"retries"`
	Groups   []string      `env:"GROUPS" envDefault:"admins, staff" yaml:"groups" json:"groups"`
	Store    storeSettings `env:"STORE" yaml:"store" json:"store"`
}

type storeSettings struct {
	Addr string `env:"ADDR" envDefault:"localhost:6379" yaml:"addr" json:"addr"`
	DB   int    `env:"DB" yaml:"db" json:"db"`
}

type checkedSettings struct {
	Audience string `env:"AUDIENCE"`
}

func (c *checkedSettings) Validate() error {
	if c.Audience == "forbidden" {
		return agerr.Validation("config: audience is forbidden")
	}
	if c.Audience == "plain" {
		return errors.New("plain failure")
	}
	return nil
}

// env returns a LookupFunc backed by a map.
func env(vars map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

// ---------------------------------------------------------------------------
// Layering
// ---------------------------------------------------------------------------

func TestLoad_DefaultsOnly(t *testing.T) {
	t.Parallel()
	var s edgeSettings
	err := New().WithLookup(env(map[string]string{"ISSUER": "https://acme.example.com"})).Load(&s)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, s.Timeout)
	assert.False(t, s.Debug)
	assert.Equal(t, int32(2), s.Retries)
	assert.Equal(t, []string{"admins", "staff"}, s.Groups)
	assert.Equal(t, "localhost:6379", s.Store.Addr)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Parallel()
	path := testutil.TempConfigFile(t, `
issuer: https://acme.cloudflareaccess.com
audience: aud-123
timeout: 3s
store:
  addr: redis:6379
  db: 4
`, ".yaml")

	var s edgeSettings
	require.NoError(t, New().WithFile(path).WithLookup(env(nil)).Load(&s))

	assert.Equal(t, "https://acme.cloudflareaccess.com", s.Issuer)
	assert.Equal(t, "aud-123", s.Audience)
	assert.Equal(t, 3*time.Second, s.Timeout)
	assert.Equal(t, "redis:6379", s.Store.Addr)
	assert.Equal(t, 4, s.Store.DB)
}

func TestLoad_JSONFile(t *testing.T) {
	t.Parallel()
	path := testutil.TempConfigFile(t, `{"issuer":"https://a.example.com","audience":"x"}`, ".json")

	var s edgeSettings
	require.NoError(t, New().WithFile(path).WithLookup(env(nil)).Load(&s))
	assert.Equal(t, "x", s.Audience)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Parallel()
	path := testutil.TempConfigFile(t, "issuer: https://file.example.com\naudience: file\n", ".yml")

	var s edgeSettings
	err := New().
		WithEnvPrefix("access").
		WithFile(path).
		WithLookup(env(map[string]string{
			"ACCESS_AUDIENCE":   "env",
			"ACCESS_DEBUG":      "true",
			"ACCESS_GROUPS":     "a,b",
			"ACCESS_STORE_ADDR": "cache:6380",
		})).
		Load(&s)
	require.NoError(t, err)

	assert.Equal(t, "https://file.example.com", s.Issuer)
	assert.Equal(t, "env", s.Audience)
	assert.True(t, s.Debug)
	assert.Equal(t, []string{"a", "b"}, s.Groups)
	assert.Equal(t, "cache:6380", s.Store.Addr)
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	t.Parallel()
	var s edgeSettings
	err := New().
		WithFile("/nonexistent/access.yaml").
		WithLookup(env(map[string]string{"ISSUER": "https://a.example.com"})).
		Load(&s)
	require.NoError(t, err)
}

// ---------------------------------------------------------------------------
// Failures
// ---------------------------------------------------------------------------

func TestLoad_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		run  func(t *testing.T) error
		code agerr.Code
	}{
		{
			name: "nil pointer",
			run:  func(*testing.T) error { return New().Load(nil) },
			code: agerr.CodeInternalConfiguration,
		},
		{
			name: "non-struct pointer",
			run: func(*testing.T) error {
				n := 1
				return New().Load(&n)
			},
			code: agerr.CodeInternalConfiguration,
		},
		{
			name: "required field missing",
			run: func(*testing.T) error {
				var s edgeSettings
				return New().WithLookup(env(nil)).Load(&s)
			},
			code: agerr.CodeValidationRequired,
		},
		{
			name: "bad duration from env",
			run: func(*testing.T) error {
				var s edgeSettings
				return New().WithLookup(env(map[string]string{
					"ISSUER": "https://a.example.com", "TIMEOUT": "soon",
				})).Load(&s)
			},
			code: agerr.CodeInternalConfiguration,
		},
		{
			name: "bad integer from env",
			run: func(*testing.T) error {
				var s edgeSettings
				return New().WithLookup(env(map[string]string{
					"ISSUER": "https://a.example.com", "RETRIES": "many",
				})).Load(&s)
			},
			code: agerr.CodeInternalConfiguration,
		},
		{
			name: "traversal in file path",
			run: func(*testing.T) error {
				var s edgeSettings
				return New().WithFile("../access.yaml").WithLookup(env(nil)).Load(&s)
			},
			code: agerr.CodeInternalConfiguration,
		},
		{
			name: "unsupported extension",
			run: func(t *testing.T) error {
				var s edgeSettings
				path := testutil.TempConfigFile(t, "issuer = 1", ".toml")
				return New().WithFile(path).WithLookup(env(nil)).Load(&s)
			},
			code: agerr.CodeInternalConfiguration,
		},
		{
			name: "invalid yaml",
			run: func(t *testing.T) error {
				var s edgeSettings
				path := testutil.TempConfigFile(t, "issuer: [unterminated", ".yaml")
				return New().WithFile(path).WithLookup(env(nil)).Load(&s)
			},
			code: agerr.CodeInternalConfiguration,
		},
		{
			name: "validator returns typed error",
			run: func(*testing.T) error {
				var s checkedSettings
				return New().WithLookup(env(map[string]string{"AUDIENCE": "forbidden"})).Load(&s)
			},
			code: agerr.CodeValidation,
		},
		{
			name: "validator returns plain error",
			run: func(*testing.T) error {
				var s checkedSettings
				return New().WithLookup(env(map[string]string{"AUDIENCE": "plain"})).Load(&s)
			},
			code: agerr.CodeValidation,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			testutil.RequireErrorCode(t, tt.run(t), tt.code)
		})
	}
}

func TestMustLoad(t *testing.T) {
	t.Parallel()
	s := MustLoad[edgeSettings](New().WithLookup(env(map[string]string{"ISSUER": "https://a.example.com"})))
	assert.Equal(t, "https://a.example.com", s.Issuer)

	assert.Panics(t, func() {
		_ = MustLoad[edgeSettings](New().WithLookup(env(nil)))
	})
}

func TestSetField_UnsupportedKind(t *testing.T) {
	t.Parallel()
	type floaty struct {
		Ratio float64 `env:"RATIO"`
	}
	var s floaty
	err := New().WithLookup(env(map[string]string{"RATIO": "0.5"})).Load(&s)
	testutil.RequireErrorCode(t, err, agerr.CodeInternalConfiguration)
}
