package access

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	agerr "github.com/StricklySoft/accessguard/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope for this package.
const tracerName = "github.com/StricklySoft/accessguard/pkg/access"

// maxTokenSize is the largest compact token accepted (8 KiB).
const maxTokenSize = 8192

// algRS256 is the only signing algorithm accepted. The token header is
// never used to pick another one.
const algRS256 = "RS256"

var (
	headerParser    = jwt.NewParser()
	signatureParser = jwt.NewParser(
		jwt.WithValidMethods([]string{algRS256}),
		jwt.WithoutClaimsValidation(),
	)
	defaultFetcher Fetcher = NewHTTPFetcher(nil)
)

// Verifier checks tokens for one Config. With a KeySetCache it reads keys
// from the cache first and fetches only on a miss, a stale entry, or an
// unknown kid; without one it fetches on every call.
//
// A Verifier holds no mutable state and is safe for concurrent use.
// Concurrent misses may fetch and store the key set more than once.
type Verifier struct {
	cfg     *Config
	fetcher Fetcher
	cache   KeySetCache
	now     func() time.Time
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithFetcher replaces the default HTTPFetcher.
func WithFetcher(f Fetcher) Option {
	return func(v *Verifier) {
		if f != nil {
			v.fetcher = f
		}
	}
}

// WithKeySetCache makes the Verifier consult cache before fetching.
func WithKeySetCache(cache KeySetCache) Option {
	return func(v *Verifier) { v.cache = cache }
}

// WithClock sets the time source for exp and nbf checks.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithTracerProvider sets the provider spans are created from. The default
// is the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(v *Verifier) {
		if tp != nil {
			v.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewVerifier returns a Verifier for cfg.
func NewVerifier(cfg *Config, opts ...Option) *Verifier {
	v := &Verifier{
		cfg:     cfg,
		fetcher: defaultFetcher,
		now:     time.Now,
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Config returns the Config the Verifier checks against.
func (v *Verifier) Config() *Config { return v.cfg }

// Verify fetches the issuer's key set and verifies raw against it.
func Verify(ctx context.Context, raw string, cfg *Config) (*Claims, error) {
	return NewVerifier(cfg).Verify(ctx, raw)
}

// VerifyCached verifies raw using cache for the issuer's key set.
func VerifyCached(ctx context.Context, raw string, cfg *Config, cache KeySetCache) (*Claims, error) {
	return NewVerifier(cfg, WithKeySetCache(cache)).Verify(ctx, raw)
}

// Verify checks raw and returns its claims. On any failure the claims are
// nil and the error is an *errors.Error with one of the codes
// CodeTokenMalformed, CodeUnsupportedAlgorithm, CodeKeyRetrieval,
// CodeUnknownKey, CodeSignatureInvalid or CodeClaimInvalid.
func (v *Verifier) Verify(ctx context.Context, raw string) (claims *Claims, err error) {
	start := time.Now()
	ctx, span := v.tracer.Start(ctx, "access.Verify",
		trace.WithAttributes(attribute.String("access.team", v.cfg.TeamName())))
	defer func() {
		finishSpan(span, err)
		span.End()
		verifications.WithLabelValues(resultLabel(err)).Inc()
		verifyDuration.Observe(time.Since(start).Seconds())
	}()

	kid, err := parseHeader(raw)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("access.kid", kid))

	key, err := v.signingKey(ctx, span, kid)
	if err != nil {
		return nil, err
	}
	pub, err := key.PublicKey()
	if err != nil {
		return nil, agerr.Wrapf(err, agerr.CodeKeyRetrieval, "access: signing key %q is unusable", kid)
	}

	token, err := signatureParser.ParseWithClaims(raw, jwt.MapClaims{}, func(*jwt.Token) (any, error) {
		return pub, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, agerr.Malformed("access: token cannot be decoded", err)
		}
		return nil, agerr.Wrap(err, agerr.CodeSignatureInvalid, "access: token signature is invalid")
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, agerr.Malformed("access: token payload is not a claim set", nil)
	}

	parsed, err := newClaims(mc)
	if err != nil {
		return nil, err
	}
	if err := parsed.validate(v.now(), v.cfg); err != nil {
		return nil, err
	}
	return parsed, nil
}

// parseHeader checks the token shape and returns its kid. The header is
// not trusted beyond this point: the algorithm is fixed to RS256.
func parseHeader(raw string) (string, error) {
	if raw == "" {
		return "", agerr.Malformed("access: token is empty", nil)
	}
	if len(raw) > maxTokenSize {
		return "", agerr.Malformed("access: token exceeds maximum size", nil)
	}
	if strings.Count(raw, ".") != 2 {
		return "", agerr.Malformed("access: token must have three segments", nil)
	}

	// An alg with no registered signing method decodes fine but comes back
	// unverifiable; it is rejected by the alg check below.
	token, _, err := headerParser.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil && (token == nil || !errors.Is(err, jwt.ErrTokenUnverifiable)) {
		return "", agerr.Malformed("access: token cannot be decoded", err)
	}
	if alg, _ := token.Header["alg"].(string); alg != algRS256 {
		return "", agerr.Newf(agerr.CodeUnsupportedAlgorithm,
			"access: algorithm %q is not accepted", alg)
	}
	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		return "", agerr.New(agerr.CodeUnknownKey, "access: token header has no kid")
	}
	return kid, nil
}

// signingKey returns the key for kid. A fresh cached set is used when it
// holds kid; otherwise the set is fetched once and written back to the
// cache. There is no fallback to any other key.
func (v *Verifier) signingKey(ctx context.Context, span trace.Span, kid string) (SigningKey, error) {
	if v.cache != nil {
		if set, ok := v.cache.Get(ctx, v.cfg.Issuer()); ok {
			if key, found := set.Key(kid); found {
				span.SetAttributes(attribute.Bool("access.cache_hit", true))
				return key, nil
			}
			cacheLookups.WithLabelValues(lookupNoKid).Inc()
			v.logger.DebugContext(ctx, "access: kid not in cached key set, refetching",
				"team", v.cfg.TeamName(),
				"kid", kid,
			)
		}
	}
	span.SetAttributes(attribute.Bool("access.cache_hit", false))

	set, err := v.fetch(ctx)
	if err != nil {
		return SigningKey{}, err
	}

	if v.cache != nil {
		if err := v.cache.Put(ctx, v.cfg.Issuer(), set.Keys); err != nil {
			cacheWriteFailures.Inc()
			v.logger.WarnContext(ctx, "access: failed to cache key set",
				"team", v.cfg.TeamName(),
				"error", err,
			)
		}
	}

	key, ok := set.Key(kid)
	if !ok {
		return SigningKey{}, agerr.Newf(agerr.CodeUnknownKey,
			"access: no signing key matches kid %q", kid)
	}
	return key, nil
}

func (v *Verifier) fetch(ctx context.Context) (set *KeySet, err error) {
	ctx, span := v.tracer.Start(ctx, "access.FetchKeySet")
	defer func() {
		finishSpan(span, err)
		span.End()
	}()

	set, err = v.fetcher.Fetch(ctx, v.cfg)
	if err == nil && (set == nil || len(set.Keys) == 0) {
		err = agerr.New(agerr.CodeKeyRetrieval, "access: fetched key set is empty")
	}
	if err != nil {
		if !agerr.HasCode(err, agerr.CodeKeyRetrieval) {
			err = agerr.Wrap(err, agerr.CodeKeyRetrieval, "access: failed to fetch key set")
		}
		keySetFetches.WithLabelValues("failure").Inc()
		v.logger.WarnContext(ctx, "access: key set fetch failed",
			"team", v.cfg.TeamName(),
			"error", err,
		)
		return nil, err
	}

	keySetFetches.WithLabelValues("success").Inc()
	span.SetAttributes(attribute.Int("access.key_count", len(set.Keys)))
	return set, nil
}

// finishSpan records err on span and marks it failed.
func finishSpan(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
