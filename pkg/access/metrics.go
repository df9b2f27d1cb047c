package access

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	agerr "github.com/StricklySoft/accessguard/pkg/errors"
)

// Label values for cacheLookups.
const (
	lookupHit     = "hit"
	lookupMiss    = "miss"
	lookupStale   = "stale"
	lookupInvalid = "invalid"
	lookupError   = "error"
	lookupNoKid   = "kid_miss"
)

// resultOK labels a successful verification.
const resultOK = "ok"

var (
	verifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "accessguard_verifications_total",
		Help: "Token verifications by result (ok or error code).",
	}, []string{"result"})

	verifyDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "accessguard_verification_duration_seconds",
		Help:    "Wall time of a token verification, including any key set fetch.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	})

	keySetFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "accessguard_keyset_fetches_total",
		Help: "Key set fetches from the issuer by outcome.",
	}, []string{"outcome"})

	cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "accessguard_keyset_cache_lookups_total",
		Help: "Key set cache lookups by result.",
	}, []string{"result"})

	cacheWriteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "accessguard_keyset_cache_write_failures_total",
		Help: "Key set cache writes that failed after a fetch.",
	})
)

// RegisterMetrics registers the package collectors on reg, or on the
// default registerer when reg is nil. Registering twice is not an error.
func RegisterMetrics(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		verifications, verifyDuration, keySetFetches, cacheLookups, cacheWriteFailures,
	} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}

func resultLabel(err error) string {
	if err == nil {
		return resultOK
	}
	if code := agerr.GetCode(err); code != "" {
		return code.String()
	}
	return "unknown"
}
