// Package access verifies identity tokens minted by an Access-style SSO
// edge and turns them into application users.
//
// A token is accepted only when every step succeeds:
//
//  1. The compact token parses and declares alg RS256 and a kid.
//  2. A signing key with that kid is found in the issuer's key set, read
//     from a [KeySetCache] when one is configured and fetched otherwise.
//  3. The RS256 signature verifies against that key.
//  4. iss, aud, exp, nbf and sub validate against the [Config].
//
// Every failure is an *errors.Error in the AUTH category, and the boundary
// adapters in this package answer 401 (HTTP) or Unauthenticated (gRPC).
//
//	cfg := access.NewConfig("https://acme.cloudflareaccess.com", "aud-123")
//	cache, _ := access.NewStoreCache(kv.NewMemory())
//	v := access.NewVerifier(cfg, access.WithKeySetCache(cache))
//
//	claims, err := v.Verify(ctx, raw)
//	if err != nil {
//	    return err
//	}
//	user := access.Extract(claims, mapper)
package access
