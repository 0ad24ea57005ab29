/*
Package auth issues and validates the bearer tokens that protect the event
inspector.

Tokens are HS256 JWTs carrying a subject and a list of scopes:

	tokens := auth.NewTokenService([]byte(secret), auth.WithTTL(15*time.Minute))
	token, err := tokens.GenerateToken("ops", auth.ScopeRead)

	claims, err := tokens.Authorize(r.Header.Get("Authorization"), auth.ScopeRead)
	if err != nil {
		err.(*errx.Error).ToHTTP(w)
		return
	}

ScopeAdmin implies every other scope. Failures are errx errors from
ErrorRegistry with 401 or 403 status codes.
*/
package auth
