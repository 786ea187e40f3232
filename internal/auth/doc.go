// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

/*
Package auth verifies callers of the ingestion API.

Ingestion delegates identity to a Verifier: it hands over the bearer
credential and gets back a Caller (user id and optional email) or a
*models.AuthError. Two modes are configured with AUTH_MODE:

  - jwt (default): HS256 tokens signed with JWT_SECRET. The subject claim is
    the user id; email is optional. Algorithm, expiry and, when JWT_ISSUER is
    set, issuer are enforced.
  - none: the bearer value itself is the user id. Refused in production by
    config validation.

Tokens for local testing are issued with `engagectl token <user-id>`.

Example:

	verifier, err := auth.NewVerifier(&cfg.Security)
	if err != nil {
	    return err
	}
	caller, err := verifier.Verify(ctx, auth.BearerToken(r))
*/
package auth
