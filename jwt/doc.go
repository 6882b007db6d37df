// Package jwt issues, verifies, and inspects the access and refresh tokens
// that the NextCRM backend places in the access_token and refresh_token
// cookies.
//
// Clients only ever call [Inspect], [Usable], and [ExpiresAt]: they read the
// exp claim of a cookie without verifying it, so the gateway can skip a
// refresh that is bound to fail. [Manager] signs and verifies tokens for the
// in-process fake backend and for servers holding the verification key.
package jwt
