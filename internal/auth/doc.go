// Package auth implements tenant provisioning, credential verification, and
// token issuance for Veridocs.
//
// Registration creates a company (the tenant root) together with its owner
// account in one transaction. Logins verify Argon2id password hashes and
// issue a JWT access token plus an opaque refresh token; refresh tokens
// rotate within a family and reuse of a consumed token revokes the whole
// family.
//
// Every login failure mode shares one error value, ErrInvalidCredentials, so
// responses cannot be used to enumerate registered accounts. Password hashes
// and raw refresh tokens are never logged or serialised.
package auth
