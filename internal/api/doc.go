// Package api provides the HTTP REST API for Veridocs.
//
// It exposes tenant registration, authentication, user and project
// management, document version chains, and the audit trail to clients.
// Every protected route is scoped to the company carried in the access
// token; handlers never accept a company ID from the request body.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
