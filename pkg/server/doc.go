// Package server serves the policy channel over HTTP.
//
// Mix registration and update bodies are parcel-encoded mix lists, the same
// bytes a policy client sends over a process boundary. Stream evaluation
// takes a small JSON description of the stream and answers with the routing
// decision.
//
// # Routes
//
//	POST   /v1/tokens                 issue an owner token
//	DELETE /v1/tokens/{token}         invalidate an owner and its mixes
//	GET    /v1/tokens/{token}/events  drain queued activity events
//	POST   /v1/mixes                  register a parcel mix list (X-Mix-Token)
//	GET    /v1/mixes                  list registered mixes
//	PUT    /v1/mixes/{id}             replace a mix with a parcel mix (X-Mix-Token)
//	DELETE /v1/mixes/{id}             unregister a mix (X-Mix-Token)
//	POST   /v1/evaluate               evaluate a stream without tracking it
//	POST   /v1/streams                start a stream, returns a handle
//	DELETE /v1/streams/{handle}       stop a stream
//	GET    /v1/snapshot               CBOR registry snapshot
//
// Liveness, readiness and metrics are served at their configured paths, and
// GET /version when build information is supplied.
//
// # Errors
//
// Failures are JSON bodies of the form {"error": {"code", "message"}}:
//
//	400 malformed_input         parcel or request body could not be decoded
//	401 unauthorized            missing or unparsable owner token
//	403 permission_denied       token does not own the mix or is unknown
//	404 not_found               no such mix, owner or stream
//	409 duplicate_registration  registration id already in use
//	413 request_too_large       body exceeds server.max_body_bytes
//	422 invalid_criteria        mix violates the criteria rules
//	507 capacity_exceeded       registry is full
//
// # Middleware
//
// Requests pass through recovery, request ID, logging and body limit
// middleware, outermost first. Routed handlers also record request metrics
// labelled with their route pattern.
package server
