// Package server exposes the read-and-propose HTTP surface over Fiber.
//
// The API is the external collaborator interface for dashboards and
// field-capture apps; it maps onto the same operations the CLI uses and
// never bypasses the object store:
//
//	GET  /api/status               repository and source health
//	GET  /api/query?q=<query>      query engine evaluation
//	GET  /api/pending              list equipment proposals
//	POST /api/pending              submit an equipment proposal
//	POST /api/pending/:id/confirm  confirm a proposal (stages the entity)
//	POST /api/pending/:id/reject   reject a proposal
//
// Every request gets a ray id for log correlation. When an API key is
// configured, all /api routes require it.
package server
