// Package internal documents the job house server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, rendering, and routing
// - domain: business logic and domain models
// - storage: repository contracts and the MongoDB implementation
// - notify: best-effort domain notices over RabbitMQ
// - auth, audit, config, email, metrics, sanitize, telemetry: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
