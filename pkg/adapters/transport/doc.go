// Package transport provides stream transport implementations.
//
// Implementations:
//   - redis: Redis Streams samples with TTL'd descriptor keys for discovery
//   - memory: In-process hub for tests and single-host runs
package transport
