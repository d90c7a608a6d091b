// Package cursor holds per-queue delivery positions for the long-poll feed.
//
// A Store is a plain key-value service with per-key expiry and no
// compare-and-swap: the last writer wins. Each client queue owns two keys,
// built by QueueKeys:
//
//	{feed}.{queueID}.position  last delivered record id, decimal
//	{feed}.{queueID}.alive     liveness marker, refreshed on every poll
//
// Both keys are written with TTL (3h) so abandoned queues disappear on their
// own. Three backends are provided: Memory (tests, single process), Pebble
// (embedded, single node) and NATS (JetStream KV, shared by replicas).
package cursor
