// Package assignmentservice implements work leasing inside the
// moderation-core context.
//
// The module hands contributors exclusive, TTL-bound batches of items to
// validate or transcribe, re-derives eligibility for held batches, and sweeps
// expired leases back into the shared pool without touching recorded votes.
package assignmentservice
