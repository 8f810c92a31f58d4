// Package consensusengine implements crowd consensus validation inside the
// moderation-core context.
//
// The module owns the vote lifecycle for validatable items (images, audio
// clips, transcriptions): recording judgements, evaluating quorum with
// unanimity, routing disagreements to conflict resolution, and reopening
// items for re-validation. Business rules live in the domain and application
// layers; storage and transport sit behind ports and adapters.
package consensusengine
