// Package settlementservice implements transaction settlement inside the
// finance-core context.
//
// The module drives money movements against an unreliable mobile-money
// provider: idempotent execution, status polling with doubled waits, and
// exactly-once wallet settlement under row locks. Payout accrual from
// accepted contributions runs as a periodic worker.
package settlementservice
