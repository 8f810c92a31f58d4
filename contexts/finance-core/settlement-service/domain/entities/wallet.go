package entities

import "time"

// Wallet tracks a contributor's earnings in minor units. Accrued grows with
// accepted work, Deposit with settled inbound transactions, TotalPayout with
// settled outbound ones. Keeping work credit and deposit credit apart lets
// the accrual recompute overwrite the work-derived figure without touching
// money that arrived through the provider. Balance is always derived, never
// stored. The per-kind benefit fields itemize the accrual side for reporting.
type Wallet struct {
	UserID                    string
	AccruedMinor              int64
	AudioBenefitMinor         int64
	ImageBenefitMinor         int64
	TranscriptionBenefitMinor int64
	DepositMinor              int64
	TotalPayoutMinor          int64
	UpdatedAt                 time.Time
}

func (w Wallet) BalanceMinor() int64 {
	return w.AccruedMinor + w.DepositMinor - w.TotalPayoutMinor
}
