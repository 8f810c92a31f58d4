package httptransport

// RecordVoteRequest is the JSON body for casting a judgement on an item.
type RecordVoteRequest struct {
	Judgement string `json:"judgement"`
}

type VoteResponse struct {
	ValidationID string `json:"validation_id"`
	ItemID       string `json:"item_id"`
	ValidatorID  string `json:"validator_id"`
	Judgement    string `json:"judgement"`
	ItemStatus   string `json:"item_status"`
}

// ResolveConflictRequest carries the resolver's corrected canonical value.
type ResolveConflictRequest struct {
	CorrectedValue string `json:"corrected_value"`
}

type ArchiveVotesRequest struct {
	OperatorID string `json:"operator_id"`
}

type ItemProgressResponse struct {
	ItemID         string `json:"item_id"`
	Kind           string `json:"kind"`
	Locale         string `json:"locale"`
	Status         string `json:"status"`
	Accepts        int    `json:"accepts"`
	Rejects        int    `json:"rejects"`
	RequiredQuorum int    `json:"required_quorum"`
	CorrectedValue string `json:"corrected_value,omitempty"`
}

type PendingItem struct {
	ItemID   string `json:"item_id"`
	Kind     string `json:"kind"`
	Locale   string `json:"locale"`
	Text     string `json:"text,omitempty"`
	Category string `json:"category,omitempty"`
}

type PendingItemsResponse struct {
	Items []PendingItem `json:"items"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
