package httptransport

// LeaseRequest asks for a batch of work in the caller's locale.
type LeaseRequest struct {
	WorkType string `json:"work_type"`
	ItemKind string `json:"item_kind"`
	Limit    int    `json:"limit,omitempty"`
}

type LeasedItem struct {
	ItemID   string `json:"item_id"`
	Kind     string `json:"kind"`
	Locale   string `json:"locale"`
	Text     string `json:"text,omitempty"`
	Category string `json:"category,omitempty"`
}

type LeaseResponse struct {
	AssignmentID string       `json:"assignment_id,omitempty"`
	WorkType     string       `json:"work_type"`
	ExpiresAt    string       `json:"expires_at,omitempty"`
	Items        []LeasedItem `json:"items"`
}

type ReleaseRequest struct {
	WorkType string `json:"work_type"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
