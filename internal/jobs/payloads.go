package jobs

// ActivationEmailPayload is ID-based on purpose: the worker reloads the
// token and user from the database, so a stale payload can never send an
// outdated code.
type ActivationEmailPayload struct {
	TokenID   string `json:"tokenId"`
	UserID    string `json:"userId"`
	RequestID string `json:"requestId,omitempty"`
}
