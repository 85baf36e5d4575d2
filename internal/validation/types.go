package validation

// CancelImportRequest is the body of the cancelImport websocket route.
type CancelImportRequest struct {
	Action        string `json:"action,omitempty"`
	TransactionID string `json:"transactionId" validate:"required,notblank"`
}

// SweepRequest is the payload for POST /admin/sweep.
type SweepRequest struct {
	Limit int `json:"limit" validate:"gte=0,lte=1000"` // 0 means the server default
}
