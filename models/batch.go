package models

// BatchRequest is the payload for POST /v1/batch.
type BatchRequest struct {
	// URLs is the list of target pages to fetch. Required.
	URLs []string `json:"urls" binding:"required,min=1,max=100"`

	// Options contains shared fetch options applied to all URLs.
	Options BatchOptions `json:"options"`

	WebhookURL    string `json:"webhook_url,omitempty" binding:"omitempty,url"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// BatchOptions are the shared fetch settings applied to every URL in a batch.
type BatchOptions struct {
	Format             string `json:"format,omitempty" binding:"omitempty,oneof=markdown html text citations"`
	Mode               string `json:"mode,omitempty" binding:"omitempty,oneof=readability pruning raw auto"`
	WaitForNetworkIdle *bool  `json:"wait_for_network_idle,omitempty"`
	Timeout            int    `json:"timeout,omitempty" binding:"omitempty,min=1,max=120"`
	Stealth            bool   `json:"stealth,omitempty"`
}

// BatchResponse is the immediate response for POST /v1/batch.
type BatchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// BatchStatusResponse is the response for GET /v1/batch/:id.
type BatchStatusResponse struct {
	ID        string        `json:"id"`
	Status    string        `json:"status"`
	Completed int           `json:"completed"`
	Total     int           `json:"total"`
	Results   []*PeelResult `json:"results,omitempty"`
}

// BatchJob tracks an in-progress batch fetch operation.
type BatchJob struct {
	ID            string
	Status        string // "processing", "completed", "failed", "partial"
	Total         int
	Completed     int
	Results       []*PeelResult
	CreatedAt     int64 // unix timestamp
	WebhookURL    string
	WebhookSecret string
}
