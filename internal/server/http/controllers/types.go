package controllers

// healthResp is the /v1/healthz body.
type healthResp struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// statsResp is the /v1/stats body.
type statsResp struct {
	Source  string `json:"source"`
	Cursor  string `json:"cursor"`
	FirstID uint64 `json:"first_id"`
	LastID  uint64 `json:"last_id"`
}
