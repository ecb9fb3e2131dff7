package models

// URLRequest asks for a derivative URL for one source image
type URLRequest struct {
	SourceID  string `json:"source_id"`           // Source image id (uuid)
	Width     int    `json:"width,omitempty"`     // Requested width, bucketed
	Height    int    `json:"height,omitempty"`    // Requested height, bucketed
	Extension string `json:"extension,omitempty"` // Output format, defaults to the source's
	Fit       string `json:"fit,omitempty"`       // Only "clip" for now
}

// URLResponse carries the generated URL and the size it encodes
type URLResponse struct {
	Success   bool   `json:"success"`
	URL       string `json:"url"`
	Width     *int   `json:"width"`  // nil when not constrained
	Height    *int   `json:"height"` // nil when not constrained
	Extension string `json:"extension"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status     string                 `json:"status"`
	Timestamp  string                 `json:"timestamp"`
	KeyScheme  string                 `json:"key_scheme"`
	Sources    int                    `json:"sources"`
	WorkerPool map[string]interface{} `json:"worker_pool"`
	BufferPool map[string]interface{} `json:"buffer_pool"`
	TokenCache map[string]interface{} `json:"token_cache"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
