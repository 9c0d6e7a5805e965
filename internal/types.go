package internal

import "time"

// RewriteRequest is the audit record persisted for one document run.
type RewriteRequest struct {
	ID        string    `json:"id"`
	InputPath string    `json:"input_path"`
	Model     string    `json:"model"`
	Tone      string    `json:"tone"`
	Timestamp time.Time `json:"timestamp"`
}
