// Package platform holds the types shared by all publishing adapters.
package platform

import "fmt"

// MaxMediaAttachments is the most images a single publish request may carry.
const MaxMediaAttachments = 4

// MaxMediaBytes caps each attachment at 10 MiB.
const MaxMediaBytes = 10 * 1024 * 1024

// Media is one binary attachment for a post.
type Media struct {
	Data     []byte
	MimeType string
	Filename string
	Size     int64
}

// Result is the uniform per-platform publish outcome. Adapters always return
// one of these; callers never see a raw network error.
type Result struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Success builds a successful result carrying the platform-assigned post id.
func Success(id string) Result {
	return Result{Success: true, ID: id}
}

// Failure builds a failed result with a human-readable reason.
func Failure(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}
