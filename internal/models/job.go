package models

import "time"

// JobStatus represents the state of a job
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusExtracting  JobStatus = "extracting"
	StatusSummarizing JobStatus = "summarizing"
	StatusRendering   JobStatus = "rendering"
	StatusComplete    JobStatus = "complete"
	StatusFailed      JobStatus = "failed"
)

// Advisory seconds remaining reported for each status.
const (
	ETAQueued      = 60
	ETAExtracting  = 45
	ETASummarizing = 30
	ETARendering   = 15
)

var statusOrder = map[JobStatus]int{
	StatusQueued:      0,
	StatusExtracting:  1,
	StatusSummarizing: 2,
	StatusRendering:   3,
	StatusComplete:    4,
}

// Valid reports whether s is one of the known statuses
func (s JobStatus) Valid() bool {
	_, ok := statusOrder[s]
	return ok || s == StatusFailed
}

// IsTerminal reports whether no further transitions are allowed
func (s JobStatus) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// CanTransition reports whether a job may move from s to next.
// Stages advance one step at a time; any non-terminal state may fail.
// Re-writing the current non-terminal status is allowed so progress can be refreshed.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	from, ok := statusOrder[s]
	if !ok {
		return false
	}
	to, ok := statusOrder[next]
	if !ok {
		return false
	}
	return to == from || to == from+1
}

// Job represents a notes-generation job in the system
type Job struct {
	ID                     string    `json:"id"`
	Status                 JobStatus `json:"status"`
	Progress               int       `json:"progress"`
	FileName               string    `json:"fileName"`
	FileSize               int64     `json:"fileSize"`
	MimeType               string    `json:"mimeType"`
	CreatedAt              time.Time `json:"createdAt"`
	UpdatedAt              time.Time `json:"updatedAt"`
	EstimatedTimeRemaining *int      `json:"estimatedTimeRemaining,omitempty"`
	ExtractedText          *string   `json:"extractedText,omitempty"`
	Summary                *string   `json:"summary,omitempty"`
	ResultURL              *string   `json:"resultUrl,omitempty"`
	ErrorMessage           *string   `json:"errorMessage,omitempty"`
}

// Clone returns a deep copy so callers never share pointers with the store
func (j *Job) Clone() *Job {
	c := *j
	c.EstimatedTimeRemaining = cloneInt(j.EstimatedTimeRemaining)
	c.ExtractedText = cloneString(j.ExtractedText)
	c.Summary = cloneString(j.Summary)
	c.ResultURL = cloneString(j.ResultURL)
	c.ErrorMessage = cloneString(j.ErrorMessage)
	return &c
}

// JobUpdate is a partial update; nil fields are left untouched
type JobUpdate struct {
	Status                 *JobStatus
	Progress               *int
	EstimatedTimeRemaining *int
	ExtractedText          *string
	Summary                *string
	ResultURL              *string
	ErrorMessage           *string
}

// Length controls how long a generated summary should be
type Length string

const (
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"
)

// Valid reports whether l is a known length
func (l Length) Valid() bool {
	return l == LengthShort || l == LengthMedium || l == LengthLong
}

// Style controls the layout of rendered notes
type Style string

const (
	StyleNotes   Style = "notes"
	StyleOutline Style = "outline"
	StyleSummary Style = "summary"
)

// Valid reports whether s is a known style
func (s Style) Valid() bool {
	return s == StyleNotes || s == StyleOutline || s == StyleSummary
}

// Options carries the caller's generation preferences
type Options struct {
	Length Length `json:"length"`
	Style  Style  `json:"style"`
}

// Topic describes a typed topic used instead of an uploaded document
type Topic struct {
	Subject string `json:"subject"`
	Topic   string `json:"topic"`
	Grade   string `json:"grade,omitempty"`
	Details string `json:"details,omitempty"`
}

// MimeTopic is the mime type recorded for typed-topic jobs
const MimeTopic = "application/x-topic"

// Payload is the ephemeral input for one job. It lives outside the job
// record and is consumed by the pipeline exactly once.
type Payload struct {
	FileName string
	MimeType string
	Data     []byte
	Topic    *Topic
	Options  Options
}

// Size returns the number of bytes carried by the payload
func (p *Payload) Size() int64 {
	return int64(len(p.Data))
}

// CreateJobRequest represents a JSON request to create a topic job
type CreateJobRequest struct {
	Subject  string `json:"subject"`
	Topic    string `json:"topic"`
	Grade    string `json:"grade,omitempty"`
	Details  string `json:"details,omitempty"`
	Length   Length `json:"length,omitempty"`
	Style    Style  `json:"style,omitempty"`
	ClientID string `json:"client_id,omitempty"`
}

// Artifact is a rendered result addressable by its reference
type Artifact struct {
	ID          string    `json:"id"`
	JobID       string    `json:"job_id"`
	ContentType string    `json:"content_type"`
	Renderer    string    `json:"renderer"`
	Data        []byte    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
