// Package types defines core data structures for fuc.
package types

// Work is one archive work as described by a notification email. A work
// shows up in two verbosity levels: its first mention in an email carries
// full metadata (Detailed), later mentions in the same email carry only
// the id and title.
type Work struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Detailed bool   `json:"detailed"`

	// Metadata below is only populated when Detailed is true.
	Authors  string `json:"authors,omitempty"`
	Chapters string `json:"chapters,omitempty"`
	Fandom   string `json:"fandom,omitempty"`
	Rating   string `json:"rating,omitempty"`
	Warnings string `json:"warnings,omitempty"`
	Series   string `json:"series,omitempty"`
	Summary  string `json:"summary,omitempty"`
}

// UpdateKind discriminates the two update shapes.
type UpdateKind int

const (
	// NewWork announces a work posted for the first time (or backdated).
	NewWork UpdateKind = iota
	// NewChapter announces a chapter added to an existing work.
	NewChapter
)

func (k UpdateKind) String() string {
	switch k {
	case NewWork:
		return "new_work"
	case NewChapter:
		return "new_chapter"
	default:
		return "unknown"
	}
}

// Update is one parsed archive update. For NewWork only Work is set; for
// NewChapter the Chapter fields identify the new chapter.
type Update struct {
	Kind UpdateKind `json:"kind"`
	Work Work       `json:"work"`

	ChapterID      int64  `json:"chapter_id,omitempty"`
	ChapterTitle   string `json:"chapter_title,omitempty"`
	ChapterSummary string `json:"chapter_summary,omitempty"`
}

// ProcessedEmail records the terminal outcome for one message id. Success
// false means the body was unparsable and the message was abandoned.
type ProcessedEmail struct {
	ID          string `json:"id"`
	Success     bool   `json:"success"`
	ProcessedAt string `json:"processed_at"`
}

// Status is a point-in-time snapshot of the ingestion coordinator.
type Status struct {
	Active    int `json:"active"`
	Successes int `json:"successes"`
	Failures  int `json:"failures"`
}

// FailureScore derives the circuit-breaker metric:
// (failures - successes) / (successes + failures). A zero denominator
// means no history yet; that is treated as safe and reported as 0.
func (s Status) FailureScore() float64 {
	total := s.Successes + s.Failures
	if total == 0 {
		return 0
	}
	return float64(s.Failures-s.Successes) / float64(total)
}
