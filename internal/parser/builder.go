package parser

import (
	"fmt"
	"strings"

	"github.com/arconyx/fuc/internal/types"
)

type blockKind int

const (
	blockWork blockKind = iota
	blockChapter
)

// builder accumulates fields for one update block as lines are consumed.
// It is created fresh per block, filled through the fixed extraction
// sequence in parseBlock, and validated once in finalize. Never reused.
type builder struct {
	kind      blockKind
	backdated bool

	workID    int64
	workTitle string // chapter blocks: work title from the announcement line

	title string // the block's own title line

	authors    string
	hasAuthors bool

	chapterID      int64
	chapterSummary string

	hasDetail bool
	chapters  string
	fandom    string
	rating    string
	warnings  string
	series    string

	summary string
}

// finalize validates the accumulated fields and converts them into an
// Update. Exactly four combinations are valid: sparse or detailed work,
// sparse or detailed chapter. Anything else is a BuildError describing
// the builder state.
func (b *builder) finalize() (types.Update, error) {
	if b.workID == 0 {
		return types.Update{}, &BuildError{State: b.describe("missing work id")}
	}
	if b.title == "" {
		return types.Update{}, &BuildError{State: b.describe("missing title")}
	}
	if b.hasAuthors != b.hasDetail {
		// A byline only ever accompanies the work's first detailed
		// appearance, and vice versa.
		return types.Update{}, &BuildError{State: b.describe("byline and detail block must appear together")}
	}
	if b.summary != "" && !b.hasDetail {
		return types.Update{}, &BuildError{State: b.describe("work summary without detail block")}
	}

	work := types.Work{ID: b.workID}
	if b.hasDetail {
		work.Detailed = true
		work.Authors = b.authors
		work.Chapters = b.chapters
		work.Fandom = b.fandom
		work.Rating = b.rating
		work.Warnings = b.warnings
		work.Series = b.series
		work.Summary = b.summary
	}

	switch b.kind {
	case blockWork:
		work.Title = b.title
		return types.Update{Kind: types.NewWork, Work: work}, nil
	case blockChapter:
		if b.chapterID == 0 {
			return types.Update{}, &BuildError{State: b.describe("missing chapter id")}
		}
		work.Title = b.workTitle
		if work.Title == "" {
			return types.Update{}, &BuildError{State: b.describe("missing work title")}
		}
		return types.Update{
			Kind:           types.NewChapter,
			Work:           work,
			ChapterID:      b.chapterID,
			ChapterTitle:   b.title,
			ChapterSummary: b.chapterSummary,
		}, nil
	default:
		return types.Update{}, &BuildError{State: b.describe("unknown block kind")}
	}
}

// describe renders the builder state for diagnostics.
func (b *builder) describe(reason string) string {
	kind := "work"
	if b.kind == blockChapter {
		kind = "chapter"
	}
	var set []string
	if b.workID != 0 {
		set = append(set, fmt.Sprintf("work=%d", b.workID))
	}
	if b.chapterID != 0 {
		set = append(set, fmt.Sprintf("chapter=%d", b.chapterID))
	}
	if b.title != "" {
		set = append(set, "title")
	}
	if b.hasAuthors {
		set = append(set, "byline")
	}
	if b.hasDetail {
		set = append(set, "detail")
	}
	if b.summary != "" {
		set = append(set, "summary")
	}
	return fmt.Sprintf("%s (%s block, have: %s)", reason, kind, strings.Join(set, " "))
}
