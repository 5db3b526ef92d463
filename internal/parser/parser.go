// Package parser turns the plain-text body of an archive notification
// email into typed update records.
//
// The parser is pure and total over its grammar: it does no I/O, holds no
// state between calls, and anything outside the documented body structure
// is an error rather than silently dropped data.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/arconyx/fuc/internal/types"
)

// Fixed delimiters structuring the archive's plain-text digest bodies.
// Everything before (and including) HeaderDelim and everything from
// FooterDelim onward is boilerplate; the remainder splits on
// UpdateDivider into independent update blocks.
const (
	HeaderDelim   = "The following items were recently added to the Archive of Our Own:"
	FooterDelim   = "To stop receiving these notifications, visit your subscription preferences:"
	UpdateDivider = "--------------------"
)

var (
	newWorkRE       = regexp.MustCompile(`^.+ posted a new work:$`)
	backdatedWorkRE = regexp.MustCompile(`^.+ posted a backdated work:$`)
	newChapterRE    = regexp.MustCompile(`^.+ posted a new chapter of (.+):$`)

	wordCountRE = regexp.MustCompile(`\s*\(\d+ words?\)$`)

	workURLRE    = regexp.MustCompile(`/works/(\d+)/?$`)
	chapterURLRE = regexp.MustCompile(`/works/(\d+)/chapters/(\d+)/?$`)

	// Profile links embedded in bylines, e.g.
	// "by ArcOnyx (https://archiveofourown.org/users/ArcOnyx)".
	profileURLRE = regexp.MustCompile(`\s*\(https?://[^)]*\)`)
)

// Section header variants the archive has used over time.
var (
	chaptersPrefixes = []string{"Chapters: "}
	fandomPrefixes   = []string{"Fandom: ", "Fandoms: ", "Fandom(s): "}
	ratingPrefixes   = []string{"Rating: ", "Ratings: "}
	warningsPrefixes = []string{"Warnings: ", "Warning: ", "Archive Warnings: ", "Archive Warning: "}
	seriesPrefixes   = []string{"Series: ", "Part of: "}
)

const (
	bylinePrefix         = "by "
	chapterSummaryPrefix = "Chapter Summary: "
	summaryHeader        = "Summary:"
	summaryIndent        = "    "
)

// Parse parses a decoded email body into its update records. One malformed
// block fails the whole email; there is no partial acceptance.
func Parse(body string) ([]types.Update, error) {
	body = strings.ReplaceAll(body, "\r\n", "\n")

	_, rest, found := strings.Cut(body, HeaderDelim)
	if !found {
		return nil, &ParseError{Msg: "missing header delimiter"}
	}
	rest, _, found = strings.Cut(rest, FooterDelim)
	if !found {
		return nil, &ParseError{Msg: "missing footer delimiter"}
	}

	var updates []types.Update
	for _, block := range strings.Split(rest, UpdateDivider) {
		if strings.TrimSpace(block) == "" {
			continue
		}
		u, err := parseBlock(block)
		if err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	return updates, nil
}

// parseBlock consumes one divider-delimited block through a fresh builder:
// announcement line, URL, title, then the optional sections in their fixed
// order (byline, chapter summary, detail block, work summary).
func parseBlock(block string) (types.Update, error) {
	c := &cursor{lines: strings.Split(block, "\n")}
	b := &builder{}

	if err := parseAnnouncement(c, b); err != nil {
		return types.Update{}, err
	}
	if err := parseURL(c, b); err != nil {
		return types.Update{}, err
	}
	if err := parseTitle(c, b); err != nil {
		return types.Update{}, err
	}
	parseByline(c, b)
	if b.kind == blockChapter {
		parseChapterSummary(c, b)
	}
	if err := parseDetail(c, b); err != nil {
		return types.Update{}, err
	}
	if err := parseSummary(c, b); err != nil {
		return types.Update{}, err
	}

	c.skipBlank()
	if line, ok := c.peek(); ok {
		return types.Update{}, parseErrf(line, "unexpected content after update block")
	}

	return b.finalize()
}

func parseAnnouncement(c *cursor, b *builder) error {
	c.skipBlank()
	line, ok := c.next()
	if !ok {
		return &ParseError{Msg: "empty update block"}
	}
	switch {
	case newChapterRE.MatchString(line):
		b.kind = blockChapter
		m := newChapterRE.FindStringSubmatch(line)
		b.workTitle = wordCountRE.ReplaceAllString(m[1], "")
	case newWorkRE.MatchString(line):
		b.kind = blockWork
	case backdatedWorkRE.MatchString(line):
		b.kind = blockWork
		b.backdated = true
	default:
		return parseErrf(line, "unrecognised announcement line")
	}
	return nil
}

func parseURL(c *cursor, b *builder) error {
	c.skipBlank()
	line, ok := c.next()
	if !ok {
		return &ParseError{Msg: "missing work URL"}
	}
	switch b.kind {
	case blockChapter:
		m := chapterURLRE.FindStringSubmatch(line)
		if m == nil {
			return parseErrf(line, "expected chapter URL")
		}
		workID, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return parseErrf(m[1], "invalid work id")
		}
		chapterID, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return parseErrf(m[2], "invalid chapter id")
		}
		b.workID = workID
		b.chapterID = chapterID
	default:
		m := workURLRE.FindStringSubmatch(line)
		if m == nil {
			return parseErrf(line, "expected work URL")
		}
		workID, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return parseErrf(m[1], "invalid work id")
		}
		b.workID = workID
	}
	return nil
}

func parseTitle(c *cursor, b *builder) error {
	c.skipBlank()
	line, ok := c.next()
	if !ok || strings.TrimSpace(line) == "" {
		return &ParseError{Msg: "missing title line"}
	}
	b.title = strings.TrimSpace(line)
	return nil
}

// parseByline consumes an optional "by <names>" line. When present it marks
// the work's first appearance in this email; profile URLs wrapped in
// parentheses are stripped before the names are stored.
func parseByline(c *cursor, b *builder) {
	line, ok := c.peek()
	if !ok || !strings.HasPrefix(line, bylinePrefix) {
		c.skipBlank()
		return
	}
	c.next()
	names := strings.TrimPrefix(line, bylinePrefix)
	b.authors = strings.TrimSpace(profileURLRE.ReplaceAllString(names, ""))
	b.hasAuthors = true
	c.skipBlank()
}

// parseChapterSummary consumes an optional "Chapter Summary: " section.
// The content may span further lines, blank ones included, so the end has
// to be found by scanning ahead: the summary runs until the start of the
// detail block when one follows, otherwise until the next blank line.
func parseChapterSummary(c *cursor, b *builder) {
	line, ok := c.peek()
	if !ok || !strings.HasPrefix(line, chapterSummaryPrefix) {
		return
	}
	c.next()
	parts := []string{strings.TrimPrefix(line, chapterSummaryPrefix)}

	if end, found := c.find(func(l string) bool {
		_, match := cutAnyPrefix(l, chaptersPrefixes)
		return match
	}); found {
		for c.pos < end {
			l, _ := c.next()
			parts = append(parts, l)
		}
	} else {
		for {
			l, ok := c.peek()
			if !ok || strings.TrimSpace(l) == "" {
				break
			}
			c.next()
			parts = append(parts, l)
		}
	}
	b.chapterSummary = strings.TrimSpace(strings.Join(parts, "\n"))
	c.skipBlank()
}

// parseDetail consumes the optional metadata block: four required header
// lines, then an optional Series line which the archive emits at varying
// offsets, then an optional blank line.
func parseDetail(c *cursor, b *builder) error {
	c.skipBlank()
	line, ok := c.peek()
	if !ok {
		return nil
	}
	if _, match := cutAnyPrefix(line, chaptersPrefixes); !match {
		return nil
	}

	required := []struct {
		name     string
		prefixes []string
		dst      *string
	}{
		{"Chapters", chaptersPrefixes, &b.chapters},
		{"Fandom", fandomPrefixes, &b.fandom},
		{"Rating", ratingPrefixes, &b.rating},
		{"Warnings", warningsPrefixes, &b.warnings},
	}
	for _, req := range required {
		line, ok := c.next()
		if !ok {
			return parseErrf("", "detail block: missing %s line", req.name)
		}
		value, match := cutAnyPrefix(line, req.prefixes)
		if !match {
			return parseErrf(line, "detail block: expected %s line", req.name)
		}
		*req.dst = strings.TrimSpace(value)
	}
	b.hasDetail = true

	for off := 0; off <= 2 && c.pos+off < len(c.lines); off++ {
		l := c.lines[c.pos+off]
		if value, match := cutAnyPrefix(l, seriesPrefixes); match {
			b.series = strings.TrimSpace(value)
			c.pos += off + 1
			break
		}
		if strings.TrimSpace(l) != "" {
			break
		}
	}

	c.skipBlank()
	return nil
}

// parseSummary consumes an optional work summary: a "Summary:" header
// followed by indented lines taken greedily to the end of the block.
func parseSummary(c *cursor, b *builder) error {
	c.skipBlank()
	line, ok := c.peek()
	if !ok || strings.TrimSpace(line) != summaryHeader {
		return nil
	}
	c.next()

	var parts []string
	for {
		l, ok := c.next()
		if !ok {
			break
		}
		switch {
		case strings.TrimSpace(l) == "":
			parts = append(parts, "")
		case strings.HasPrefix(l, summaryIndent):
			parts = append(parts, strings.TrimPrefix(l, summaryIndent))
		default:
			return parseErrf(l, "summary line not indented")
		}
	}
	b.summary = strings.TrimSpace(strings.Join(parts, "\n"))
	return nil
}

// cursor walks the lines of a block.
type cursor struct {
	lines []string
	pos   int
}

func (c *cursor) peek() (string, bool) {
	if c.pos >= len(c.lines) {
		return "", false
	}
	return c.lines[c.pos], true
}

func (c *cursor) next() (string, bool) {
	line, ok := c.peek()
	if ok {
		c.pos++
	}
	return line, ok
}

func (c *cursor) skipBlank() {
	for {
		line, ok := c.peek()
		if !ok || strings.TrimSpace(line) != "" {
			return
		}
		c.pos++
	}
}

// find returns the index of the first remaining line satisfying pred,
// without moving the cursor.
func (c *cursor) find(pred func(string) bool) (int, bool) {
	for i := c.pos; i < len(c.lines); i++ {
		if pred(c.lines[i]) {
			return i, true
		}
	}
	return 0, false
}

// cutAnyPrefix trims the first matching prefix, reporting whether any matched.
func cutAnyPrefix(s string, prefixes []string) (string, bool) {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return strings.TrimPrefix(s, p), true
		}
	}
	return s, false
}
