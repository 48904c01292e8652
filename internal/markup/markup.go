// Package markup parses the inline button mini-language used when
// authoring filter replies. A reply may embed any number of
// [Label](buttonurl://https://example.com) segments; a trailing ":same"
// on the URL packs the button onto the same keyboard row as the one
// before it.
package markup

import (
	"regexp"
	"strings"
)

// ButtonSpec is one parsed button. Order is significant: row assembly
// walks the slice left to right.
type ButtonSpec struct {
	Label   string `json:"label"`
	URL     string `json:"url"`
	SameRow bool   `json:"same_row,omitempty"`
}

// MaxButtonsPerRow is the Telegram-friendly cap enforced by BuildRows.
const MaxButtonsPerRow = 2

var buttonRe = regexp.MustCompile(`\[([^\]]+)\]\(buttonurl://([^)]+)\)`)

// Parse extracts button markup from raw text. It returns the text with
// all matched markup removed (trimmed) and the buttons in authoring
// order. Malformed markup (unclosed bracket or paren) never matches and
// stays in the text verbatim. Parsing already-clean text is a no-op.
func Parse(raw string) (string, []ButtonSpec) {
	matches := buttonRe.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return strings.TrimSpace(raw), nil
	}

	buttons := make([]ButtonSpec, 0, len(matches))
	clean := raw
	for _, m := range matches {
		url := m[2]
		same := strings.HasSuffix(url, ":same")
		if same {
			url = strings.TrimSuffix(url, ":same")
		}
		buttons = append(buttons, ButtonSpec{
			Label:   m[1],
			URL:     url,
			SameRow: same,
		})
		clean = strings.Replace(clean, m[0], "", 1)
	}

	return strings.TrimSpace(clean), buttons
}

// BuildRows lays parsed buttons out into keyboard rows: a button starts
// a new row unless it asked for SameRow and the current row still has
// space. A trailing partial row is flushed.
func BuildRows(buttons []ButtonSpec) [][]ButtonSpec {
	if len(buttons) == 0 {
		return nil
	}

	var rows [][]ButtonSpec
	var row []ButtonSpec
	for _, b := range buttons {
		if len(row) > 0 && (!b.SameRow || len(row) >= MaxButtonsPerRow) {
			rows = append(rows, row)
			row = nil
		}
		row = append(row, b)
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}
