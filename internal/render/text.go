package render

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/kailas-cloud/shakesearch/internal/session"
)

const clearScreen = "\033[H\033[2J"

// Text writes a numbered, plain-text listing of the view to a terminal.
type Text struct {
	w     io.Writer
	clear bool
}

// NewText creates a text renderer. When clear is set, each Render starts by
// clearing the screen so the listing is rebuilt rather than appended.
func NewText(w io.Writer, clear bool) *Text {
	return &Text{w: w, clear: clear}
}

// Render writes the full listing.
func (t *Text) Render(v session.View) error {
	bw := bufio.NewWriter(t.w)

	if t.clear {
		bw.WriteString(clearScreen)
	}

	if len(v.Items) == 0 {
		bw.WriteString("no results\n")
	}
	for i, item := range v.Items {
		fmt.Fprintf(bw, "[%d]\n", i+1)
		for _, line := range strings.Split(sanitize(item), "\n") {
			fmt.Fprintf(bw, "    %s\n", line)
		}
		bw.WriteString("\n")
	}

	if v.HasMore {
		fmt.Fprintf(bw, "-- %d shown, more available: press Enter or type :more --\n", len(v.Items))
	} else if len(v.Items) > 0 {
		fmt.Fprintf(bw, "-- %d shown, end of results --\n", len(v.Items))
	}
	if v.Err != nil {
		fmt.Fprintf(bw, "error: %s\n", sanitize(v.Err.Error()))
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write listing: %w", err)
	}
	return nil
}

// sanitize strips control characters (escape sequences included) except
// newlines and tabs, so result text cannot drive the terminal.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
