// Package diagnostic renders a source Span as a caret-underline message,
// the presentation spec.md §7 requires of every Spanned error. The
// teacher has no equivalent — it prints a plain message to stderr and
// exits — so this package's shape follows spec.md's own wording rather
// than a teacher file.
package diagnostic

import (
	"sort"
	"strings"

	"github.com/ggbclang/ggbc/token"
)

// Diagnostic pairs a rendered message with the span it refers to, so a
// batch of them can be sorted into source order before being printed.
type Diagnostic struct {
	Span    token.Span
	Message string
}

// New pairs a span with a message into a Diagnostic; callers holding an
// ast.Spanned error pass its ErrSpan() and Error().
func New(span token.Span, message string) Diagnostic {
	return Diagnostic{Span: span, Message: message}
}

// Sort orders diags by ascending (line, column) of their span's start,
// so a caller printing several errors from one pass reads top-to-bottom
// through the source rather than in discovery order.
func Sort(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		return diags[i].Span.Min.Less(diags[j].Span.Min)
	})
}

// Render produces a caret-underline rendering of d against src: the
// offending line(s), followed by a line of spaces and `^` markers under
// the span's columns.
func Render(src string, d Diagnostic) string {
	lines := strings.Split(src, "\n")
	min, max := d.Span.Min, d.Span.Max
	if min.Line < 0 || min.Line >= len(lines) {
		return d.Message
	}

	var sb strings.Builder
	sb.WriteString(d.Message)
	sb.WriteByte('\n')

	for ln := min.Line; ln <= max.Line && ln < len(lines); ln++ {
		line := lines[ln]
		sb.WriteString(line)
		sb.WriteByte('\n')

		from := 0
		if ln == min.Line {
			from = min.Col
		}
		to := len(line)
		if ln == max.Line {
			to = max.Col
		}
		if to <= from {
			to = from + 1
		}
		sb.WriteString(strings.Repeat(" ", from))
		sb.WriteString(strings.Repeat("^", to-from))
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}

// RenderAll sorts diags in place and renders each against src, joined by
// blank lines.
func RenderAll(src string, diags []Diagnostic) string {
	Sort(diags)
	out := make([]string, len(diags))
	for i, d := range diags {
		out[i] = Render(src, d)
	}
	return strings.Join(out, "\n\n")
}
