package web

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/yuin/goldmark"
)

var markdown = goldmark.New()

// RenderDescription converts a bind's markdown description to HTML for the
// dashboard pages. Descriptions are written by fleet operators, so the
// rendered HTML is trusted. Returns empty HTML for an empty description.
func RenderDescription(description string) template.HTML {
	if description == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(dedent(description)), &buf); err != nil {
		// Fall back to the raw text rather than dropping the description.
		return template.HTML(template.HTMLEscapeString(description))
	}
	return template.HTML(buf.String())
}

// dedent strips the longest common leading whitespace from every non-blank
// line, the way multi-line descriptions are typically indented in source.
func dedent(s string) string {
	lines := strings.Split(s, "\n")

	margin := ""
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if first {
			margin = indent
			first = false
			continue
		}
		for !strings.HasPrefix(line, margin) {
			margin = margin[:len(margin)-1]
		}
	}

	if margin == "" {
		return s
	}
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines[i] = strings.TrimPrefix(line, margin)
	}
	return strings.Join(lines, "\n")
}

// PrettyDelta formats a unix timestamp as a coarse "time ago" string.
func PrettyDelta(lastUpdate int64) string {
	return prettyDeltaAt(lastUpdate, time.Now())
}

func prettyDeltaAt(lastUpdate int64, now time.Time) string {
	seconds := int64(now.Sub(time.Unix(lastUpdate, 0)).Seconds())
	if seconds < 180 {
		return fmt.Sprintf("%d seconds ago", seconds)
	}
	minutes := seconds / 60
	if minutes < 180 {
		return fmt.Sprintf("%d minutes ago", minutes)
	}
	return fmt.Sprintf("%d hours ago", minutes/60)
}
