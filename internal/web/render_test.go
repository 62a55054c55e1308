package web

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRenderDescription(t *testing.T) {
	t.Run("renders markdown", func(t *testing.T) {
		html := string(RenderDescription("routes **all** samples"))
		assert.Contains(t, html, "<strong>all</strong>")
	})

	t.Run("empty description renders nothing", func(t *testing.T) {
		assert.Empty(t, string(RenderDescription("")))
	})

	t.Run("dedents indented multi-line text", func(t *testing.T) {
		html := string(RenderDescription("\n    # Classifier\n    Routes samples.\n"))
		assert.Contains(t, html, "<h1")
		assert.Contains(t, html, "Classifier")
	})
}

func TestDedent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no indent", "a\nb", "a\nb"},
		{"common indent stripped", "    a\n    b", "a\nb"},
		{"mixed depth keeps relative indent", "    a\n      b", "a\n  b"},
		{"blank lines ignored for margin", "    a\n\n    b", "a\n\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dedent(tt.in))
		})
	}
}

func TestPrettyDelta(t *testing.T) {
	now := time.Unix(1_000_000, 0)

	tests := []struct {
		name string
		ago  time.Duration
		want string
	}{
		{"seconds", 42 * time.Second, "42 seconds ago"},
		{"minutes from three minutes", 3 * time.Minute, "3 minutes ago"},
		{"minutes until three hours", 179 * time.Minute, "179 minutes ago"},
		{"hours", 5 * time.Hour, "5 hours ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := now.Add(-tt.ago).Unix()
			assert.Equal(t, tt.want, prettyDeltaAt(ts, now))
		})
	}
}
