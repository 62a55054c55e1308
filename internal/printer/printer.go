// Package printer formats human-facing CLI output with consistent colors.
package printer

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

func init() {
	// Force color output even when not connected to TTY
	// Users can disable with NO_COLOR environment variable
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green = color.New(color.FgGreen)
	red   = color.New(color.FgRed, color.Bold)
)

// Success prints a success message in green with a checkmark prefix.
func Success(format string, a ...any) {
	green.Printf("✓ %s", fmt.Sprintf(format, a...))
}

// Info prints an informational message in the default color.
func Info(format string, a ...any) {
	fmt.Printf(format, a...)
}

// Error prints a formatted error with optional suggestions to stderr and
// returns a simple error for Cobra (which won't reprint it, errors are
// silenced on the root command).
func Error(title string, explanation string, suggestions []string) error {
	red.Fprintf(os.Stderr, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(os.Stderr, "%s\n", explanation)
	}

	if len(suggestions) > 0 {
		fmt.Fprintf(os.Stderr, "\n")
		for _, suggestion := range suggestions {
			fmt.Fprintf(os.Stderr, "  • %s\n", suggestion)
		}
	}

	return fmt.Errorf("%s", title)
}
