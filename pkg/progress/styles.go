package progress

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Color palette.
var (
	headerColor    = lipgloss.Color("#F59E0B") // Amber
	successColor   = lipgloss.Color("#10B981") // Green
	errorColor     = lipgloss.Color("#EF4444") // Red
	highlightColor = lipgloss.Color("#3B82F6") // Blue
	mutedColor     = lipgloss.Color("#6B7280") // Gray
)

// styles renders text for one output writer.
type styles struct {
	header    lipgloss.Style
	success   lipgloss.Style
	err       lipgloss.Style
	highlight lipgloss.Style
	muted     lipgloss.Style
}

// newStyles binds the palette to w. The renderer detects whether w is a
// terminal; with noColor every style renders plain text.
func newStyles(w io.Writer, noColor bool) styles {
	if noColor {
		plain := lipgloss.NewStyle()
		return styles{header: plain, success: plain, err: plain, highlight: plain, muted: plain}
	}

	r := lipgloss.NewRenderer(w)
	return styles{
		header:    r.NewStyle().Foreground(headerColor),
		success:   r.NewStyle().Foreground(successColor),
		err:       r.NewStyle().Foreground(errorColor),
		highlight: r.NewStyle().Foreground(highlightColor),
		muted:     r.NewStyle().Foreground(mutedColor),
	}
}
