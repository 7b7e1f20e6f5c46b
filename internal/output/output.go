// Package output renders CLI results: styled text for terminals, plain text
// for pipes, JSON on request.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color palette
const (
	colorBlue   = "39"  // primary accent
	colorWhite  = "255" // headers
	colorGray   = "245" // secondary text
	colorRed    = "196" // errors
	colorYellow = "220" // warnings
	colorGreen  = "114" // success
)

// Styles holds the render styles for one writer.
type Styles struct {
	Header  lipgloss.Style
	Accent  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Dim     lipgloss.Style
}

// DefaultStyles returns colored styles for terminal output.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorWhite)),
		Accent:  lipgloss.NewStyle().Foreground(lipgloss.Color(colorBlue)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(colorGreen)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
	}
}

// NoColorStyles returns unstyled components for plain mode.
func NoColorStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle(),
		Accent:  lipgloss.NewStyle(),
		Success: lipgloss.NewStyle(),
		Warning: lipgloss.NewStyle(),
		Error:   lipgloss.NewStyle(),
		Dim:     lipgloss.NewStyle(),
	}
}

// Writer renders output to one destination, with styling decided by whether
// the destination is a terminal.
type Writer struct {
	w      io.Writer
	styles Styles
}

// New creates a Writer for w, enabling color only when w is a terminal.
func New(w io.Writer) *Writer {
	styles := NoColorStyles()
	if f, ok := w.(*os.File); ok && isTerminal(f) {
		styles = DefaultStyles()
	}
	return &Writer{w: w, styles: styles}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Styles returns the active style set.
func (w *Writer) Styles() Styles {
	return w.styles
}

// Printf writes formatted plain text.
func (w *Writer) Printf(format string, args ...any) {
	fmt.Fprintf(w.w, format, args...)
}

// Println writes a plain line.
func (w *Writer) Println(args ...any) {
	fmt.Fprintln(w.w, args...)
}

// Header writes a bold section header.
func (w *Writer) Header(text string) {
	fmt.Fprintln(w.w, w.styles.Header.Render(text))
}

// Successf writes a success line.
func (w *Writer) Successf(format string, args ...any) {
	fmt.Fprintln(w.w, w.styles.Success.Render(fmt.Sprintf(format, args...)))
}

// Warnf writes a warning line.
func (w *Writer) Warnf(format string, args ...any) {
	fmt.Fprintln(w.w, w.styles.Warning.Render(fmt.Sprintf(format, args...)))
}

// Errorf writes an error line.
func (w *Writer) Errorf(format string, args ...any) {
	fmt.Fprintln(w.w, w.styles.Error.Render(fmt.Sprintf(format, args...)))
}

// Dimf writes de-emphasized text.
func (w *Writer) Dimf(format string, args ...any) {
	fmt.Fprintln(w.w, w.styles.Dim.Render(fmt.Sprintf(format, args...)))
}

// JSON writes v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// Rule writes a dim horizontal separator.
func (w *Writer) Rule() {
	fmt.Fprintln(w.w, w.styles.Dim.Render(strings.Repeat("─", 60)))
}
