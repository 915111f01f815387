package cli

import (
	"fmt"
	"io"
	"os"
)

// Color codes for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
)

// printer writes status lines, colored when the target is a terminal.
type printer struct {
	w     io.Writer
	color bool
}

func newPrinter(w io.Writer) printer {
	return printer{w: w, color: isTerminal(w)}
}

func (p printer) line(symbol, color, message string) {
	if p.color {
		fmt.Fprintf(p.w, "%s%s%s %s\n", color, symbol, ColorReset, message)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", symbol, message)
}

func (p printer) Success(message string) { p.line("✓", ColorGreen, message) }
func (p printer) Error(message string)   { p.line("✗", ColorRed, message) }
func (p printer) Warning(message string) { p.line("⚠", ColorYellow, message) }
func (p printer) Info(message string)    { p.line("ℹ", ColorBlue, message) }

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
