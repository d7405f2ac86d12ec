package main

import (
	"fmt"
	"io"
	"os"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// progress receives status lines. Analysis text goes to stdout so it can be
// piped on its own.
var progress io.Writer = os.Stderr

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printMarked(color, mark, format string, args ...any) {
	fmt.Fprintln(progress, colorize(color, mark+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { printMarked(colorGreen, "✓", format, args...) }
func printError(format string, args ...any)   { printMarked(colorRed, "✗", format, args...) }
func printWarning(format string, args ...any) { printMarked(colorYellow, "⚠", format, args...) }
func printStep(format string, args ...any)    { printMarked(colorCyan, "→", format, args...) }

func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(progress, "  %s %s\n", colorize(colorBold, label+":"), fmt.Sprintf(format, args...))
}

// printSection writes the heading that precedes a stage's text.
func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n", colorize(colorBold, "## "+title))
}

// printRunSummary reports how a streamed analysis ended.
func printRunSummary(res streamResult) {
	if res.NotFound != "" {
		printWarning("Analysis skipped: %s", res.NotFound)
	}
	switch {
	case res.Sources == nil:
		printStatus("Sources", "none")
	case res.Sources.TotalSources == 0:
		printStatus("Sources", "no live data")
	default:
		categories := map[string]bool{}
		for _, src := range res.Sources.Sources {
			categories[src.Category] = true
		}
		printStatus("Sources", "%d across %d categories", res.Sources.TotalSources, len(categories))
	}
	printSuccess("Analysis ID %s", res.UUID)
}
