package annotations

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

// OutputFormatter formats events for human-readable display.
type OutputFormatter struct {
	useColor bool
	writer   io.Writer
	renderer *SolutionsRenderer
}

// NewOutputFormatter creates a formatter with color support detection.
func NewOutputFormatter(w io.Writer) *OutputFormatter {
	if w == nil {
		w = os.Stderr
	}

	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isTerminal(f.Fd()) && !color.NoColor
	}

	return &OutputFormatter{
		useColor: useColor,
		writer:   w,
		renderer: NewSolutionsRenderer(useColor),
	}
}

// Handle implements the Handler interface - prints events as they occur
func (f *OutputFormatter) Handle(event Event) {
	output := f.Format(event)
	if output != "" {
		fmt.Fprintln(f.writer, output)
	}
}

// Format converts an event to a human-readable string.
func (f *OutputFormatter) Format(event Event) string {
	latency := f.formatLatency(event.Latency)
	d := event.Data

	switch event.Name {
	case QueryInvoked:
		return fmt.Sprintf("%s Query %s: %s", latency, str(d, "query.id"), truncate(str(d, "query")))

	case QueryPlanCreated:
		return fmt.Sprintf("\n%s", str(d, "plan"))

	case QueryComplete:
		if success, _ := d["success"].(bool); !success {
			return fmt.Sprintf("%s %s Query failed: %v",
				latency,
				f.colorize("✗", color.FgRed),
				d["error"])
		}
		return fmt.Sprintf("%s %s Query done with %s",
			latency,
			f.colorize("===", color.FgGreen),
			f.colorizeCount("Solutions", num(d, "solutions.count")))

	case PlannerStep:
		mark := "unchanged"
		if changed, _ := d["changed"].(bool); changed {
			mark = f.colorize("rewritten", color.FgYellow)
		}
		return fmt.Sprintf("%s %s %s %s", latency, f.colorize("===", color.FgYellow), str(d, "step"), mark)

	case PlannerCacheHit:
		return fmt.Sprintf("%s Plan cache hit", latency)

	case SourceQuery:
		pattern := fmt.Sprintf("Source(%s, %s)", str(d, "endpoint"), str(d, "pattern"))
		if f.useColor {
			pattern = color.BlueString("Source(") + color.CyanString(str(d, "endpoint")) +
				color.BlueString(", ") + str(d, "pattern") + color.BlueString(")")
		}
		return fmt.Sprintf("%s %s%s%s", latency, pattern, f.arrow(),
			f.renderer.Render(strs(d, "vars"), num(d, "solutions.count")))

	case SourcePage:
		return fmt.Sprintf("%s %s page %d: %s", latency, str(d, "endpoint"), num(d, "page"),
			f.colorizeCount("Solutions", num(d, "rows")))

	case ModifiersApplied:
		return fmt.Sprintf("%s Applying %s locally for %s", latency, str(d, "modifiers"), str(d, "endpoint"))

	case JoinStrategy:
		return fmt.Sprintf("%s %s join (%s): left %s, right %s",
			latency,
			f.colorize(str(d, "strategy"), color.FgCyan),
			str(d, "reason"),
			str(d, "left.cardinality"),
			str(d, "right.cardinality"))

	case JoinHash, JoinBind, JoinProduct:
		left, right, result := num(d, "left.size"), num(d, "right.size"), num(d, "result.size")
		joinStr := f.renderer.RenderJoin(strs(d, "left.vars"), left, strs(d, "right.vars"), right, strs(d, "result.vars"), result)
		if result > 100000 || (left > 0 && right > 0 && result > left*right/2 && result > 1000) {
			return fmt.Sprintf("%s %s %s", latency, f.colorize("⚠️", color.FgYellow), joinStr)
		}
		return fmt.Sprintf("%s %s", latency, joinStr)

	case UnionBranches:
		return fmt.Sprintf("%s Union over %d branches", latency, num(d, "branches"))

	case ResultsCloseTimeout:
		return fmt.Sprintf("%s %s Producer %s did not stop within %v",
			latency, f.colorize("⚠️", color.FgYellow), str(d, "source"), d["timeout"])

	case ErrorPlanning, ErrorExecution, ErrorBackend:
		return fmt.Sprintf("%s %s %s: %v", latency, f.colorize("✗", color.FgRed), event.Name, d["error"])

	default:
		return fmt.Sprintf("%s %s %v", latency, event.Name, d)
	}
}

// formatLatency formats a duration as [XXXms] or [XXXµs] with color coding.
func (f *OutputFormatter) formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		s := fmt.Sprintf("[%dµs]", d.Microseconds())
		if !f.useColor {
			return s
		}
		return color.GreenString(s)
	}

	// Use floating-point milliseconds to preserve precision
	ms := float64(d.Microseconds()) / 1000.0
	s := fmt.Sprintf("[%.1fms]", ms)

	if !f.useColor {
		return s
	}

	switch {
	case ms < 50:
		return color.GreenString(s)
	case ms < 200:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}

// colorizeCount formats a count with a label, using color based on the label type.
func (f *OutputFormatter) colorizeCount(label string, count int) string {
	text := fmt.Sprintf("%d %s", count, label)
	if !f.useColor {
		return text
	}
	return color.MagentaString(text)
}

// colorize applies color if enabled.
func (f *OutputFormatter) colorize(text string, attrs ...color.Attribute) string {
	if !f.useColor {
		return text
	}
	return color.New(attrs...).Sprint(text)
}

func (f *OutputFormatter) arrow() string {
	if f.useColor {
		return color.YellowString(" → ")
	}
	return " → "
}

// truncate shortens long single-line renderings for display.
func truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")

	const maxLen = 100
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func str(d map[string]interface{}, key string) string {
	switch v := d[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func num(d map[string]interface{}, key string) int {
	switch v := d[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

func strs(d map[string]interface{}, key string) []string {
	v, _ := d[key].([]string)
	return v
}

// StderrHandler creates a handler that prints formatted events to stderr.
func StderrHandler() Handler {
	return NewOutputFormatter(os.Stderr).Handle
}

// isTerminal checks if the file descriptor is stdout or stderr
func isTerminal(fd uintptr) bool {
	return fd == uintptr(1) || fd == uintptr(2)
}
