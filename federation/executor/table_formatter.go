package executor

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/wbrown/janus-federation/federation"
)

// TableFormatter renders solutions as markdown tables
type TableFormatter struct {
	// MaxWidth is the maximum width for a cell
	MaxWidth int
	// TruncateString is appended to truncated cells
	TruncateString string
	// Unbound is shown for variables a solution does not bind
	Unbound string
}

// NewTableFormatter creates a new table formatter with default settings
func NewTableFormatter() *TableFormatter {
	return &TableFormatter{
		MaxWidth:       50,
		TruncateString: "...",
		Unbound:        "",
	}
}

// FormatResults drains and closes r, then formats its solutions
func (tf *TableFormatter) FormatResults(r Results) (string, error) {
	sols, err := Collect(r)
	if err != nil {
		return "", err
	}
	return tf.FormatSolutions(r.Vars(), sols), nil
}

// FormatSolutions formats sols with one column per variable
func (tf *TableFormatter) FormatSolutions(vars []string, sols []federation.Solution) string {
	if len(vars) == 0 {
		// ask results carry no variables
		if len(sols) > 0 {
			return "_true_"
		}
		return "_false_"
	}
	if len(sols) == 0 {
		return fmt.Sprintf("_Columns: %v_\n\n_No rows_", vars)
	}

	tableString := &strings.Builder{}

	alignment := make([]tw.Align, len(vars))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	table := tablewriter.NewTable(tableString,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)

	headers := make([]string, len(vars))
	for i, v := range vars {
		headers[i] = "?" + v
	}
	table.Header(headers)

	for _, s := range sols {
		row := make([]string, len(vars))
		for j, v := range vars {
			row[j] = tf.formatTerm(s, v)
		}
		table.Append(row)
	}

	table.Render()

	tableString.WriteString(fmt.Sprintf("\n_%d rows_\n", len(sols)))

	return tableString.String()
}

func (tf *TableFormatter) formatTerm(s federation.Solution, v string) string {
	t, ok := s[v]
	if !ok {
		return tf.Unbound
	}
	str := t.String()
	if tf.MaxWidth > 0 && len(str) > tf.MaxWidth {
		str = str[:tf.MaxWidth] + tf.TruncateString
	}
	return str
}

// SolutionsString returns a markdown table of sols
func SolutionsString(vars []string, sols []federation.Solution) string {
	return NewTableFormatter().FormatSolutions(vars, sols)
}
