package annotations

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// SolutionsRenderer pretty-prints solution streams by their variables and size
type SolutionsRenderer struct {
	useColor bool
}

// NewSolutionsRenderer creates a new renderer
func NewSolutionsRenderer(useColor bool) *SolutionsRenderer {
	return &SolutionsRenderer{useColor: useColor}
}

// Render renders variables and a count; a negative count is omitted
func (r *SolutionsRenderer) Render(vars []string, count int) string {
	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = "?" + strings.TrimPrefix(v, "?")
	}
	varList := strings.Join(names, " ")

	if r.useColor {
		result := color.BlueString("Solutions([") + color.CyanString(varList) + color.BlueString("]")
		if count >= 0 {
			result += color.BlueString(", ") + r.colorizeCount("Rows", count)
		}
		return result + color.BlueString(")")
	}

	if count >= 0 {
		return fmt.Sprintf("Solutions([%s], %d Rows)", varList, count)
	}
	return fmt.Sprintf("Solutions([%s])", varList)
}

// colorizeCount formats a count with color based on size
func (r *SolutionsRenderer) colorizeCount(label string, count int) string {
	countStr := fmt.Sprintf("%d", count)
	switch {
	case count == 0:
		countStr = color.RedString(countStr)
	case count < 100:
		countStr = color.GreenString(countStr)
	case count < 10000:
		countStr = color.YellowString(countStr)
	default:
		countStr = color.RedString(countStr)
	}
	return fmt.Sprintf("%s %s", countStr, label)
}

// RenderJoin renders a join operation
func (r *SolutionsRenderer) RenderJoin(leftVars []string, leftCount int, rightVars []string, rightCount int, resultVars []string, resultCount int) string {
	left := r.Render(leftVars, leftCount)
	right := r.Render(rightVars, rightCount)
	result := r.Render(resultVars, resultCount)

	joinOp := " ⋈ "
	if r.useColor {
		joinOp = color.YellowString(" ⋈ ")
	}
	return fmt.Sprintf("%s%s%s → %s", left, joinOp, right, result)
}
