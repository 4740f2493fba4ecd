package report

import (
	"fmt"
	"math"
	"strings"

	"monfill/internal/stats"
)

// Series is the cumulative history of one point/axis before and after correction.
type Series struct {
	Point  string
	Axis   string
	Labels []string
	Before []float64
	After  []float64
}

// maxPoints is where Mermaid's xychart layout starts overlapping labels.
const maxPoints = 60

// CorrectionChart creates a Mermaid xychart-beta comparing raw and corrected cumulative values.
func CorrectionChart(s Series) string {
	if len(s.After) == 0 || len(s.Before) != len(s.After) {
		return ""
	}

	step := subsample(len(s.After))
	var labels, before, after []string
	for i := range s.After {
		if i%step != 0 && i != len(s.After)-1 {
			continue
		}
		label := fmt.Sprintf("%d", i+1)
		if i < len(s.Labels) {
			label = s.Labels[i]
		}
		labels = append(labels, fmt.Sprintf("\"%s\"", label))
		before = append(before, fmt.Sprintf("%.2f", s.Before[i]))
		after = append(after, fmt.Sprintf("%.2f", s.After[i]))
	}

	lo, hi := bounds(s.Before, s.After)

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString(fmt.Sprintf("    title \"Cumulative %s %s (raw vs corrected)\"\n", s.Point, s.Axis))
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Cumulative\" %d --> %d\n", lo, hi))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(before, ", ")))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(after, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// StrategyChart creates a Mermaid bar chart of filled cells per strategy, in chain order.
func StrategyChart(filled map[string]int, order []string) string {
	var labels, values []string
	maxVal := 0
	for _, name := range order {
		n := filled[name]
		if n == 0 {
			continue
		}
		labels = append(labels, fmt.Sprintf("\"%s\"", name))
		values = append(values, fmt.Sprintf("%d", n))
		if n > maxVal {
			maxVal = n
		}
	}
	if len(values) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Cells Filled by Strategy\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Cells\" 0 --> %d\n", maxVal+int(math.Max(1, float64(maxVal)*0.2))))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(values, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// XmRChart creates a Mermaid xychart-beta of a change series with its natural process limits.
func XmRChart(title string, result stats.XmRResult) string {
	if len(result.Values) == 0 {
		return ""
	}

	step := subsample(len(result.Values))
	var labels, values, averages, unpls, lnpls []string
	for i, v := range result.Values {
		if i%step != 0 && i != len(result.Values)-1 {
			continue
		}
		labels = append(labels, fmt.Sprintf("%d", i+1))
		values = append(values, fmt.Sprintf("%.2f", v))
		averages = append(averages, fmt.Sprintf("%.2f", result.Average))
		unpls = append(unpls, fmt.Sprintf("%.2f", result.UNPL))
		lnpls = append(lnpls, fmt.Sprintf("%.2f", result.LNPL))
	}

	lo, hi := bounds(result.Values, []float64{result.UNPL, result.LNPL})

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString(fmt.Sprintf("    title \"%s\"\n", title))
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Change\" %d --> %d\n", lo, hi))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(values, ", ")))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(averages, ", ")))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(unpls, ", ")))
	sb.WriteString(fmt.Sprintf("    line [%s]\n", strings.Join(lnpls, ", ")))
	sb.WriteString("```")
	return sb.String()
}

func subsample(n int) int {
	if n > maxPoints {
		return int(math.Ceil(float64(n) / maxPoints))
	}
	return 1
}

// bounds returns an integer y-axis range with 10% headroom around all values.
func bounds(sets ...[]float64) (int, int) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, set := range sets {
		for _, v := range set {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 1) {
		return 0, 1
	}
	pad := math.Max(1, (hi-lo)*0.1)
	low := math.Floor(lo - pad)
	if lo >= 0 {
		low = math.Max(0, low)
	}
	return int(low), int(math.Ceil(hi + pad))
}
