package compare

import (
	"fmt"
	"io"
	"strings"
)

// Render writes a human-readable comparison summary. With detailed set, up to maxDiffs
// cell differences are listed per file (maxDiffs <= 0 lists all of them).
func Render(w io.Writer, res Result, detailed bool, maxDiffs int) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Matched files:          %d\n", res.Matched)
	fmt.Fprintf(&b, "Files with differences: %d\n", len(res.Files))
	fmt.Fprintf(&b, "Differing cells:        %d\n", res.DiffCells)
	fmt.Fprintf(&b, "Significant cells:      %d\n", res.SignificantCells)
	fmt.Fprintf(&b, "Missing in processed:   %d\n", len(res.MissingInProcessed))
	fmt.Fprintf(&b, "Processed only:         %d\n", len(res.ProcessedOnly))
	fmt.Fprintf(&b, "Load errors:            %d\n", len(res.LoadErrors))

	for _, name := range res.MissingInProcessed {
		fmt.Fprintf(&b, "  missing: %s\n", name)
	}
	for _, e := range res.LoadErrors {
		fmt.Fprintf(&b, "  error:   %s\n", e.Error())
	}

	for _, fd := range res.Files {
		fmt.Fprintf(&b, "\n%s -> %s: %d differences, %d significant\n",
			fd.OriginalFile, fd.ProcessedFile, len(fd.Diffs), fd.Significant)
		if len(fd.MissingPoints) > 0 {
			fmt.Fprintf(&b, "  points missing in processed: %s\n", strings.Join(fd.MissingPoints, ", "))
		}
		if !detailed {
			continue
		}
		for i, d := range fd.Diffs {
			if maxDiffs > 0 && i >= maxDiffs {
				fmt.Fprintf(&b, "  ... %d more\n", len(fd.Diffs)-maxDiffs)
				break
			}
			mark := " "
			if d.Significant {
				mark = "!"
			}
			if d.Blank {
				fmt.Fprintf(&b, "  %s %-12s row %-4d %-14s %12.4f -> %12s\n",
					mark, d.Point, d.Position, d.Slot, d.Original, "(blank)")
				continue
			}
			fmt.Fprintf(&b, "  %s %-12s row %-4d %-14s %12.4f -> %12.4f (delta %.4f)\n",
				mark, d.Point, d.Position, d.Slot, d.Original, d.Processed, d.Delta)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
