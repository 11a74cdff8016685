// internal/workers/communication/notify-run/report.go
package notifyrun

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"procurement-harvester/internal/models"

	"github.com/mattn/go-runewidth"
)

// Subject summarizes the run in one line.
func Subject(in *Input) string {
	failed := 0
	for _, c := range in.Categories {
		if c.Status == "failed" {
			failed++
		}
	}
	return fmt.Sprintf("[harvester] %s~%s: %d categories, %d failed",
		in.Start.Format(models.CompactLayout), in.End.Format(models.CompactLayout),
		len(in.Categories), failed)
}

// RenderSummary renders the run report as an aligned plain-text table.
// Column widths are measured in terminal cells so Hangul names line up.
func RenderSummary(in *Input) string {
	header := []string{"category", "status", "fetched", "added", "total", "failures"}
	rows := [][]string{header}
	for _, c := range in.Categories {
		rows = append(rows, []string{
			c.Name, c.Status,
			strconv.Itoa(c.Fetched), strconv.Itoa(c.Added), strconv.Itoa(c.Total), strconv.Itoa(c.Failures),
		})
	}

	widths := make([]int, len(header))
	for _, r := range rows {
		for i, cell := range r {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "run %s  range %s~%s  duration %s\n\n", in.RunID,
		in.Start.Format(models.CompactLayout), in.End.Format(models.CompactLayout), in.Duration.Round(time.Second))
	for n, r := range rows {
		for i, cell := range r {
			if i > 0 {
				b.WriteString("  ")
			}
			if i >= 2 {
				b.WriteString(runewidth.FillLeft(cell, widths[i]))
			} else {
				b.WriteString(runewidth.FillRight(cell, widths[i]))
			}
		}
		b.WriteString("\n")
		if n == 0 {
			total := 0
			for _, w := range widths {
				total += w
			}
			b.WriteString(strings.Repeat("-", total+2*(len(widths)-1)))
			b.WriteString("\n")
		}
	}

	for _, c := range in.Categories {
		if c.Error != "" {
			fmt.Fprintf(&b, "\n%s: %s", c.Name, c.Error)
		}
	}
	return strings.TrimRight(b.String(), " ") + "\n"
}
