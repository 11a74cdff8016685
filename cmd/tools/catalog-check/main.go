// cmd/tools/catalog-check/main.go
package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"procurement-harvester/internal/models"
	partitionrange "procurement-harvester/internal/workers/harvest/partition-range"
	"procurement-harvester/pkg/registry"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/pflag"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		help(stderr)
		return 2
	}

	validateCmd := pflag.NewFlagSet("validate", pflag.ContinueOnError)
	validatePath := validateCmd.String("path", "configs/catalog.json", "Path to catalog file")

	planCmd := pflag.NewFlagSet("plan", pflag.ContinueOnError)
	planPath := planCmd.String("path", "configs/catalog.json", "Path to catalog file")
	planCategories := planCmd.StringSlice("categories", nil, "Categories to plan (default: all)")

	for _, fs := range []*pflag.FlagSet{validateCmd, planCmd} {
		fs.SetOutput(stderr)
	}

	switch args[0] {
	case "validate":
		if err := validateCmd.Parse(args[1:]); err != nil {
			return 2
		}
		catalog, err := registry.LoadCatalog(*validatePath)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprint(stdout, describe(catalog))
		return 0

	case "plan":
		if err := planCmd.Parse(args[1:]); err != nil {
			return 2
		}
		if planCmd.NArg() != 2 {
			fmt.Fprintln(stderr, "Error: plan needs START and END (YYYYMMDD)")
			return 2
		}
		start, err := models.ParseDay(planCmd.Arg(0))
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		end, err := models.ParseDay(planCmd.Arg(1))
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}

		catalog, err := registry.LoadCatalog(*planPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		cats, err := catalog.Select(*planCategories)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		table, err := plan(cats, start, end)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		fmt.Fprint(stdout, table)
		return 0

	default:
		help(stderr)
		return 2
	}
}

func help(w io.Writer) {
	fmt.Fprintln(w, "Usage: catalog-check <command> [options]")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  validate   Validate the catalog and list its categories")
	fmt.Fprintln(w, "  plan       Print the request plan for START END")
}

func describe(c *registry.Catalog) string {
	rows := [][]string{{"category", "format", "chunk", "keywords", "dataset", "key"}}
	for _, cat := range c.Categories {
		rows = append(rows, []string{
			cat.Name,
			cat.Format,
			cat.Chunk.Key(),
			fmt.Sprint(len(cat.Keywords)),
			cat.DatasetName("{year}"),
			strings.Join(cat.RecordSchema().KeyFields(), "+"),
		})
	}
	return fmt.Sprintf("catalog %s: %d categories OK\n\n%s", c.Version, len(c.Categories), renderTable(rows))
}

// plan lists every (category, range) with the number of keyword passes, which
// is the number of paginated fetches the harvester will start.
func plan(cats []*registry.Category, start, end time.Time) (string, error) {
	rows := [][]string{{"category", "range", "days", "passes"}}
	fetches := 0
	for _, cat := range cats {
		ranges, err := partitionrange.Plan(start, end, cat.Chunk)
		if err != nil {
			return "", fmt.Errorf("%s: %w", cat.Name, err)
		}
		passes := len(cat.Keywords)
		if passes == 0 {
			passes = 1
		}
		for _, r := range ranges {
			rows = append(rows, []string{cat.Name, r.String(), fmt.Sprint(r.Days()), fmt.Sprint(passes)})
			fetches += passes
		}
	}
	return fmt.Sprintf("%s\n%d paginated fetches\n", renderTable(rows), fetches), nil
}

func renderTable(rows [][]string) string {
	widths := make([]int, len(rows[0]))
	for _, r := range rows {
		for i, cell := range r {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	for _, r := range rows {
		for i, cell := range r {
			if i > 0 {
				b.WriteString("  ")
			}
			if i == len(r)-1 {
				b.WriteString(cell)
			} else {
				b.WriteString(runewidth.FillRight(cell, widths[i]))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
