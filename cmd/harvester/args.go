// cmd/harvester/args.go
package main

import (
	"fmt"
	"strings"
	"time"

	apperrors "procurement-harvester/internal/common/errors"
	"procurement-harvester/internal/models"

	"github.com/spf13/pflag"
)

const usageLine = "usage: harvester [flags] START END   (dates as YYYYMMDD)\n       harvester [flags] --yesterday"

type options struct {
	configPath string
	categories []string
	yesterday  bool
	start      time.Time
	end        time.Time
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("harvester", pflag.ContinueOnError)
	fs.String("config", "", "configuration file (default: configs/config.yaml)")
	fs.String("catalog", "", "category catalog path")
	fs.StringSlice("categories", nil, "comma separated category names (default: whole catalog)")
	fs.Int("workers", 0, "categories harvested concurrently")
	fs.String("store", "", "dataset store backend: drive, minio or memory")
	fs.String("log-level", "", "debug, info, warn or error")
	fs.Bool("yesterday", false, "harvest the previous day in harvest.timezone")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), usageLine)
		fs.PrintDefaults()
	}
	return fs
}

// parseArgs validates the command line. Dates are resolved later for
// --yesterday, once the timezone is known.
func parseArgs(fs *pflag.FlagSet, args []string) (*options, error) {
	if err := fs.Parse(args); err != nil {
		return nil, apperrors.NewUsageError(err.Error())
	}

	opts := &options{}
	opts.configPath, _ = fs.GetString("config")
	opts.yesterday, _ = fs.GetBool("yesterday")
	cats, _ := fs.GetStringSlice("categories")
	for _, c := range cats {
		if c = strings.TrimSpace(c); c != "" {
			opts.categories = append(opts.categories, c)
		}
	}

	pos := fs.Args()
	switch {
	case opts.yesterday && len(pos) != 0:
		return nil, apperrors.NewUsageError("--yesterday takes no dates")
	case opts.yesterday:
		return opts, nil
	case len(pos) != 2:
		return nil, apperrors.NewUsageError(fmt.Sprintf("expected START and END, got %d arguments", len(pos)))
	}

	var err error
	if opts.start, err = parseCompactDay(pos[0]); err != nil {
		return nil, err
	}
	if opts.end, err = parseCompactDay(pos[1]); err != nil {
		return nil, err
	}
	if opts.start.After(opts.end) {
		return nil, apperrors.NewUsageError(fmt.Sprintf("START %s is after END %s", pos[0], pos[1]))
	}
	return opts, nil
}

func parseCompactDay(s string) (time.Time, error) {
	t, err := time.Parse(models.CompactLayout, s)
	if err != nil {
		return time.Time{}, apperrors.NewUsageError(fmt.Sprintf("invalid date %q: expected YYYYMMDD", s))
	}
	return t, nil
}

// yesterdayIn returns the calendar day before now in loc.
func yesterdayIn(now time.Time, loc *time.Location) time.Time {
	return models.Day(now.In(loc).AddDate(0, 0, -1))
}
