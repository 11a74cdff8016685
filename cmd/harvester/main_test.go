package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	apperrors "procurement-harvester/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	opts, err := parseArgs(newFlagSet(), []string{"--categories", "공사, 물품", "20250101", "20250131"})

	require.NoError(t, err)
	assert.Equal(t, []string{"공사", "물품"}, opts.categories)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), opts.start)
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), opts.end)
}

func TestParseArgs_UsageErrors(t *testing.T) {
	tests := map[string][]string{
		"no dates":           {},
		"one date":           {"20250101"},
		"bad date":           {"2025-13-01", "20250131"},
		"inverted":           {"20250131", "20250101"},
		"yesterday and date": {"--yesterday", "20250101"},
		"unknown flag":       {"--nope", "20250101", "20250102"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := parseArgs(newFlagSet(), args)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrUsage))
		})
	}
}

func TestParseArgs_Yesterday(t *testing.T) {
	opts, err := parseArgs(newFlagSet(), []string{"--yesterday"})
	require.NoError(t, err)
	assert.True(t, opts.yesterday)
}

func TestYesterdayIn(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	// 2025-03-01 00:30 in Seoul is still February 28th in UTC.
	now := time.Date(2025, 2, 28, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), yesterdayIn(now, seoul))
	assert.Equal(t, time.Date(2025, 2, 27, 0, 0, 0, 0, time.UTC), yesterdayIn(now, time.UTC))
}

func TestRun_UsageExitCode(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"20250131", "20250101"}, &stdout, &stderr)

	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr.String(), "usage: harvester")
	assert.Empty(t, stdout.String())
}

func TestRun_BadDriveCredentialsExitCode(t *testing.T) {
	t.Setenv("DATA_GO_KR_API_KEY", "test-key")
	t.Setenv("GOOGLE_AUTH_JSON", "{not json")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"--config", "../../configs/config.yaml",
		"--catalog", "../../configs/catalog.json",
		"--store", "drive",
		"20250101", "20250101",
	}, &stdout, &stderr)

	assert.Equal(t, exitUsage, code)
	assert.Empty(t, stdout.String())
}

func TestSetupExitCode(t *testing.T) {
	assert.Equal(t, exitUsage, setupExitCode(apperrors.NewConfigError("drive credentials are not valid service-account JSON", errors.New("bad"))))
	assert.Equal(t, exitUsage, setupExitCode(fmt.Errorf("wire: %w", apperrors.NewConfigError("load catalog", nil))))
	assert.Equal(t, exitFailure, setupExitCode(errors.New("redis ping failed: connection refused")))
}

func TestIsAuthFailure(t *testing.T) {
	assert.True(t, isAuthFailure(errors.New("redis ping failed: WRONGPASS invalid username-password pair")))
	assert.True(t, isAuthFailure(errors.New("NOAUTH Authentication required.")))
	assert.False(t, isAuthFailure(errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")))
}
