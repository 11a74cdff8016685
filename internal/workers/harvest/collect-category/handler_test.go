package collectcategory

import (
	"context"
	"fmt"
	"testing"

	apperrors "procurement-harvester/internal/common/errors"
	"procurement-harvester/internal/common/logger"
	"procurement-harvester/internal/models"
	fetchpages "procurement-harvester/internal/workers/harvest/fetch-pages"
	"procurement-harvester/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	keyword string
	rng     string
}

type fakeFetcher struct {
	calls   []call
	respond func(in *fetchpages.Input) (*fetchpages.Output, error)
}

func (f *fakeFetcher) Execute(ctx context.Context, in *fetchpages.Input) (*fetchpages.Output, error) {
	f.calls = append(f.calls, call{keyword: in.Keyword, rng: in.Range.String()})
	return f.respond(in)
}

func createTestCategory(t *testing.T, keywords []string) *registry.Category {
	t.Helper()
	cat := &registry.Category{
		Name:         "용역계약",
		Endpoint:     "http://example.invalid",
		PageSize:     100,
		BeginParam:   "inqryBgnDate",
		EndParam:     "inqryEndDate",
		KeywordParam: "cntrctNm",
		Keywords:     keywords,
		Chunk:        registry.ChunkPolicy{Days: 30},
		ExcludeField: "cntrctNm",
		ExcludeTerms: []string{"청소", "Cleaning"},
		Schema: registry.SchemaSpec{
			Fields: []models.Field{{Name: "cntrctNo"}, {Name: "cntrctNm"}},
			Key:    []string{"cntrctNo"},
		},
	}
	require.NoError(t, cat.Compile())
	return cat
}

func ranges(t *testing.T, days ...string) []models.DateRange {
	t.Helper()
	var out []models.DateRange
	for i := 0; i+1 < len(days); i += 2 {
		b, err := models.ParseDay(days[i])
		require.NoError(t, err)
		e, err := models.ParseDay(days[i+1])
		require.NoError(t, err)
		out = append(out, models.NewDateRange(b, e))
	}
	return out
}

func records(cat *registry.Category, prefix string, names ...string) []models.Record {
	out := make([]models.Record, len(names))
	for i, n := range names {
		out[i] = cat.RecordSchema().Map(map[string]interface{}{
			"cntrctNo": fmt.Sprintf("%s-%d", prefix, i),
			"cntrctNm": n,
		})
	}
	return out
}

// ==========================
// Ordering
// ==========================

func TestExecute_RangesOuterKeywordsInner(t *testing.T) {
	cat := createTestCategory(t, []string{"CCTV", "영상"})
	f := &fakeFetcher{respond: func(in *fetchpages.Input) (*fetchpages.Output, error) {
		return &fetchpages.Output{Records: records(cat, in.Keyword+in.Range.String(), "통합관제"), Pages: 1}, nil
	}}

	out, err := NewHandler(f, logger.NewTestLogger(t)).Execute(context.Background(), &Input{
		Category: cat,
		Ranges:   ranges(t, "20250101", "20250130", "20250131", "20250201"),
	})

	require.NoError(t, err)
	assert.Equal(t, []call{
		{"CCTV", "20250101-20250130"},
		{"영상", "20250101-20250130"},
		{"CCTV", "20250131-20250201"},
		{"영상", "20250131-20250201"},
	}, f.calls)
	assert.Len(t, out.Records, 4)
	assert.Equal(t, 4, out.Pairs)
	assert.Equal(t, 4, out.Pages)
	assert.False(t, out.Failed())
}

func TestExecute_NoKeywordsRunsUnfilteredPass(t *testing.T) {
	cat := createTestCategory(t, nil)
	f := &fakeFetcher{respond: func(in *fetchpages.Input) (*fetchpages.Output, error) {
		return &fetchpages.Output{}, nil
	}}

	out, err := NewHandler(f, logger.NewTestLogger(t)).Execute(context.Background(), &Input{
		Category: cat,
		Ranges:   ranges(t, "20250101", "20250107"),
	})

	require.NoError(t, err)
	assert.Equal(t, []call{{"", "20250101-20250107"}}, f.calls)
	assert.Empty(t, out.Records)
	assert.False(t, out.Failed(), "empty but successful")
}

func TestExecute_KeywordOverride(t *testing.T) {
	cat := createTestCategory(t, []string{"CCTV", "영상"})
	f := &fakeFetcher{respond: func(in *fetchpages.Input) (*fetchpages.Output, error) {
		return &fetchpages.Output{}, nil
	}}

	_, err := NewHandler(f, logger.NewTestLogger(t)).Execute(context.Background(), &Input{
		Category: cat,
		Keywords: []string{"드론"},
		Ranges:   ranges(t, "20250101", "20250107"),
	})

	require.NoError(t, err)
	assert.Equal(t, []call{{"드론", "20250101-20250107"}}, f.calls)
}

// ==========================
// Failure isolation
// ==========================

func TestExecute_FailedPairDoesNotStopOthers(t *testing.T) {
	cat := createTestCategory(t, []string{"CCTV", "영상"})
	f := &fakeFetcher{respond: func(in *fetchpages.Input) (*fetchpages.Output, error) {
		if in.Keyword == "CCTV" {
			partial := records(cat, "partial", "CCTV 설치")
			return &fetchpages.Output{Records: partial, Pages: 1},
				apperrors.NewMalformedResponseError("expected JSON object", nil)
		}
		return &fetchpages.Output{Records: records(cat, "ok", "영상 분석", "영상 저장"), Pages: 1}, nil
	}}

	out, err := NewHandler(f, logger.NewTestLogger(t)).Execute(context.Background(), &Input{
		Category: cat,
		Ranges:   ranges(t, "20250101", "20250130"),
	})

	require.NoError(t, err)
	assert.Len(t, f.calls, 2)
	assert.Len(t, out.Records, 3, "partial records of the failed pair are kept")
	require.Len(t, out.Failures, 1)
	assert.Equal(t, "CCTV", out.Failures[0].Keyword)
	assert.Equal(t, apperrors.ErrCodeMalformedResponse, out.Failures[0].Code)
	assert.False(t, out.Failed())
}

func TestExecute_AllPairsFailed(t *testing.T) {
	cat := createTestCategory(t, nil)
	f := &fakeFetcher{respond: func(in *fetchpages.Input) (*fetchpages.Output, error) {
		return &fetchpages.Output{}, apperrors.NewAPIResultError("22", "LIMITED_NUMBER_OF_SERVICE_REQUESTS_EXCEEDS_ERROR")
	}}

	out, err := NewHandler(f, logger.NewTestLogger(t)).Execute(context.Background(), &Input{
		Category: cat,
		Ranges:   ranges(t, "20250101", "20250107", "20250108", "20250110"),
	})

	require.NoError(t, err)
	assert.Len(t, out.Failures, 2)
	assert.True(t, out.Failed())
	assert.Equal(t, apperrors.ErrCodeAPIResult, out.Failures[1].Code)
}

func TestExecute_ContextCancelledStopsWalk(t *testing.T) {
	cat := createTestCategory(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	f := &fakeFetcher{respond: func(in *fetchpages.Input) (*fetchpages.Output, error) {
		cancel()
		return &fetchpages.Output{Records: records(cat, "r", "a")}, nil
	}}

	out, err := NewHandler(f, logger.NewTestLogger(t)).Execute(ctx, &Input{
		Category: cat,
		Ranges:   ranges(t, "20250101", "20250107", "20250108", "20250110"),
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, f.calls, 1)
	assert.Len(t, out.Records, 1)
	assert.Empty(t, out.Failures)
}

// ==========================
// Exclusion
// ==========================

func TestExecute_ExcludeTerms(t *testing.T) {
	cat := createTestCategory(t, nil)
	f := &fakeFetcher{respond: func(in *fetchpages.Input) (*fetchpages.Output, error) {
		return &fetchpages.Output{Records: records(cat, "x",
			"CCTV 유지보수",
			"청사 청소 용역",
			"Building cleaning service",
			"",
		)}, nil
	}}

	out, err := NewHandler(f, logger.NewTestLogger(t)).Execute(context.Background(), &Input{
		Category: cat,
		Ranges:   ranges(t, "20250101", "20250107"),
	})

	require.NoError(t, err)
	require.Len(t, out.Records, 2)
	assert.Equal(t, "CCTV 유지보수", out.Records[0].Get("cntrctNm"))
	assert.Equal(t, "", out.Records[1].Get("cntrctNm"))
	assert.Equal(t, 2, out.Excluded)
}

func TestContainsAny(t *testing.T) {
	assert.True(t, containsAny("환경미화 및 청소", []string{"청소"}))
	assert.True(t, containsAny("Office CLEANING", []string{"cleaning"}))
	assert.False(t, containsAny("CCTV", []string{"", "청소"}))
	assert.False(t, containsAny("", []string{"청소"}))
}
