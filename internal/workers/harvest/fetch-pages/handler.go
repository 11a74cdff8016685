// internal/workers/harvest/fetch-pages/handler.go
package fetchpages

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "procurement-harvester/internal/common/errors"
	apphttp "procurement-harvester/internal/common/http"
	"procurement-harvester/internal/common/logger"
	"procurement-harvester/internal/common/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const TaskType = "fetch-pages"

// maxBodyBytes bounds a single page; 999 rows of notices stay well below it.
const maxBodyBytes = 64 << 20

type Handler struct {
	config *Config
	client *apphttp.Client
	tracer trace.Tracer
	logger logger.Logger
}

// NewHandler builds a fetcher. Requests of one Handler share its pacing limiter,
// so each concurrently running category should own its Handler.
func NewHandler(config *Config, tracer trace.Tracer, log logger.Logger) *Handler {
	if tracer == nil {
		tracer = otel.Tracer(TaskType)
	}
	return &Handler{
		config: config,
		client: apphttp.NewPacedClient(config.Timeout, config.Pacing, config.UserAgent),
		tracer: tracer,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	cat := input.Category
	schema := cat.RecordSchema()
	out := &Output{TotalCount: -1}
	log := h.logger.WithFields(map[string]interface{}{
		"category": cat.Name,
		"keyword":  input.Keyword,
		"range":    input.Range.String(),
	})

	fetched := 0
	for page := 1; ; page++ {
		if out.TotalCount >= 0 && page > lastPage(out.TotalCount, cat.PageSize) {
			break
		}
		if page > cat.MaxPages {
			out.Truncated = true
			log.Warn("max_pages reached, stopping pagination", map[string]interface{}{
				"maxPages": cat.MaxPages,
				"records":  fetched,
			})
			break
		}

		p, err := h.fetchWithRetry(ctx, log, input, page)
		if err != nil {
			return out, err
		}

		out.Pages++
		fetched += len(p.Items)
		if p.TotalCount >= 0 {
			out.TotalCount = p.TotalCount
		}
		for _, item := range p.Items {
			out.Records = append(out.Records, schema.Map(item))
		}
		metrics.PagesFetched.WithLabelValues(cat.Name).Inc()
		metrics.RecordsFetched.WithLabelValues(cat.Name).Add(float64(len(p.Items)))

		log.Debug("page fetched", map[string]interface{}{
			"page":       page,
			"items":      len(p.Items),
			"totalCount": out.TotalCount,
		})

		if len(p.Items) == 0 {
			break
		}
		if out.TotalCount >= 0 && fetched >= out.TotalCount {
			break
		}
		if len(p.Items) < cat.PageSize {
			break
		}
	}

	return out, nil
}

// lastPage is ceil(total/pageSize); pages past it are never requested.
func lastPage(total, pageSize int) int {
	if total <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

func (h *Handler) fetchWithRetry(ctx context.Context, log logger.Logger, input *Input, page int) (*Page, error) {
	policy := h.config.Retry
	policy.OnRetry = func(attempt int, err error) {
		metrics.FetchRetries.WithLabelValues(input.Category.Name, string(apperrors.CodeOf(err))).Inc()
	}

	var result *Page
	err := policy.Do(ctx, log, fmt.Sprintf("fetch page %d", page), func(ctx context.Context) error {
		p, err := h.fetchPage(ctx, input, page)
		if err != nil {
			return err
		}
		result = p
		return nil
	})
	return result, err
}

func (h *Handler) fetchPage(ctx context.Context, input *Input, page int) (*Page, error) {
	cat := input.Category
	ctx, span := h.tracer.Start(ctx, "fetch-pages.page", trace.WithAttributes(
		attribute.String("harvest.category", cat.Name),
		attribute.String("harvest.keyword", input.Keyword),
		attribute.String("harvest.range", input.Range.String()),
		attribute.Int("harvest.page", page),
	))
	defer span.End()

	p, err := h.doFetch(ctx, input, page)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.CodeOf(err)))
		return nil, err
	}
	span.SetAttributes(attribute.Int("harvest.items", len(p.Items)))
	return p, nil
}

func (h *Handler) doFetch(ctx context.Context, input *Input, page int) (*Page, error) {
	reqURL, err := h.buildURL(input, page)
	if err != nil {
		return nil, apperrors.NewConfigError("invalid endpoint", err)
	}

	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperrors.NewConfigError("invalid request", err)
	}

	resp, err := h.client.Do(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		cause := stripURL(err)
		return nil, apperrors.NewTransientNetworkError(cause.Error(), cause)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.NewTransientNetworkError("reading body", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, apperrors.NewRateLimitedError("HTTP 429", parseRetryAfter(resp.Header.Get("Retry-After")))
	case resp.StatusCode >= 500:
		return nil, apperrors.NewTransientNetworkError(fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		if err := checkErrorEnvelope(body); err != nil {
			return nil, err
		}
		return nil, apperrors.NewAPIResultError(strconv.Itoa(resp.StatusCode), fmt.Sprintf("HTTP %d: %s", resp.StatusCode, snippet(body)))
	}

	return decodePage(body, input.Category)
}

func (h *Handler) buildURL(input *Input, page int) (string, error) {
	cat := input.Category
	u, err := url.Parse(cat.Endpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	for k, v := range cat.StaticParams {
		q.Set(k, v)
	}
	q.Set(cat.ServiceKeyParam, serviceKey(h.config.ServiceKey))
	q.Set(cat.PageParam, strconv.Itoa(page))
	q.Set(cat.RowsParam, strconv.Itoa(cat.PageSize))
	begin, end := input.Range.Params(cat.DateLayout, cat.BeginSuffix, cat.EndSuffix)
	q.Set(cat.BeginParam, begin)
	q.Set(cat.EndParam, end)
	if input.Keyword != "" && cat.KeywordParam != "" {
		q.Set(cat.KeywordParam, input.Keyword)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// serviceKey accepts both the decoded and the URL-encoded form the portal hands out.
func serviceKey(key string) string {
	if strings.Contains(key, "%") {
		if decoded, err := url.QueryUnescape(key); err == nil {
			return decoded
		}
	}
	return key
}

// stripURL drops the request URL, which carries the service key, from a
// transport error.
func stripURL(err error) error {
	if ue, ok := err.(*url.Error); ok {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
