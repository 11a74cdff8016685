package publishdatasetevent

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "procurement-harvester/internal/common/errors"
	"procurement-harvester/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	suffix, id string
	event      Event
	err        error
}

func (f *fakePublisher) PublishJSON(ctx context.Context, suffix, messageID string, v interface{}) error {
	f.suffix, f.id = suffix, messageID
	f.event = v.(Event)
	return f.err
}

func TestExecute_PublishesEvent(t *testing.T) {
	pub := &fakePublisher{}
	h := NewHandler(pub, logger.NewTestLogger(t))
	h.now = func() time.Time { return time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC) }

	out, err := h.Execute(context.Background(), &Input{
		RunID: "run-1", Category: "공사", Dataset: "나라장터_공고_공사.csv",
		BlobID: "blob-9", Added: 4, Total: 1004,
	})

	require.NoError(t, err)
	assert.Equal(t, "run-1/나라장터_공고_공사.csv", out.MessageID)
	assert.Equal(t, "공사", pub.suffix)
	assert.Equal(t, Event{
		RunID: "run-1", Category: "공사", Dataset: "나라장터_공고_공사.csv",
		BlobID: "blob-9", Added: 4, Total: 1004,
		OccurredAt: time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC),
	}, pub.event)
}

func TestExecute_PublishFailure(t *testing.T) {
	h := NewHandler(&fakePublisher{err: errors.New("channel/connection is not open")}, logger.NewTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{RunID: "r", Category: "c", Dataset: "d.csv"})

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeSinkFailed, apperrors.CodeOf(err))
}
