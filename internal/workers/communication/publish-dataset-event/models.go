// internal/workers/communication/publish-dataset-event/models.go
package publishdatasetevent

import (
	"context"
	"time"
)

type Input struct {
	RunID    string
	Category string
	Dataset  string
	BlobID   string
	Added    int
	Total    int
	Created  bool
}

// Event is the message body consumers receive.
type Event struct {
	RunID      string    `json:"runId"`
	Category   string    `json:"category"`
	Dataset    string    `json:"dataset"`
	BlobID     string    `json:"blobId,omitempty"`
	Added      int       `json:"added"`
	Total      int       `json:"total"`
	Created    bool      `json:"created"`
	OccurredAt time.Time `json:"occurredAt"`
}

type Output struct {
	MessageID string `json:"messageId"`
}

// Publisher is satisfied by messaging.Publisher.
type Publisher interface {
	PublishJSON(ctx context.Context, suffix, messageID string, v interface{}) error
}
