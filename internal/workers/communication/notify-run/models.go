// internal/workers/communication/notify-run/models.go
package notifyrun

import (
	"context"
	"time"
)

type Input struct {
	RunID      string
	Start      time.Time
	End        time.Time
	Duration   time.Duration
	Categories []CategorySummary
}

// CategorySummary is one row of the run report.
type CategorySummary struct {
	Name     string
	Fetched  int
	Added    int
	Total    int
	Failures int
	Status   string // ok | empty | failed
	Error    string
}

type Output struct {
	Subject      string `json:"subject"`
	SNSMessageID string `json:"snsMessageId,omitempty"`
	SESMessageID string `json:"sesMessageId,omitempty"`
}

// Publisher is satisfied by aws.SNSClient.
type Publisher interface {
	PublishMessage(ctx context.Context, topicARN, subject, message string) (string, error)
}

// Mailer is satisfied by aws.SESClient.
type Mailer interface {
	SendText(ctx context.Context, from string, to []string, subject, body string) (string, error)
}
