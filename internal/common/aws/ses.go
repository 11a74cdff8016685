// internal/common/aws/ses.go
package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

type sesAPI interface {
	SendEmail(ctx context.Context, in *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SESClient struct {
	client sesAPI
}

func NewSESClient(cfg aws.Config) *SESClient {
	return &SESClient{client: ses.NewFromConfig(cfg)}
}

// SendText sends a UTF-8 plain-text mail.
func (s *SESClient) SendText(ctx context.Context, from string, to []string, subject, body string) (string, error) {
	out, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(from),
		Destination: &types.Destination{ToAddresses: to},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("ses send failed: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}
