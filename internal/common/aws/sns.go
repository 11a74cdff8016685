// internal/common/aws/sns.go
package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type snsAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSClient struct {
	client snsAPI
}

func NewSNSClient(cfg aws.Config) *SNSClient {
	return &SNSClient{client: sns.NewFromConfig(cfg)}
}

// PublishMessage sends message to topicARN. SNS caps subjects at 100 characters.
func (s *SNSClient) PublishMessage(ctx context.Context, topicARN, subject, message string) (string, error) {
	out, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(topicARN),
		Subject:  aws.String(truncateRunes(subject, 100)),
		Message:  aws.String(message),
	})
	if err != nil {
		return "", fmt.Errorf("sns publish failed: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
