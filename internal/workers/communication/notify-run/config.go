// internal/workers/communication/notify-run/config.go
package notifyrun

import (
	"fmt"

	"procurement-harvester/internal/common/config"
)

type Config struct {
	SNSEnabled bool
	TopicARN   string
	SESEnabled bool
	FromEmail  string
	Recipients []string
}

func LoadConfig(cfg *config.Config) *Config {
	n := cfg.Notifications
	return &Config{
		SNSEnabled: n.SNS.Enabled,
		TopicARN:   n.SNS.TopicARN,
		SESEnabled: n.SES.Enabled,
		FromEmail:  n.SES.FromEmail,
		Recipients: n.SES.Recipients,
	}
}

func (c *Config) Validate() error {
	if c.SNSEnabled && c.TopicARN == "" {
		return fmt.Errorf("sns topic_arn is required")
	}
	if c.SESEnabled {
		if c.FromEmail == "" {
			return fmt.Errorf("ses from_email is required")
		}
		if len(c.Recipients) == 0 {
			return fmt.Errorf("ses recipients are required")
		}
	}
	return nil
}
