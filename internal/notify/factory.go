package notify

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/pkg/logging"
)

// NewEmailSender picks the delivery backend named by EMAIL_PROVIDER.
func NewEmailSender(ctx context.Context, cfg config.Config, logger *logging.Logger) (EmailSender, error) {
	switch cfg.EmailProvider {
	case "sendgrid":
		sender := NewSendGridSender(SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger)
		if sender == nil {
			return nil, fmt.Errorf("notify: SENDGRID_API_KEY is required for the sendgrid provider")
		}
		return sender, nil
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("notify: load aws config: %w", err)
		}
		return NewSESSender(sesv2.NewFromConfig(awsCfg), SESConfig{
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger), nil
	case "", "stub":
		return NewStubEmailSender(logger), nil
	}
	return nil, fmt.Errorf("notify: unknown email provider %q", cfg.EmailProvider)
}
