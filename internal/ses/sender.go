// Package ses is the alternate delivery transport: it sends relay chunks
// through AWS SES v2 instead of MailerSend.
package ses

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/ignite/listmonk-relay/internal/config"
	"github.com/ignite/listmonk-relay/internal/mailersend"
	"github.com/ignite/listmonk-relay/internal/pkg/logger"
)

const charset = "UTF-8"

// API is the subset of the SES v2 client the sender uses.
type API interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Sender delivers chunks through SES.
type Sender struct {
	client           API
	configurationSet string
}

// NewSender builds an SES v2 client. Static credentials are used when both
// keys are set, otherwise the default AWS credential chain.
func NewSender(ctx context.Context, cfg config.SESConfig) (*Sender, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewSenderWithClient(sesv2.NewFromConfig(awsCfg), cfg.ConfigurationSet), nil
}

// NewSenderWithClient wraps an existing SES client.
func NewSenderWithClient(client API, configurationSet string) *Sender {
	return &Sender{client: client, configurationSet: configurationSet}
}

// SendBatch sends each email of the chunk individually; SES has no
// non-templated bulk call. The chunk counts as failed if any email is
// rejected, and the result message names the first rejection.
func (s *Sender) SendBatch(ctx context.Context, emails []mailersend.Email) (*mailersend.SendResult, error) {
	var (
		rejected int
		firstErr error
		lastID   string
	)
	for i := range emails {
		id, err := s.send(ctx, &emails[i])
		if err != nil {
			rejected++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		lastID = id
	}

	if rejected == len(emails) && firstErr != nil {
		return nil, fmt.Errorf("ses: all %d emails rejected: %w", rejected, firstErr)
	}
	if rejected > 0 {
		return &mailersend.SendResult{
			StatusCode: http.StatusBadGateway,
			Status:     "502 Bad Gateway",
			Message:    fmt.Sprintf("%d of %d emails rejected: %v", rejected, len(emails), firstErr),
			Count:      len(emails),
		}, nil
	}
	return &mailersend.SendResult{
		StatusCode:  http.StatusOK,
		Status:      "200 OK",
		BulkEmailID: lastID,
		Count:       len(emails),
	}, nil
}

func (s *Sender) send(ctx context.Context, email *mailersend.Email) (string, error) {
	input := BuildInput(email, s.configurationSet)
	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		logger.Warn("ses rejected email", "recipient", firstRecipient(email), "error", err)
		return "", err
	}
	return aws.ToString(out.MessageId), nil
}

// BuildInput maps a relay email to an SES SendEmail request.
func BuildInput(email *mailersend.Email, configurationSet string) *sesv2.SendEmailInput {
	to := make([]string, len(email.To))
	for i, a := range email.To {
		to[i] = a.String()
	}

	body := &types.Body{}
	if email.HTML != "" {
		body.Html = &types.Content{Data: aws.String(email.HTML), Charset: aws.String(charset)}
	}
	if email.Text != "" {
		body.Text = &types.Content{Data: aws.String(email.Text), Charset: aws.String(charset)}
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(email.From.String()),
		Destination:      &types.Destination{ToAddresses: to},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(email.Subject), Charset: aws.String(charset)},
				Body:    body,
			},
		},
	}
	if email.ReplyTo != nil {
		input.ReplyToAddresses = []string{email.ReplyTo.String()}
	}
	if configurationSet != "" {
		input.ConfigurationSetName = aws.String(configurationSet)
	}
	// SES tag values only allow [A-Za-z0-9_-], so only the campaign uuid
	// is carried over.
	if campaign, ok := mailersend.CampaignFromTags(email.Tags); ok {
		input.EmailTags = []types.MessageTag{
			{Name: aws.String("campaign_uuid"), Value: aws.String(campaign)},
		}
	}
	return input
}

func firstRecipient(email *mailersend.Email) string {
	if len(email.To) == 0 {
		return ""
	}
	return email.To[0].Email
}
