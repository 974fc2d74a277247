// Package ses implements a Sender that delivers replies via AWS SES v2.
package ses

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/aescanero/dago-node-triage/internal/send"
)

// Config holds the configuration for creating a Sender.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Sender          string
}

// Sender delivers replies via the AWS SES v2 API.
type Sender struct {
	sender string
	client SendEmailAPI
}

// SendEmailAPI is the interface for the SES v2 SendEmail operation.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// New creates a new Sender with the given configuration. Static credentials
// are used when both keys are set; otherwise the default AWS chain applies.
func New(ctx context.Context, cfg Config) (*Sender, error) {
	var opts []func(*awsconfig.LoadOptions) error

	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Sender{
		sender: cfg.Sender,
		client: sesv2.NewFromConfig(awsCfg),
	}, nil
}

// NewWithClient creates a Sender with a custom client.
func NewWithClient(sender string, client SendEmailAPI) *Sender {
	return &Sender{
		sender: sender,
		client: client,
	}
}

// Send delivers a reply as a simple text email. It makes a single API call;
// the workflow owns retry decisions.
func (s *Sender) Send(ctx context.Context, msg *send.Message) error {
	if _, err := s.client.SendEmail(ctx, buildInput(s.sender, msg)); err != nil {
		return fmt.Errorf("SES API request failed: %w", err)
	}
	return nil
}

// Name returns the sender name.
func (s *Sender) Name() string {
	return "ses"
}

// buildInput creates a SES SendEmailInput for a plain-text reply.
func buildInput(sender string, msg *send.Message) *sesv2.SendEmailInput {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(sender),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(msg.Subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Text: &types.Content{
						Data:    aws.String(msg.Body),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	if msg.InReplyTo != "" {
		input.Content.Simple.Headers = []types.MessageHeader{
			{Name: aws.String("In-Reply-To"), Value: aws.String(msg.InReplyTo)},
			{Name: aws.String("References"), Value: aws.String(msg.InReplyTo)},
		}
	}

	return input
}
