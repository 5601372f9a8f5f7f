package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/ses/sesiface"
)

const charsetUTF8 = "UTF-8"

// SESConfig configures the SES sender. Empty keys fall back to the default AWS credential chain.
type SESConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	From            string
	// CodeTTL is quoted in the email body.
	CodeTTL time.Duration
	// Timeout bounds a single send.
	Timeout time.Duration
}

// SESSender delivers sign-in codes through Amazon SES.
type SESSender struct {
	client  sesiface.SESAPI
	from    string
	codeTTL time.Duration
	timeout time.Duration
}

// NewSESSender builds an SES client for cfg.Region.
func NewSESSender(cfg SESConfig) (*SESSender, error) {
	if cfg.Region == "" {
		return nil, errors.New("mailer: AWS_REGION is required")
	}
	if cfg.From == "" {
		return nil, errors.New("mailer: EMAIL_FROM is required")
	}
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("mailer: aws session: %w", err)
	}
	return NewSESSenderWithClient(ses.New(sess), cfg), nil
}

// NewSESSenderWithClient wraps an existing SES client.
func NewSESSenderWithClient(client sesiface.SESAPI, cfg SESConfig) *SESSender {
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 10 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SESSender{client: client, from: cfg.From, codeTTL: cfg.CodeTTL, timeout: cfg.Timeout}
}

// SendOTP renders the sign-in email and sends it. A send that runs past the timeout
// returns an error wrapping context.DeadlineExceeded.
func (s *SESSender) SendOTP(ctx context.Context, to, code string) error {
	msg, err := RenderOTP(code, s.codeTTL)
	if err != nil {
		return fmt.Errorf("mailer: render: %w", err)
	}
	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err = s.client.SendEmailWithContext(sendCtx, &ses.SendEmailInput{
		Source:      aws.String(s.from),
		Destination: &ses.Destination{ToAddresses: []*string{aws.String(to)}},
		Message: &ses.Message{
			Subject: &ses.Content{Charset: aws.String(charsetUTF8), Data: aws.String(msg.Subject)},
			Body: &ses.Body{
				Html: &ses.Content{Charset: aws.String(charsetUTF8), Data: aws.String(msg.HTML)},
				Text: &ses.Content{Charset: aws.String(charsetUTF8), Data: aws.String(msg.Text)},
			},
		},
	})
	if err != nil {
		if errors.Is(sendCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("mailer: ses send: %w", context.DeadlineExceeded)
		}
		return fmt.Errorf("mailer: ses send: %w", err)
	}
	return nil
}
