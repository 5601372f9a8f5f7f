package mailer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/learning-panda-ai/website/internal/devotp"
	"github.com/learning-panda-ai/website/internal/logger"
)

// DevSender keeps codes in the dev OTP store instead of emailing them. Development only.
type DevSender struct {
	store devotp.Store
	ttl   time.Duration
	now   func() time.Time
	log   *zap.Logger
}

// NewDevSender returns a sender that writes to store; codes stay readable for ttl.
func NewDevSender(store devotp.Store, ttl time.Duration, log *zap.Logger) *DevSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &DevSender{
		store: store,
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
		log:   log.Named("dev_mailer"),
	}
}

// SendOTP stores the code for GET /dev/otp.
func (d *DevSender) SendOTP(ctx context.Context, to, code string) error {
	d.store.Put(ctx, to, code, d.now().Add(d.ttl))
	d.log.Info("sign-in code stored for dev retrieval", zap.String("email", logger.MaskEmail(to)))
	return nil
}
