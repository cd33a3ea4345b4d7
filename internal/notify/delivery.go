package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/hackgods/clinic-appointment-assistant/internal/logging"
	"github.com/hackgods/clinic-appointment-assistant/internal/validate"
)

// Delivery reports the outcome of one notification. It is reported
// alongside, never instead of, the appointment outcome.
type Delivery struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type NotifierOptions struct {
	Timeout         time.Duration
	MaxAttempts     int
	InitialInterval time.Duration
}

// Notifier delivers e-mail with a per-attempt timeout and bounded retry.
// It never returns an error; failures are folded into Delivery.
type Notifier struct {
	sender EmailSender
	opts   NotifierOptions
	logger *logging.Logger
}

func NewNotifier(sender EmailSender, opts NotifierOptions, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = time.Second
	}
	return &Notifier{sender: sender, opts: opts, logger: logger}
}

func (n *Notifier) Send(ctx context.Context, msg EmailMessage) Delivery {
	to, ok := validate.CleanEmail(msg.To)
	if !ok {
		return Delivery{Success: false, Message: fmt.Sprintf("invalid email address: %s", msg.To)}
	}
	msg.To = to

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = n.opts.InitialInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, n.opts.Timeout)
		defer cancel()
		return struct{}{}, n.sender.Send(callCtx, msg)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(n.opts.MaxAttempts)))
	if err != nil {
		n.logger.Error("email delivery failed", "to", to, "subject", msg.Subject, "error", err)
		return Delivery{Success: false, Message: "email could not be delivered"}
	}
	return Delivery{Success: true, Message: "email sent to " + to}
}
