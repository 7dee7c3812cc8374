package email

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retrying retries a Sender with exponential backoff. Attempts counts
// retries after the first try.
type Retrying struct {
	Sender   Sender
	Attempts int

	// InitialInterval defaults to 500ms.
	InitialInterval time.Duration
}

func (r *Retrying) Send(ctx context.Context, msg Message) error {
	if r.Attempts <= 0 {
		return r.Sender.Send(ctx, msg)
	}

	operation := func() error {
		err := r.Sender.Send(ctx, msg)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	if r.InitialInterval > 0 {
		b.InitialInterval = r.InitialInterval
	}

	return backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.Attempts)), ctx),
	)
}
