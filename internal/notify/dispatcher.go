package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kiranshivaraju/propchat/internal/metrics"
	"github.com/kiranshivaraju/propchat/pkg/models"
)

const defaultSendTimeout = 30 * time.Second

// Dispatcher sends emails in the background. Failures are logged and counted,
// never returned to the caller.
type Dispatcher struct {
	sender  EmailSender
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher over sender.
func NewDispatcher(sender EmailSender, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sender: sender, logger: logger, timeout: defaultSendTimeout}
}

// Dispatch queues email for delivery and returns immediately. The send is
// detached from the request context so it outlives the HTTP response.
func (d *Dispatcher) Dispatch(kind Kind, email models.Email) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.sender.Send(ctx, email); err != nil {
			metrics.EmailsTotal.WithLabelValues(string(kind), "failed").Inc()
			d.logger.Error("email delivery failed",
				"kind", string(kind),
				"to", email.To,
				"error", err,
			)
			return
		}
		metrics.EmailsTotal.WithLabelValues(string(kind), "sent").Inc()
		d.logger.Info("email sent", "kind", string(kind), "to", email.To)
	}()
}

// Wait blocks until every dispatched email finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
