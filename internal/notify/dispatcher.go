package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Dispatcher sends each notification on its own goroutine. Failures and
// timeouts are logged and dropped.
type Dispatcher struct {
	mailer     Mailer
	recipients []string
	timeout    time.Duration
	log        *zap.Logger
	wg         sync.WaitGroup
}

// NewDispatcher returns a dispatcher; with no mailer or no recipients every
// Notify is a no-op.
func NewDispatcher(mailer Mailer, recipients []string, timeout time.Duration, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		mailer:     mailer,
		recipients: recipients,
		timeout:    timeout,
		log:        log.Named("notify"),
	}
}

func (d *Dispatcher) Enabled() bool {
	return d.mailer != nil && len(d.recipients) > 0
}

func (d *Dispatcher) Notify(subject, body string) {
	if !d.Enabled() {
		d.log.Debug("notification skipped, mail disabled", zap.String("subject", subject))
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.deliver(subject, body)
	}()
}

func (d *Dispatcher) deliver(subject, body string) {
	done := make(chan error, 1)
	go func() {
		done <- d.mailer.Send(subject, body, d.recipients)
	}()

	select {
	case err := <-done:
		if err != nil {
			d.log.Warn("notification failed", zap.String("subject", subject), zap.Error(err))
			return
		}
		d.log.Info("notification sent", zap.String("subject", subject), zap.Int("recipients", len(d.recipients)))
	case <-time.After(d.timeout):
		d.log.Warn("notification timed out", zap.String("subject", subject), zap.Duration("timeout", d.timeout))
	}
}

// Wait blocks until every dispatched notification has finished or timed out.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
