package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/malwarebo/invoicer/monitoring"
	"github.com/malwarebo/invoicer/utils"
)

// maxBackoffStep caps the failure count fed to the backoff so the delay
// stays at MaxDelay instead of overflowing.
const maxBackoffStep = 16

// Dispatcher drains a Queue with a fixed number of workers and turns each
// notification into mail.
type Dispatcher struct {
	queue   Queue
	mailer  Mailer
	workers int
	backoff *utils.RetryConfig
	logger  *utils.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func CreateDispatcher(queue Queue, mailer Mailer, workers int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		queue:   queue,
		mailer:  mailer,
		workers: workers,
		backoff: &utils.RetryConfig{
			BaseDelay:   100 * time.Millisecond,
			MaxDelay:    30 * time.Second,
			Multiplier:  2.0,
			Jitter:      true,
			BackoffType: utils.ExponentialJitter,
		},
		logger: utils.NewLogger("notifications"),
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run(ctx, i)
	}

	d.logger.Info(ctx, "Notification dispatcher started", map[string]interface{}{
		"workers": d.workers,
	})
}

// Stop cancels the workers and waits for in-flight deliveries to finish.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context, worker int) {
	defer d.wg.Done()

	failures := 0
	for {
		n, err := d.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrQueueClosed) {
				return
			}
			if failures < maxBackoffStep {
				failures++
			}
			delay := d.backoff.Delay(failures)
			d.logger.Error(ctx, "Failed to read notification", map[string]interface{}{
				"worker":   worker,
				"error":    err.Error(),
				"failures": failures,
				"retry_in": delay.String(),
			})

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}
		failures = 0

		if err := d.Deliver(ctx, n); err != nil {
			monitoring.RecordNotification(string(n.Type), "failed")
			d.logger.Error(ctx, "Failed to deliver notification", map[string]interface{}{
				"worker":       worker,
				"notification": n.ID,
				"type":         n.Type,
				"invoice":      n.InvoiceNumber,
				"error":        err.Error(),
			})
		}
	}
}

// Deliver renders and sends one notification.
func (d *Dispatcher) Deliver(ctx context.Context, n *Notification) error {
	msg, err := Render(n)
	if err != nil {
		return err
	}
	if msg.To == "" {
		return fmt.Errorf("notification %s has no recipient", n.ID)
	}

	if err := d.mailer.Send(ctx, msg); err != nil {
		return err
	}

	monitoring.RecordNotification(string(n.Type), "delivered")
	d.logger.Info(ctx, "Notification delivered", map[string]interface{}{
		"notification": n.ID,
		"type":         n.Type,
		"invoice":      n.InvoiceNumber,
	})
	return nil
}

func Render(n *Notification) (Message, error) {
	switch n.Type {
	case NotificationPaymentReceived:
		var body strings.Builder
		fmt.Fprintf(&body, "Hello %s,\n\n", n.ClientName)
		fmt.Fprintf(&body, "We received your payment of %s %s for invoice %s. Thank you.\n",
			strings.ToUpper(n.Currency), n.Amount.StringFixed(2), n.InvoiceNumber)
		if n.PublicURL != "" {
			fmt.Fprintf(&body, "\nYou can view the invoice at %s\n", n.PublicURL)
		}

		return Message{
			To:      n.ClientEmail,
			Subject: "Payment received for " + n.InvoiceNumber,
			Body:    body.String(),
		}, nil
	default:
		return Message{}, fmt.Errorf("unknown notification type %q", n.Type)
	}
}
