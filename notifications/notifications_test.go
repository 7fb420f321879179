package notifications

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/malwarebo/invoicer/models"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func paidInvoice() *models.Invoice {
	return &models.Invoice{
		ID:     "inv-1",
		Number: "INV-2026-0042",
		Total:  decimal.RequireFromString("190.00"),
		Client: &models.Client{Name: "Acme", Email: "billing@acme.test"},
	}
}

func TestMemoryQueue_EnqueueFull(t *testing.T) {
	q := CreateMemoryQueue(1)
	ctx := context.Background()

	if err := q.Enqueue(ctx, &Notification{ID: "1"}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := q.Enqueue(ctx, &Notification{ID: "2"}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Enqueue() error = %v, want ErrQueueFull", err)
	}

	n, err := q.Dequeue(ctx)
	if err != nil || n.ID != "1" {
		t.Fatalf("Dequeue() = %v, %v", n, err)
	}
}

func TestMemoryQueue_Close(t *testing.T) {
	q := CreateMemoryQueue(4)
	q.Close()
	q.Close()

	if err := q.Enqueue(context.Background(), &Notification{}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Enqueue() after Close error = %v, want ErrQueueClosed", err)
	}
	if _, err := q.Dequeue(context.Background()); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Dequeue() after Close error = %v, want ErrQueueClosed", err)
	}
}

func TestMemoryQueue_DequeueHonoursContext(t *testing.T) {
	q := CreateMemoryQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := q.Dequeue(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Dequeue() error = %v, want DeadlineExceeded", err)
	}
}

func TestRender_PaymentReceived(t *testing.T) {
	n := NewPaymentReceived(paidInvoice(), "sgd", "https://pay.example.com/i/abc")

	msg, err := Render(n)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if msg.To != "billing@acme.test" {
		t.Errorf("To = %s", msg.To)
	}
	if msg.Subject != "Payment received for INV-2026-0042" {
		t.Errorf("Subject = %s", msg.Subject)
	}
	for _, want := range []string{"SGD 190.00", "INV-2026-0042", "https://pay.example.com/i/abc"} {
		if !strings.Contains(msg.Body, want) {
			t.Errorf("Body missing %q:\n%s", want, msg.Body)
		}
	}

	if _, err := Render(&Notification{Type: "reminder"}); err == nil {
		t.Error("Render() should reject unknown types")
	}
}

func TestDispatcher_DeliversQueuedNotifications(t *testing.T) {
	q := CreateMemoryQueue(8)
	mailer := &recordingMailer{}
	d := CreateDispatcher(q, mailer, 2)
	d.Start(context.Background())

	for i := 0; i < 3; i++ {
		if err := q.Enqueue(context.Background(), NewPaymentReceived(paidInvoice(), "sgd", "")); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for mailer.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	d.Stop()

	if got := mailer.count(); got != 3 {
		t.Errorf("sent = %d, want 3", got)
	}
}

// brokenQueue fails every read, like a Redis queue whose server is down.
type brokenQueue struct {
	mu    sync.Mutex
	reads int
}

func (q *brokenQueue) Enqueue(ctx context.Context, n *Notification) error { return nil }

func (q *brokenQueue) Dequeue(ctx context.Context) (*Notification, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reads++
	return nil, errors.New("connection refused")
}

func (q *brokenQueue) Close() error { return nil }

func (q *brokenQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.reads
}

func TestDispatcher_BacksOffOnQueueErrors(t *testing.T) {
	q := &brokenQueue{}
	d := CreateDispatcher(q, &recordingMailer{}, 1)
	d.backoff.BaseDelay = 20 * time.Millisecond
	d.backoff.Jitter = false

	d.Start(context.Background())
	time.Sleep(200 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop() did not interrupt the backoff wait")
	}

	// 20ms, 40ms, 80ms, 160ms: at most five reads fit in 200ms.
	if got := q.count(); got < 2 || got > 5 {
		t.Errorf("Dequeue calls = %d, want between 2 and 5", got)
	}
}

func TestDispatcher_DeliverErrors(t *testing.T) {
	d := CreateDispatcher(CreateMemoryQueue(1), &recordingMailer{err: errors.New("smtp down")}, 1)

	if err := d.Deliver(context.Background(), NewPaymentReceived(paidInvoice(), "sgd", "")); err == nil {
		t.Error("Deliver() should surface mailer errors")
	}

	noRecipient := NewPaymentReceived(&models.Invoice{Number: "INV-2026-0001"}, "sgd", "")
	if err := CreateDispatcher(CreateMemoryQueue(1), &recordingMailer{}, 1).Deliver(context.Background(), noRecipient); err == nil {
		t.Error("Deliver() should reject notifications without recipient")
	}
}

func TestBuildMessage(t *testing.T) {
	raw := buildMessage("Invoicer <billing@example.com>", Message{To: "a@b.test", Subject: "Hi", Body: "Body"})

	if !strings.HasPrefix(raw, "From: Invoicer <billing@example.com>\r\nTo: a@b.test\r\nSubject: Hi\r\n") {
		t.Errorf("buildMessage() headers = %q", raw)
	}
	if !strings.HasSuffix(raw, "\r\n\r\nBody") {
		t.Errorf("buildMessage() body = %q", raw)
	}
	if got := parseAddress("Invoicer <billing@example.com>"); got != "billing@example.com" {
		t.Errorf("parseAddress() = %s", got)
	}
}
