package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/malwarebo/invoicer/models"
	"github.com/malwarebo/invoicer/testutil"
)

func TestInvoiceNumberer_Next(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, want := range []string{"INV-2026-0001", "INV-2026-0002", "INV-2026-0003"} {
		got, err := f.numberer.Next(ctx, 2026)
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if got != want {
			t.Errorf("Next() = %s, want %s", got, want)
		}
	}

	got, err := f.numberer.Next(ctx, 2027)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if got != "INV-2027-0001" {
		t.Errorf("Next() for a new year = %s, want INV-2027-0001", got)
	}
}

func TestInvoiceNumberer_SeedsFromExistingNumbers(t *testing.T) {
	f := newFixture(t)
	due := models.NewDate(2026, 2, 1)
	f.seed(t, "INV-2026-0007", "tok-a", models.InvoiceStatusPending, due)
	f.seed(t, "2026-0012", "tok-b", models.InvoiceStatusPaid, due)
	f.seed(t, "INV-2025-0099", "tok-c", models.InvoiceStatusPaid, due)

	got, err := f.numberer.Next(context.Background(), 2026)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if got != "INV-2026-0013" {
		t.Errorf("Next() = %s, want INV-2026-0013", got)
	}
}

func TestInvoiceNumberer_CorruptSuffix(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "INV-2026-00X1", "tok-a", models.InvoiceStatusPending, models.NewDate(2026, 2, 1))

	_, err := f.numberer.Next(context.Background(), 2026)
	if !errors.Is(err, ErrCorruptInvoiceNumber) {
		t.Errorf("Next() error = %v, want %v", err, ErrCorruptInvoiceNumber)
	}

	_, err = f.numberer.Peek(context.Background(), 2026)
	if !errors.Is(err, ErrCorruptInvoiceNumber) {
		t.Errorf("Peek() error = %v, want %v", err, ErrCorruptInvoiceNumber)
	}
}

func TestInvoiceNumberer_PeekDoesNotConsume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		got, err := f.numberer.Peek(ctx, 2026)
		if err != nil {
			t.Fatalf("Peek() error = %v", err)
		}
		if got != "INV-2026-0001" {
			t.Errorf("Peek() = %s, want INV-2026-0001", got)
		}
	}

	if got, _ := f.numberer.Next(ctx, 2026); got != "INV-2026-0001" {
		t.Errorf("Next() = %s, want INV-2026-0001", got)
	}
	if got, _ := f.numberer.Peek(ctx, 2026); got != "INV-2026-0002" {
		t.Errorf("Peek() after Next = %s, want INV-2026-0002", got)
	}
}

// The SQLite test database has a single connection, so callers here queue on
// the pool rather than on the row lock. TestInvoiceNumberer_ConcurrentPostgres
// covers real lock contention.
func TestInvoiceNumberer_Concurrent(t *testing.T) {
	assertConcurrentNumbers(t, newFixture(t), 10)
}

func TestInvoiceNumberer_ConcurrentPostgres(t *testing.T) {
	assertConcurrentNumbers(t, newFixtureOn(t, testutil.OpenPostgresDB(t)), 25)
}

func assertConcurrentNumbers(t *testing.T, f *fixture, workers int) {
	t.Helper()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[string]bool)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			number, err := f.numberer.Next(ctx, 2026)
			if err != nil {
				t.Errorf("Next() error = %v", err)
				return
			}
			mu.Lock()
			seen[number] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != workers {
		t.Fatalf("issued %d distinct numbers, want %d", len(seen), workers)
	}
	for i := 1; i <= workers; i++ {
		if want := FormatInvoiceNumber(2026, i); !seen[want] {
			t.Errorf("number %s was not issued", want)
		}
	}
}

func TestParseSuffix(t *testing.T) {
	tests := []struct {
		number  string
		want    int
		wantErr bool
	}{
		{"INV-2026-0001", 1, false},
		{"INV-2026-0420", 420, false},
		{"2026-0012", 12, false},
		{"INV-2026-12345", 12345, false},
		{"INV-2026-ABCD", 0, true},
		{"INV-2025-0001", 0, true},
		{"INV-2026-", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.number, func(t *testing.T) {
			got, err := parseSuffix(tt.number, 2026)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSuffix() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseSuffix() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestInvoiceNumberer_Observe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.numberer.Next(ctx, 2026); err != nil {
		t.Fatalf("Next() error = %v", err)
	}

	tests := []struct {
		number string
		want   string
	}{
		{"INV-2026-0005", "INV-2026-0006"},
		{"INV-2026-0003", "INV-2026-0006"},
		{"2026-0009", "INV-2026-0010"},
		{"CUSTOM-1", "INV-2026-0010"},
		{"INV-2026-ABCD", "INV-2026-0010"},
	}

	for _, tt := range tests {
		t.Run(tt.number, func(t *testing.T) {
			if err := f.numberer.Observe(ctx, tt.number); err != nil {
				t.Fatalf("Observe() error = %v", err)
			}
			got, err := f.numberer.Peek(ctx, 2026)
			if err != nil {
				t.Fatalf("Peek() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Peek() = %s, want %s", got, tt.want)
			}
		})
	}
}
