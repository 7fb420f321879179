package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/malwarebo/invoicer/models"
	"github.com/malwarebo/invoicer/stores"
	"github.com/malwarebo/invoicer/utils"
)

// ErrCorruptInvoiceNumber is returned when an existing number for the year
// does not end in an integer, so the counter cannot be seeded safely.
var ErrCorruptInvoiceNumber = errors.New("existing invoice number has a non-numeric suffix")

const invoiceNumberFormat = "INV-%d-%04d"

func FormatInvoiceNumber(year, value int) string {
	return fmt.Sprintf(invoiceNumberFormat, year, value)
}

type InvoiceNumberer struct {
	tx        stores.Transactor
	sequences *stores.SequenceStore
	logger    *utils.Logger
}

func CreateInvoiceNumberer(tx stores.Transactor, sequences *stores.SequenceStore) *InvoiceNumberer {
	return &InvoiceNumberer{
		tx:        tx,
		sequences: sequences,
		logger:    utils.NewLogger("numbering"),
	}
}

// Next issues the next number for year. The year's counter row is locked for
// the duration of the enclosing transaction, so concurrent callers are
// serialized; when ctx already carries a transaction the lock is held until
// that transaction ends.
func (n *InvoiceNumberer) Next(ctx context.Context, year int) (string, error) {
	var number string

	err := n.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		seq, err := n.lockOrSeed(txCtx, year)
		if err != nil {
			return err
		}

		seq.LastValue++
		if err := n.sequences.Advance(txCtx, seq); err != nil {
			return err
		}
		number = FormatInvoiceNumber(year, seq.LastValue)
		return nil
	})
	if err != nil {
		return "", err
	}

	return number, nil
}

// Observe moves the counter for the number's year up to the number's suffix
// when it is ahead. Numbers outside the INV-<year>-NNNN and <year>-NNNN forms
// are ignored.
func (n *InvoiceNumberer) Observe(ctx context.Context, number string) error {
	year, value, ok := splitNumber(number)
	if !ok {
		return nil
	}

	return n.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		seq, err := n.lockOrSeed(txCtx, year)
		if err != nil {
			return err
		}
		if value <= seq.LastValue {
			return nil
		}

		n.logger.Info(txCtx, "Advancing invoice sequence past used number", map[string]interface{}{
			"year":       year,
			"number":     number,
			"last_value": seq.LastValue,
		})
		seq.LastValue = value
		return n.sequences.Advance(txCtx, seq)
	})
}

// Peek reports the number Next would issue without consuming it.
func (n *InvoiceNumberer) Peek(ctx context.Context, year int) (string, error) {
	seq, err := n.sequences.Get(ctx, year)
	if err != nil {
		return "", err
	}
	if seq != nil {
		return FormatInvoiceNumber(year, seq.LastValue+1), nil
	}

	last, err := n.highestSuffix(ctx, year)
	if err != nil {
		return "", err
	}
	return FormatInvoiceNumber(year, last+1), nil
}

func (n *InvoiceNumberer) lockOrSeed(ctx context.Context, year int) (*models.InvoiceSequence, error) {
	seq, err := n.sequences.Lock(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("failed to lock invoice sequence: %w", err)
	}
	if seq != nil {
		return seq, nil
	}

	last, err := n.highestSuffix(ctx, year)
	if err != nil {
		return nil, err
	}
	if err := n.sequences.Seed(ctx, year, last); err != nil {
		return nil, fmt.Errorf("failed to seed invoice sequence: %w", err)
	}

	n.logger.Info(ctx, "Seeded invoice sequence", map[string]interface{}{
		"year":       year,
		"last_value": last,
	})

	seq, err = n.sequences.Lock(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("failed to lock invoice sequence: %w", err)
	}
	if seq == nil {
		return nil, fmt.Errorf("invoice sequence for %d missing after seed", year)
	}
	return seq, nil
}

// highestSuffix scans the numbers already used in year, in both the INV-<year>-
// and the legacy <year>- form.
func (n *InvoiceNumberer) highestSuffix(ctx context.Context, year int) (int, error) {
	numbers, err := n.sequences.NumbersForYear(ctx, year)
	if err != nil {
		return 0, fmt.Errorf("failed to scan invoice numbers: %w", err)
	}

	highest := 0
	for _, number := range numbers {
		value, err := parseSuffix(number, year)
		if err != nil {
			n.logger.Error(ctx, "Invoice number has a non-numeric suffix", map[string]interface{}{
				"number": number,
			})
			return 0, fmt.Errorf("%w: %s", ErrCorruptInvoiceNumber, number)
		}
		if value > highest {
			highest = value
		}
	}
	return highest, nil
}

func parseSuffix(number string, year int) (int, error) {
	prefix := fmt.Sprintf("%d-", year)
	suffix := strings.TrimPrefix(number, "INV-")
	if !strings.HasPrefix(suffix, prefix) {
		return 0, fmt.Errorf("number %q is not in year %d", number, year)
	}
	return strconv.Atoi(strings.TrimPrefix(suffix, prefix))
}

func splitNumber(number string) (year, value int, ok bool) {
	parts := strings.Split(strings.TrimPrefix(number, "INV-"), "-")
	if len(parts) != 2 || len(parts[0]) != 4 {
		return 0, 0, false
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	value, err = strconv.Atoi(parts[1])
	if err != nil || value < 0 {
		return 0, 0, false
	}
	return year, value, true
}
