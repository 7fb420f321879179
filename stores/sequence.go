package stores

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/malwarebo/invoicer/models"
)

type SequenceStore struct {
	BaseStore
}

func CreateSequenceStore(db *gorm.DB) *SequenceStore {
	return &SequenceStore{BaseStore: BaseStore{db: db}}
}

// Lock returns the counter row for year, locked until the transaction in ctx
// ends. It returns nil when the year has no row yet.
func (s *SequenceStore) Lock(ctx context.Context, year int) (*models.InvoiceSequence, error) {
	var seq models.InvoiceSequence
	err := forUpdate(s.GetDB(ctx)).First(&seq, "year = ?", year).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &seq, nil
}

func (s *SequenceStore) Get(ctx context.Context, year int) (*models.InvoiceSequence, error) {
	var seq models.InvoiceSequence
	err := s.GetDB(ctx).First(&seq, "year = ?", year).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &seq, nil
}

// Seed creates the row for year starting at lastValue unless another
// transaction created it first.
func (s *SequenceStore) Seed(ctx context.Context, year, lastValue int) error {
	seq := models.InvoiceSequence{Year: year, LastValue: lastValue}
	return s.GetDB(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&seq).Error
}

func (s *SequenceStore) Advance(ctx context.Context, seq *models.InvoiceSequence) error {
	result := s.GetDB(ctx).Model(seq).Update("last_value", seq.LastValue)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("invoice sequence for %d disappeared", seq.Year)
	}
	return nil
}

// NumbersForYear lists invoice numbers in either the current INV-<year>- form
// or the legacy <year>- form.
func (s *SequenceStore) NumbersForYear(ctx context.Context, year int) ([]string, error) {
	var numbers []string
	err := s.GetDB(ctx).Model(&models.Invoice{}).
		Where("number LIKE ? OR number LIKE ?", fmt.Sprintf("INV-%d-%%", year), fmt.Sprintf("%d-%%", year)).
		Pluck("number", &numbers).Error
	return numbers, err
}
