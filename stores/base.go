package stores

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type contextKey string

const TxKey contextKey = "tx"

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

type BaseStore struct {
	db *gorm.DB
}

// GetDB returns the transaction carried by ctx, if any, so that stores
// called inside WithTransaction share it.
func (s *BaseStore) GetDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxKey).(*gorm.DB); ok {
		return tx
	}
	return s.db.WithContext(ctx)
}

func (s *BaseStore) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	if _, ok := ctx.Value(TxKey).(*gorm.DB); ok {
		return fn(ctx)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := context.WithValue(ctx, TxKey, tx)
		return fn(txCtx)
	})
}

// Transactor is the part of BaseStore services need to group store calls.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(context.Context) error) error
}

func CreateTransactor(db *gorm.DB) *BaseStore {
	return &BaseStore{db: db}
}

func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func paginate(query *gorm.DB, limit, offset int) *gorm.DB {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return query.Limit(limit).Offset(offset)
}

// notFound maps gorm's missing-row error to the caller's sentinel.
func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
