package db

import (
	"gorm.io/gorm"

	"github.com/malwarebo/invoicer/models"
)

// CreateSchemaMigrator returns a migrator loaded with the invoicer schema.
func CreateSchemaMigrator(db *gorm.DB) *Migrator {
	m := CreateNewMigrator(db)

	m.AddMigration("001", "create_clients",
		func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.Client{})
		},
		func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&models.Client{})
		},
	)

	m.AddMigration("002", "create_invoices",
		func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&models.Invoice{}, &models.LineItem{}); err != nil {
				return err
			}
			// SQLite cannot add a constraint to an existing table; the
			// service layer removes line items itself on every backend.
			if tx.Dialector.Name() == "postgres" && !tx.Migrator().HasConstraint(&models.Invoice{}, "LineItems") {
				return tx.Migrator().CreateConstraint(&models.Invoice{}, "LineItems")
			}
			return nil
		},
		func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&models.LineItem{}, &models.Invoice{})
		},
	)

	m.AddMigration("003", "create_invoice_sequences",
		func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.InvoiceSequence{})
		},
		func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&models.InvoiceSequence{})
		},
	)

	m.AddMigration("004", "create_webhook_events",
		func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.WebhookEvent{})
		},
		func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&models.WebhookEvent{})
		},
	)

	return m
}
