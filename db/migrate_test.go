package db

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/malwarebo/invoicer/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get database instance: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	return db
}

func TestSchemaMigrator_Up(t *testing.T) {
	db := openTestDB(t)
	m := CreateSchemaMigrator(db)

	applied, err := m.Up()
	if err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	if len(applied) != 4 {
		t.Errorf("Up() applied = %v, want 4 migrations", applied)
	}

	for _, model := range []interface{}{
		&models.Client{},
		&models.Invoice{},
		&models.LineItem{},
		&models.InvoiceSequence{},
		&models.WebhookEvent{},
	} {
		if !db.Migrator().HasTable(model) {
			t.Errorf("HasTable(%T) = false, want true", model)
		}
	}

	again, err := m.Up()
	if err != nil {
		t.Fatalf("second Up() error = %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second Up() applied = %v, want none", again)
	}
}

func TestSchemaMigrator_Down(t *testing.T) {
	db := openTestDB(t)
	m := CreateSchemaMigrator(db)

	if _, err := m.Up(); err != nil {
		t.Fatalf("Up() error = %v", err)
	}

	rolledBack, err := m.Down("002")
	if err != nil {
		t.Fatalf("Down() error = %v", err)
	}
	if len(rolledBack) != 2 || rolledBack[0] != "004" || rolledBack[1] != "003" {
		t.Errorf("Down() rolled back = %v, want [004 003]", rolledBack)
	}
	if db.Migrator().HasTable(&models.WebhookEvent{}) {
		t.Error("webhook_events should be dropped")
	}
	if !db.Migrator().HasTable(&models.Invoice{}) {
		t.Error("invoices should still exist")
	}

	if _, err := m.Down("999"); err == nil {
		t.Error("Down() with unknown version should fail")
	}
}

func TestMigrator_Status(t *testing.T) {
	db := openTestDB(t)
	m := CreateSchemaMigrator(db)

	statuses, err := m.Status()
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	for _, s := range statuses {
		if s.Applied {
			t.Errorf("migration %s applied before Up()", s.Version)
		}
	}

	if _, err := m.Up(); err != nil {
		t.Fatalf("Up() error = %v", err)
	}

	statuses, err = m.Status()
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(statuses) != 4 {
		t.Fatalf("len(Status()) = %d, want 4", len(statuses))
	}
	for _, s := range statuses {
		if !s.Applied {
			t.Errorf("migration %s (%s) not applied", s.Version, s.Name)
		}
	}
}
