package db

import (
	"context"
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 committed row, got %d", count)
	}

	sentinel := errors.New("rollback me")
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled back"}).Error; err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to discard row, still %d rows", count)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil error should not match")
	}
	pgErr := errors.New(`duplicate key value violates unique constraint "ux_entitlements_purchase_id"`)
	if !IsUniqueViolation(pgErr, "") {
		t.Fatal("expected generic duplicate key match")
	}
	if !IsUniqueViolation(pgErr, "ux_entitlements_purchase_id") {
		t.Fatal("expected named constraint match")
	}
	if IsUniqueViolation(pgErr, "ux_other_constraint") {
		t.Fatal("mismatched constraint should not match")
	}
	sqliteErr := errors.New("UNIQUE constraint failed: entitlements.purchase_id")
	if !IsUniqueViolation(sqliteErr, "") {
		t.Fatal("expected sqlite unique violation match")
	}
}
