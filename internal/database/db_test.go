package database

import (
	"testing"

	"github.com/dfe0990ngc/pcds-student-portal/internal/models"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite"})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	if err := db.Exec("SELECT 1").Error; err != nil {
		t.Fatalf("expected health query to succeed: %v", err)
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "oracle"}); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestAutoMigrateCreatesTables(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite", DSN: "file::memory:?_foreign_keys=1"})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}

	if err := AutoMigrateAll(db); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	for _, table := range []string{"student_credentials", "refresh_tokens", "grades", "studeaccount"} {
		if !db.Migrator().HasTable(table) {
			t.Fatalf("expected table %q to exist", table)
		}
	}

	cred := models.Credential{
		StudentNumber: "2021-00001",
		Email:         "student@example.com",
		PasswordHash:  "x",
	}
	if err := db.Create(&cred).Error; err != nil {
		t.Fatalf("insert credential: %v", err)
	}

	var count int64
	if err := db.Model(&models.Credential{}).Count(&count).Error; err != nil {
		t.Fatalf("count credentials: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 credential, got %d", count)
	}
}
