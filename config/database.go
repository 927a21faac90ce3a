package config

import (
	"log/slog"
	"os"

	"github.com/JACT-22/cobranza-funeraria/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func ConnectDB() {
	dsn := os.Getenv("DB_URL")
	if dsn == "" {
		slog.Error("DB_URL environment variable is not set")
		os.Exit(1)
	}

	// TranslateError makes unique violations surface as gorm.ErrDuplicatedKey,
	// which the payment registrar relies on.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Client{},
		&models.TicketConfig{},
		&models.Payment{},
	); err != nil {
		slog.Error("Database migration failed", "error", err)
		os.Exit(1)
	}

	DB = db
	slog.Info("Connected to database")
}
