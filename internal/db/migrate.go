package db

import (
	"fmt"

	"github.com/secureshop/storefront/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Migrate creates or updates the schema for every table the storefront uses
func Migrate(dsn string) error {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to open database for migration: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("failed to get migration connection: %w", err)
	}
	defer sqlDB.Close()

	if err := gdb.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.CartLine{},
		&models.Favorite{},
		&models.Order{},
		&models.OrderItem{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	logrus.Info("Database schema migrated")
	return nil
}
