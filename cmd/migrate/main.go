package main

import (
	"github.com/secureshop/storefront/internal/db"
	"github.com/secureshop/storefront/pkg/config"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.LoadConfig()
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := db.Migrate(cfg.GetDSN()); err != nil {
		logrus.Fatalf("Migration failed: %v", err)
	}
}
