package db

import (
	"fmt"
	"time"

	"github.com/KromaEnergia/api-pagos/internal/config"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ConnectDataBase abre o Postgres com o logger do gorm ligado ao zap.
// As credenciais já devem ter sido resolvidas (config.ResolveSecrets).
func ConnectDataBase(cfg config.DBConfig, log *zap.Logger) (*gorm.DB, error) {
	database, err := gorm.Open(postgres.Open(DSN(cfg)), &gorm.Config{
		Logger: NewGormLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("conectar no banco %s@%s: %w", cfg.Name, cfg.Host, err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return database, nil
}
