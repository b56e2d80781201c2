package db

import (
	"fmt"

	"github.com/KromaEnergia/api-pagos/internal/config"
)

// DSN monta a string de conexão do Postgres a partir da configuração.
func DSN(cfg config.DBConfig) string {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d", cfg.Host, cfg.Username, cfg.Password, cfg.Name, cfg.Port)
	if cfg.SSLDisable {
		dsn += " sslmode=disable"
	}
	return dsn
}
