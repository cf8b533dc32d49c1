package database

import (
	"fmt"
	"net/url"

	"github.com/rickgao/marketfeed/internal/config"
)

// BuildConnString builds a PostgreSQL connection string from config.
// An explicit URL wins over the discrete fields.
func BuildConnString(cfg config.DBConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}

	// URL-encode password to handle special characters
	escapedPassword := url.QueryEscape(cfg.Password)

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		escapedPassword,
		cfg.Host,
		cfg.Port,
		cfg.Name,
		sslMode,
	)
}
