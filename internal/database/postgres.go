package database

import (
	"github.com/quillcms/quill/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the configured Postgres instance. Query logging is
// kept at Warn: request-level detail comes from the HTTP middleware and
// repository metrics, not from the ORM.
func Open(cfg *config.Config) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
}
