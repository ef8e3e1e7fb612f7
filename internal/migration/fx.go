package migration

import (
	"strings"

	"github.com/smallbiznis/sadaqah/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Run),
)

// Run migrates the schema on startup unless DATABASE_MIGRATE is off.
func Run(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	if !cfg.DBMigrate {
		log.Info("database migrations disabled")
		return nil
	}

	dialect := strings.ToLower(strings.TrimSpace(cfg.DBType))
	if dialect == "postgres" {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			return err
		}
	} else if err := AutoMigrate(conn); err != nil {
		return err
	}

	log.Info("database migrated", zap.String("dialect", dialect))
	return nil
}
