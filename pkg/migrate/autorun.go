package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/backoffice-backend/pkg/config"
	"github.com/angelmondragon/backoffice-backend/pkg/db"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on startup in dev when
// BACKOFFICE_AUTO_MIGRATE is set. Other environments migrate explicitly
// with cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	m, err := New(sqlDB, cfg.DB.Driver, Embedded())
	if err != nil {
		return err
	}

	applied, err := m.Up(ctx)
	ctx = logg.WithFields(ctx, map[string]any{
		"driver":  cfg.DB.Driver,
		"applied": applied,
	})
	if err != nil {
		return err
	}
	logg.Info(ctx, "migrate.autorun.done")
	return nil
}
