package cmd

import (
	"log/slog"
	"os"

	appLogger "github.com/FACorreiaa/easytrip-api/app/logger"
	"github.com/FACorreiaa/easytrip-api/config"
)

// Context is shared by every command.
type Context struct {
	Config config.Config
	Logger *slog.Logger
}

var CLI struct {
	Mode string `help:"Override the configured mode (development or production)" env:"APP_ENV"`

	Serve   ServeCmd   `cmd:"" default:"1" help:"Run the API server"`
	Migrate MigrateCmd `cmd:"" help:"Apply or roll back database migrations"`
	Explore ExploreCmd `cmd:"" help:"Browse places through a running API"`
}

// NewContext loads the configuration and builds the logger.
func NewContext(mode string) (*Context, error) {
	cfg, err := config.InitConfig()
	if err != nil {
		return nil, err
	}
	if mode != "" {
		cfg.Mode = mode
		if err = cfg.Validate(); err != nil {
			return nil, err
		}
	}
	logger := appLogger.New(cfg.Mode, os.Stdout)
	slog.SetDefault(logger)
	return &Context{Config: cfg, Logger: logger}, nil
}
