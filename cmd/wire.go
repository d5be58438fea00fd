package cmd

import (
	"fmt"
	"log/slog"
	"os"

	reportadapter "github.com/medpipe/pump-history-cli/internal/adapters/render/report"
	tomlrepo "github.com/medpipe/pump-history-cli/internal/adapters/repo/toml"
	"github.com/medpipe/pump-history-cli/internal/application"
	"github.com/medpipe/pump-history-cli/internal/ports"
	"github.com/spf13/viper"
)

type app struct {
	devices  ports.DeviceRepository
	settings ports.SettingsRepository
	registry *application.RegistryService
	offsets  *application.OffsetService
	clock    ports.Clock
	log      *slog.Logger
	logLevel *slog.LevelVar

	sessionRenderer func(application.SessionReport, reportadapter.RenderOptions) (string, error)
	offsetsRenderer func(application.OffsetsReport, reportadapter.RenderOptions) (string, error)
}

func wireApp() (*app, error) {
	devices, err := tomlrepo.NewRepository(viper.New())
	if err != nil {
		return nil, fmt.Errorf("wire device registry: %w", err)
	}

	settings, err := tomlrepo.NewSettingsRepository(viper.New())
	if err != nil {
		return nil, fmt.Errorf("wire settings repository: %w", err)
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(slog.LevelWarn)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	return &app{
		devices:         devices,
		settings:        settings,
		registry:        application.NewRegistryService(devices, settings),
		offsets:         application.NewOffsetService(devices, logger),
		clock:           ports.SystemClock{},
		log:             logger,
		logLevel:        logLevel,
		sessionRenderer: reportadapter.RenderSession,
		offsetsRenderer: reportadapter.RenderOffsets,
	}, nil
}
