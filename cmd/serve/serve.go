// Package serve implements the command that runs the inspection HTTP service.
package serve

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/api"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/buildinfo"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/conf"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
)

// Command creates the serve command.
func Command(build *buildinfo.Info) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the inspection HTTP service",
		Long:  "Open the database, load the default model and serve the /api/v2 endpoints until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := conf.GetSettings()
			if settings == nil {
				return fmt.Errorf("configuration not loaded")
			}
			if cmd.Flags().Changed("listen") {
				settings.WebServer.Listen = listen
			}
			return Run(cmd.Context(), settings, build)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address, overrides webserver.listen")
	return cmd
}

// Run builds the service and serves until SIGINT or SIGTERM.
func Run(ctx context.Context, settings *conf.Settings, build *buildinfo.Info) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.Global().Module("serve")

	log.Info("starting VirtualTeamLeader",
		logger.String("version", build.GetVersion()),
		logger.String("build_date", build.GetBuildDate()))

	app, err := NewApp(ctx, settings, build, log)
	if err != nil {
		return err
	}

	server, err := api.New(settings,
		api.WithServices(app.Services),
		api.WithMetrics(app.Metrics),
		api.WithBuildInfo(build),
		api.WithShutdownHook(app.Close),
	)
	if err != nil {
		if cerr := app.Close(context.Background()); cerr != nil {
			log.Warn("failed to release resources", logger.Error(cerr))
		}
		return err
	}

	return server.StartWithGracefulShutdown()
}
