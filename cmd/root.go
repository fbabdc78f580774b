// Package cmd wires the command line interface of the inspection service.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Timvanhoudt/VirtualTeamLeader/cmd/classes"
	"github.com/Timvanhoudt/VirtualTeamLeader/cmd/migrate"
	"github.com/Timvanhoudt/VirtualTeamLeader/cmd/serve"
	"github.com/Timvanhoudt/VirtualTeamLeader/cmd/transfer"
	"github.com/Timvanhoudt/VirtualTeamLeader/cmd/version"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/buildinfo"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/conf"
	"github.com/Timvanhoudt/VirtualTeamLeader/internal/logger"
)

// RootCommand creates and returns the root command
func RootCommand(build *buildinfo.Info) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "vtl",
		Short:         "VirtualTeamLeader workplace inspection service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := setupFlags(rootCmd); err != nil {
		// Flag binding only fails on programming errors
		panic(err)
	}

	serveCmd := serve.Command(build)
	migrateCmd := migrate.Command()
	transferCmd := transfer.Command()
	classesCmd := classes.Command()
	versionCmd := version.Command(build)

	rootCmd.AddCommand(serveCmd, migrateCmd, transferCmd, classesCmd, versionCmd)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// These commands need neither configuration nor logging
		if cmd.Name() == classesCmd.Name() || cmd.Name() == versionCmd.Name() {
			return nil
		}
		return initialize()
	}

	return rootCmd
}

// initialize loads the configuration and replaces the bootstrap logger.
func initialize() error {
	settings, err := conf.Load()
	if err != nil {
		return err
	}

	if settings.Debug && settings.Logging.DefaultLevel != string(logger.LogLevelTrace) {
		settings.Logging.DefaultLevel = string(logger.LogLevelDebug)
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = string(logger.LogLevelDebug)
		}
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command) error {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the configuration file")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
