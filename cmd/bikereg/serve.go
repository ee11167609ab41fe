package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zulandar/bikereg/internal/db"
	"github.com/zulandar/bikereg/internal/portal"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the registration portal",
		Long: "Migrates the database, seeds the super admin and starts the registration\n" +
			"portal web server with its housekeeping jobs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(cmd, configPath)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	reg, err := newRegistry(cfg, gormDB)
	if err != nil {
		return err
	}
	defer reg.Close()

	seeded, err := reg.SeedSuperAdmin(cmd.Context())
	if err != nil {
		return err
	}
	if seeded {
		fmt.Fprintf(out, "Super admin %s ready\n", cfg.Auth.SuperAdminEmail)
	}

	cam, err := buildCamera(cfg.Scanner, nil)
	if err != nil {
		return err
	}
	dec, err := buildDecoder(cfg.Scanner)
	if err != nil {
		return err
	}
	sessions := portal.NewSessionManager(portal.SessionOpts{
		Camera:       cam,
		Decoder:      dec,
		StaleAfter:   cfg.Scanner.StaleAfter(),
		DisplayDelay: cfg.Scanner.DisplayDelay(),
	})

	if port <= 0 {
		port = cfg.Server.Port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return portal.Start(ctx, portal.StartOpts{
		Registry:     reg,
		Sessions:     sessions,
		Housekeeping: cfg.Housekeeping,
		Port:         port,
		Out:          out,
	})
}
