package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zulandar/bikereg/internal/db"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBSeedAdminCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the bikereg database",
		Long:  "Connects to the configured SQLite or MySQL database and migrates all tables.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(cmd, configPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected to %s database %s\n", cfg.Database.Driver, databaseName(cfg.Database.Driver, cfg.Database.Path, cfg.Database.Name))

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))
	return nil
}

func newDBSeedAdminCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create or update the super admin account",
		Long:  "Upserts the super admin from SUPER_ADMIN_EMAIL and SUPER_ADMIN_PASSWORD (or the auth section of the config).",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBSeedAdmin(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runDBSeedAdmin(cmd *cobra.Command, configPath string) error {
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
	if !seeded {
		return fmt.Errorf("super admin email and password are not configured")
	}
	fmt.Fprintf(out, "Super admin %s seeded\n", cfg.Auth.SuperAdminEmail)
	return nil
}

func databaseName(driver, path, name string) string {
	if driver == "mysql" {
		return name
	}
	return path
}
