package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskgate/internal/app"
	"taskgate/internal/config"
	"taskgate/internal/db"
)

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				if cmd.Flags().Changed("addr") {
					a.Config.Server.Addr = addr
				}
				if cmd.Flags().Changed("base-path") {
					a.Config.Server.BasePath = basePath
				}
				if a.Config.Auth.JWTSecret == "" {
					return errors.New("auth.jwt_secret is required; set TASKGATE_AUTH_JWT_SECRET or taskgate.yml")
				}
				a.Logger.Info().
					Str("addr", a.Config.Server.Addr).
					Str("base_path", a.Config.Server.BasePath).
					Msg("serving taskgate API (OpenAPI at <base>/openapi.json, Swagger UI at /docs)")
				return a.Serve(cmd.Context(), a.Config.Server.Addr)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			// app.Open migrates as part of opening.
			return withApp(func(a *app.App) error {
				if a.Config.Database.Driver == config.DriverPostgres {
					fmt.Println("postgres database is up to date")
					return nil
				}
				fmt.Printf("%s is up to date\n", db.Path(a.Config.Database.Workspace))
				return nil
			})
		},
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage taskgate.yml",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default taskgate.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o600); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Key", "Value"})
			tw.AppendRows([]table.Row{
				{"database.driver", cfg.Database.Driver},
				{"database.workspace", cfg.Database.Workspace},
				{"database.dsn", redact(cfg.Database.DSN)},
				{"auth.jwt_secret", redact(cfg.Auth.JWTSecret)},
				{"auth.token_ttl", cfg.Auth.TokenTTL},
				{"auth.hasher", cfg.Auth.Hasher},
				{"server.addr", cfg.Server.Addr},
				{"server.base_path", cfg.Server.BasePath},
				{"log.level", cfg.Log.Level},
				{"log.format", cfg.Log.Format},
			})
			tw.Render()
			return nil
		},
	}
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate taskgate.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := loadConfig()
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func adminCmd() *cobra.Command {
	adm := &cobra.Command{
		Use:   "admin",
		Short: "Operator commands that work directly against storage",
	}
	adm.AddCommand(adminBootstrapCmd())
	return adm
}

func adminBootstrapCmd() *cobra.Command {
	var username, email, password string
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the first admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = viper.GetString("admin_password")
			}
			if username == "" || email == "" || password == "" {
				return errors.New("--username, --email and --password (or TASKGATE_ADMIN_PASSWORD) are required")
			}
			return withApp(func(a *app.App) error {
				u, err := a.Engine.BootstrapAdmin(cmd.Context(), username, email, password)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(u)
				}
				fmt.Printf("created admin %s (id %d)\n", u.Username, u.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "admin username")
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	return cmd
}
