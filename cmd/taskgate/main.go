package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskgate/internal/app"
	"taskgate/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "taskgate",
	Short: "taskgate CLI",
	Long: `taskgate is a role-gated task tracker.
- Admins create users and tasks, assign, update and delete them.
- Users see only the tasks assigned to them and may complete those.
- Admins may complete any task, assigned or not.
Run 'taskgate serve' for the HTTP API, or use the client commands against a running server.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	// Values already present in the environment win over .env files.
	_ = godotenv.Load(envFile(viper.GetString("workspace")))
	viper.SetEnvPrefix("TASKGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("server", "http://127.0.0.1:8080", "API server URL for client commands")
	rootCmd.PersistentFlags().String("token", "", "bearer token for client commands")
	rootCmd.PersistentFlags().String("log-level", "", "log level override")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(adminCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(meCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(taskCmd())
}

// --- helpers ---

func envFile(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".env")
}

// loadConfig reads taskgate.yml from the workspace and applies TASKGATE_*
// environment overrides such as TASKGATE_AUTH_JWT_SECRET.
func loadConfig() (*config.Config, error) {
	workspace := viper.GetString("workspace")
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Workspace == "" || cfg.Database.Workspace == "." {
		cfg.Database.Workspace = workspace
	}
	overrides := map[string]*string{
		"database.driver":  &cfg.Database.Driver,
		"database.dsn":     &cfg.Database.DSN,
		"auth.jwt_secret":  &cfg.Auth.JWTSecret,
		"auth.hasher":      &cfg.Auth.Hasher,
		"server.addr":      &cfg.Server.Addr,
		"server.base_path": &cfg.Server.BasePath,
		"log.level":        &cfg.Log.Level,
		"log.format":       &cfg.Log.Format,
	}
	for key, dst := range overrides {
		if v := viper.GetString(key); v != "" {
			*dst = v
		}
	}
	if viper.IsSet("auth.token_ttl") {
		cfg.Auth.TokenTTL = viper.GetDuration("auth.token_ttl")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func withApp(fn func(*app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := app.NewLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	a, err := app.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
