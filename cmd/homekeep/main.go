package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dukerupert/homekeep/internal/config"
	"github.com/dukerupert/homekeep/internal/logging"
	"github.com/dukerupert/homekeep/internal/push"
	"github.com/dukerupert/homekeep/internal/server"
	"github.com/dukerupert/homekeep/internal/store"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

var envFile string

var rootCmd = &cobra.Command{
	Use:   "homekeep",
	Short: "Home maintenance tracker",
	Long:  "Tracks properties, recurring maintenance, warranties and service providers, with reminders.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

var vapidKeysCmd = &cobra.Command{
	Use:   "vapid-keys",
	Short: "Generate a VAPID key pair for web push",
	RunE: func(cmd *cobra.Command, args []string) error {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "HOMEKEEP_VAPID_PUBLIC_KEY=%s\nHOMEKEEP_VAPID_PRIVATE_KEY=%s\n", pub, priv)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "homekeep %s\n", Version)
	},
}

func init() {
	serveCmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before the environment")
	rootCmd.AddCommand(serveCmd, vapidKeysCmd, versionCmd)
}

func runServer(ctx context.Context) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	stores, err := store.Open(cfg.DBPath, cfg.StoreTimeout)
	if err != nil {
		return err
	}
	defer stores.Close()

	srv, err := server.New(ctx, cfg, stores, logger)
	if err != nil {
		return err
	}
	return srv.Run(ctx, ":"+cfg.Port)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
