// Package main - lexvault service binary
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alwitt/lexvault"
	"github.com/alwitt/lexvault/config"
	"github.com/apex/log"
	"github.com/apex/log/handlers/json"
	"github.com/spf13/cobra"
)

type cliArgs struct {
	configFile string
	logLevel   string
	jsonLog    bool
}

func newRootCommand() *cobra.Command {
	args := &cliArgs{}

	rootCmd := &cobra.Command{
		Use:   "lexvault",
		Short: "lexvault - legal document encryption and key sharing service",
		Long: `lexvault stores encrypted legal documents and manages their keys.

Document keys are never persisted in the clear. Owners may share a key with another
account; the shared key is escrowed under the server RSA key until it expires or is
revoked.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := log.ParseLevel(args.logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %s [%w]", args.logLevel, err)
			}
			log.SetLevel(level)
			if args.jsonLog {
				log.SetHandler(json.New(cmd.ErrOrStderr()))
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(
		&args.configFile, "config", "c", "lexvault.yaml", "YAML config file",
	)
	rootCmd.PersistentFlags().StringVar(&args.logLevel, "log-level", "info", "log level")
	rootCmd.PersistentFlags().BoolVar(&args.jsonLog, "json-log", false, "log in JSON")

	rootCmd.AddCommand(newServeCommand(args))
	rootCmd.AddCommand(newMigrateCommand(args))
	rootCmd.AddCommand(newIssueTokenCommand(args))
	return rootCmd
}

func openVault(ctx context.Context, args *cliArgs) (config.Config, *lexvault.DocumentVault, error) {
	cfg, err := config.LoadConfig(args.configFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	vault, err := lexvault.NewDocumentVault(ctx, cfg)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, vault, nil
}

func newServeCommand(args *cliArgs) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the key share endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, vault, err := openVault(ctx, args)
			if err != nil {
				return err
			}
			defer func() { _ = vault.Close() }()
			if migrate {
				if err := vault.Migrate(ctx); err != nil {
					return err
				}
			}

			server := &http.Server{
				Addr:         cfg.HTTP.ListenAddress,
				Handler:      vault.Router(),
				ReadTimeout:  cfg.HTTP.ReadTimeout,
				WriteTimeout: cfg.HTTP.WriteTimeout,
			}

			serveErr := make(chan error, 1)
			go func() {
				log.WithField("address", cfg.HTTP.ListenAddress).Info("Starting HTTP server")
				serveErr <- server.ListenAndServe()
			}()

			select {
			case err := <-serveErr:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("HTTP server failed [%w]", err)
				}
				return nil
			case <-ctx.Done():
			}

			log.Info("Stopping HTTP server")
			shutdownCtx, shutdownCancel := context.WithTimeout(
				context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout,
			)
			defer shutdownCancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("HTTP server shutdown failed [%w]", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "create or update tables before serving")
	return cmd
}

func newMigrateCommand(args *cliArgs) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, vault, err := openVault(cmd.Context(), args)
			if err != nil {
				return err
			}
			defer func() { _ = vault.Close() }()
			if err := vault.Migrate(cmd.Context()); err != nil {
				return err
			}
			log.Info("Tables ready")
			return nil
		},
	}
}

func newIssueTokenCommand(args *cliArgs) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "issue-token USER_ID",
		Short: "Issue a caller identity token for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, positional []string) error {
			cfg, vault, err := openVault(cmd.Context(), args)
			if err != nil {
				return err
			}
			defer func() { _ = vault.Close() }()
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}
			token, err := vault.Authenticator.Issue(positional[0], ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime; the configured lifetime when unset")
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
