package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/config"
	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/db"
	httpapi "github.com/LVC-Solutions-LLC/stripepaymentservice/internal/http"
	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/logging"
	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/pricing"
	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/processor"
	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/services"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Version 构建时通过 -ldflags 注入
var Version = "dev"

func main() {
	loadDotEnv()

	rootCmd := &cobra.Command{
		Use:           "stripepaymentservice",
		Short:         "Stripe payment and identity verification service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(paymentCmd())
	rootCmd.AddCommand(pricingCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadDotEnv() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "load .env failed: %v\n", err)
		}
	} else if !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "stat .env failed: %v\n", err)
	}
}

func initLogging(cfg config.Config) {
	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "payments",
	})
}

// openService 打开存储并组装服务，调用方负责关闭返回的 store
func openService(ctx context.Context, cfg config.Config) (*services.Service, db.Store, error) {
	table, err := pricing.Load(cfg.PricingFile)
	if err != nil {
		return nil, nil, err
	}
	store, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return services.New(store, processor.NewStripeRegistry(cfg), table, cfg), store, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	initLogging(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	svc, store, err := openService(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	httpapi.Version = Version
	server := httpapi.NewServer(svc, cfg)
	httpServer := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.ServerAddr).
			Str("env", cfg.AppEnv).
			Str("mode", cfg.StripeMode).
			Str("store", cfg.StoreDriver).
			Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
		return err
	}
	log.Info().Msg("Server stopped")
	return nil
}

func paymentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payment",
		Short: "Inspect stored payments",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Print a payment record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			initLogging(cfg)
			svc, store, err := openService(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			payment, err := svc.GetPayment(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, payment)
		},
	})
	return cmd
}

func pricingCmd() *cobra.Command {
	var role, country string
	cmd := &cobra.Command{
		Use:   "pricing",
		Short: "Inspect the pricing tables",
	}
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the fee quote and plan for a role, or the full tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := pricing.Load(config.Load().PricingFile)
			if err != nil {
				return err
			}
			if role == "" {
				return printJSON(cmd, table)
			}
			out := map[string]any{
				"role":    role,
				"country": pricing.NormalizeCountry(country),
				"oneTime": table.QuoteFor(role, country),
			}
			if planID, err := table.PlanFor(role, country); err == nil {
				out["planId"] = planID
			}
			return printJSON(cmd, out)
		},
	}
	show.Flags().StringVar(&role, "role", "", "role to quote, e.g. JOB_SEEKER")
	show.Flags().StringVar(&country, "country", "US", "2-letter country code")
	cmd.AddCommand(show)
	return cmd
}

func tokenCmd() *cobra.Command {
	var email string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <userId>",
		Short: "Issue a bearer token for a user, signed with JWT_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := httpapi.IssueToken(config.Load().JWTSecret, args[0], email, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
