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

	"github.com/KromaEnergia/api-pagos/internal/auth"
	"github.com/KromaEnergia/api-pagos/internal/config"
	"github.com/KromaEnergia/api-pagos/internal/logger"
	"github.com/KromaEnergia/api-pagos/internal/middleware"
	"github.com/KromaEnergia/api-pagos/internal/payment"
	"github.com/KromaEnergia/api-pagos/internal/settlement"
	"github.com/KromaEnergia/api-pagos/internal/student"
	"github.com/KromaEnergia/api-pagos/internal/utils/db"
	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "api-pagos",
		Short:         "API de mensalidades e conciliação com o PayPal",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Sobe o servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Cria/atualiza as tabelas students, payments e settlement_events",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, database, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer log.Sync()
			return migrate(database, log)
		},
	})
	return root
}

// bootstrap carrega config, logger, segredos e banco.
func bootstrap(ctx context.Context) (*config.Config, *zap.Logger, *gorm.DB, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cfg.ResolveSecrets(ctx, config.NewAWSSecrets()); err != nil {
		return nil, nil, nil, err
	}
	database, err := db.ConnectDataBase(cfg.DB, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, database, nil
}

func migrate(database *gorm.DB, log *zap.Logger) error {
	for _, m := range []func(*gorm.DB) error{student.Migrate, payment.Migrate, settlement.Migrate} {
		if err := m(database); err != nil {
			return fmt.Errorf("erro no AutoMigrate: %w", err)
		}
	}
	log.Info("migração concluída")
	return nil
}

func serve(ctx context.Context) error {
	cfg, log, database, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.AutoMigrate {
		if err := migrate(database, log); err != nil {
			return err
		}
	}

	events := settlement.NewEventRepository(database)
	deps := payment.Deps{
		Store:     payment.NewRepository(database),
		Directory: student.NewRepository(database),
		Events:    events,
		Checkout: payment.CheckoutURLs{
			CaptureURL: cfg.Checkout.CaptureURL,
			CancelURL:  cfg.Checkout.CancelURL,
			SuccessURL: cfg.Checkout.SuccessURL,
		},
		Logger:   log,
		Location: cfg.Location,
	}

	client, err := settlement.NewClient(cfg.Settlement(), log)
	switch {
	case errors.Is(err, settlement.ErrConfigInvalid):
		log.Warn("paypal não configurado; checkout desativado", zap.Error(err))
	case err != nil:
		return err
	default:
		deps.Gateway = client
	}
	if signer := auth.NewStateSigner(cfg.Checkout.StateSecret, cfg.Checkout.StateTTL); signer.Enabled() {
		deps.State = signer
	} else if cfg.IsProduction() {
		log.Warn("CHECKOUT_STATE_SECRET vazio; retorno do PayPal sem state")
	}

	svc := payment.NewService(deps)

	// Router
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)
	payment.NewHandler(svc, log).RegisterRoutes(r)
	settlement.NewHandler(events, log).RegisterRoutes(r)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      middleware.Chain(r, log, cfg.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("servidor rodando", zap.String("addr", server.Addr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	log.Info("desligando servidor")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
