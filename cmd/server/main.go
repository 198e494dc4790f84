package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/telecare-health/telecare/internal/config"
	v1 "github.com/telecare-health/telecare/internal/handler/v1"
	"github.com/telecare-health/telecare/internal/repository"
	"github.com/telecare-health/telecare/internal/service"
	"github.com/telecare-health/telecare/pkg/auth"
	"github.com/telecare-health/telecare/pkg/cryptobox"
	"github.com/telecare-health/telecare/pkg/database"
	"github.com/telecare-health/telecare/pkg/logger"
	"github.com/telecare-health/telecare/pkg/metrics"
	"github.com/telecare-health/telecare/pkg/tracer"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	tp, err := tracer.Init(cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	if err := database.Migrate(db, log); err != nil {
		return err
	}

	mx := metrics.NewCollector("telecare")

	// Sample the connection pool gauge in the background.
	poolCtx, stopPool := context.WithCancel(context.Background())
	defer stopPool()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-poolCtx.Done():
				return
			case <-ticker.C:
				if sqlDB, err := db.DB(); err == nil {
					mx.DBConnections.Set(float64(sqlDB.Stats().OpenConnections))
				}
			}
		}
	}()

	userRepo := repository.NewUserRepo(db)
	linkRepo := repository.NewTrustLinkRepo(db)
	grantRepo := repository.NewGrantRepo(db)
	messageRepo := repository.NewMessageRepo(db)
	dossierRepo := repository.NewDossierRepo(db)
	appointmentRepo := repository.NewAppointmentRepo(db)

	auditSvc := service.NewAuditService(repository.NewAuditRepo(db), log)
	defer auditSvc.Shutdown()

	jwtManager := auth.NewJWTManager(cfg.JWT)

	var boxOpts []cryptobox.Option
	if !cfg.Crypto.AllowLegacyPlaintext {
		boxOpts = append(boxOpts, cryptobox.WithoutLegacyFallback())
	}
	box := cryptobox.New(cfg.Crypto.MessageSecret, boxOpts...)

	authSvc := service.NewAuthService(userRepo, jwtManager, auditSvc, log)
	linkSvc := service.NewTrustLinkService(linkRepo, userRepo, auditSvc, mx, log)
	grantSvc := service.NewGrantService(grantRepo, dossierRepo, auditSvc, mx, log)
	messageSvc := service.NewMessageService(messageRepo, linkRepo, userRepo, box, auditSvc, mx, log)
	guard := service.NewResourceGuard(dossierRepo, grantSvc, auditSvc, log)
	dossierSvc := service.NewDossierService(dossierRepo, guard, auditSvc, log)
	appointmentSvc := service.NewAppointmentService(appointmentRepo, userRepo, auditSvc, log)

	router := v1.NewRouter(cfg, jwtManager, mx, log, v1.Handlers{
		Auth:         v1.NewAuthHandler(authSvc),
		TrustLinks:   v1.NewTrustLinkHandler(linkSvc),
		Grants:       v1.NewGrantHandler(grantSvc),
		Messages:     v1.NewMessageHandler(messageSvc),
		Records:      v1.NewRecordHandler(dossierSvc, guard),
		Appointments: v1.NewAppointmentHandler(appointmentSvc),
		Directory:    v1.NewDirectoryHandler(userRepo),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.App.Environment),
			zap.String("version", cfg.App.Version),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}

	log.Info("server stopped")
	return nil
}
