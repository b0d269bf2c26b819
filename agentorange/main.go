package main

import (
	"agentorange/agentorange/agents/configs"
	"agentorange/agentorange/agents/core"
	"agentorange/agentorange/config"
	"agentorange/agentorange/controllers"
	"agentorange/agentorange/routes"
	"agentorange/agentorange/services/socket"
	"agentorange/agentorange/sources/credentials"
	"agentorange/agentorange/sources/psql"
	"agentorange/agentorange/sources/psql/dao"
	"agentorange/agentorange/sources/storage"
	"agentorange/agentorange/utils/logging"
	"agentorange/agentorange/utils/metrics"
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	logging.InitLogger()
	defer logging.Sync()
	cfg := config.LoadConfig()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := psql.NewDatabase(ctx, cfg)
	if err != nil {
		logging.ErrorLogger.Error("database connection error", zap.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	sqlDB, err := db.DB.DB()
	if err != nil {
		logging.ErrorLogger.Error("database handle error", zap.Error(err))
		os.Exit(1)
	}

	gateway := dao.NewGateway(db.DB)
	builtins, err := configs.BuiltinCommands()
	if err != nil {
		logging.ErrorLogger.Error("built-in commands are invalid", zap.Error(err))
		os.Exit(1)
	}
	if seeded, err := gateway.SeedCommands(ctx, builtins); err != nil {
		logging.ErrorLogger.Error("seeding commands failed", zap.Error(err))
	} else if seeded {
		logging.AppLogger.Info("seeded built-in commands", zap.Int("count", len(builtins)))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	hub := socket.NewHub()
	if cfg.RedisAddr != "" {
		rp, err := socket.NewRedisPubSub(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisChannel)
		if err != nil {
			logging.ErrorLogger.Warn("redis unavailable, updates stay on this node", zap.Error(err))
		} else if err := rp.StartSubscriber(hub); err != nil {
			logging.ErrorLogger.Warn("redis subscribe failed", zap.Error(err))
			rp.Stop()
		} else {
			hub.SetRemote(rp)
			defer rp.Stop()
		}
	}

	opts := []core.Option{core.WithPublisher(hub), core.WithMetrics(m)}
	if cfg.MinIOEndpoint != "" {
		archive, err := storage.NewMinIOClient(ctx, cfg)
		if err != nil {
			logging.ErrorLogger.Warn("minio unavailable, snippets are not archived", zap.Error(err))
		} else {
			opts = append(opts, core.WithArchive(archive))
		}
	}

	defaults := configs.LoadDefaults(cfg.DefaultsPath)
	engine := core.NewEngine(gateway, credentials.FromConfig(cfg), defaults, opts...)
	runner := controllers.NewRunner()

	r := routes.NewRouter(cfg, routes.Controllers{
		Chat:      controllers.NewChatController(engine, gateway, hub, runner),
		Commands:  controllers.NewCommandsController(engine, gateway, runner),
		Workflows: controllers.NewWorkflowsController(engine, gateway, runner),
		Health:    controllers.NewHealthController(sqlDB),
	}, reg)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: r,
	}
	go func() {
		logging.AppLogger.Info("server listening", zap.String("addr", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.ErrorLogger.Error("server listen error", zap.Error(err))
		}
	}()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.ErrorLogger.Error("server shutdown error", zap.Error(err))
	}
	n := engine.CancelAll()
	runner.Wait()
	logging.AppLogger.Info("server shutdown complete", zap.Int("cancelled_lanes", n))
}
