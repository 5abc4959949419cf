package main

import (
	"Go_PanStore/config"
	"Go_PanStore/internal/logger"
	"Go_PanStore/internal/metrics"
	"Go_PanStore/internal/mq"
	"Go_PanStore/internal/repo"
	"Go_PanStore/internal/service"
	"Go_PanStore/internal/storage"
	"Go_PanStore/internal/worker"
	"Go_PanStore/utils"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	config.InitConfig()
	logger.Init(config.AppConfig.LogLevel, config.AppConfig.LogFormat)
	repo.InitMysql()
	repo.InitRedis()
	utils.InitCacheManager()
	storage.InitMinio()
	metrics.Init(nil)
	service.ReportOrphan = mq.ReportOrphan

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := serveMetrics(config.AppConfig.MetricsAddr)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Msg("sweep worker started")
	if err := worker.RunSweepWorker(ctx); err != nil {
		log.Fatal().Err(err).Msg("sweep worker stopped")
	}
	log.Info().Msg("sweep worker stopped")
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	return srv
}
