package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/berfenger/omnik2mqtt/internal/adapter/actor"
	"github.com/berfenger/omnik2mqtt/internal/config"
	"github.com/berfenger/omnik2mqtt/internal/core/actor"
	"github.com/berfenger/omnik2mqtt/internal/cron"
	"github.com/berfenger/omnik2mqtt/internal/metrics"
	"github.com/berfenger/omnik2mqtt/internal/server"
	"github.com/berfenger/omnik2mqtt/internal/util/actorutil"
	"github.com/berfenger/omnik2mqtt/pkg/omnik"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	slog.Info("Using", "config", config.SafeCopy(*cfg))

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	// inverter client
	m := metrics.New()
	clientCfg, err := cfg.Inverter.ClientConfig()
	if err != nil {
		logger.Error("invalid inverter config", zap.Error(err))
		return
	}
	client, err := omnik.NewClient(clientCfg, logger, m.Instrument())
	if err != nil {
		logger.Error("cannot create inverter client", zap.Error(err))
		return
	}
	defer client.Close()

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, inverterActorProvider(cfg, client, logger), mqttActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		logger.Error("cannot spawn master actor", zap.Error(err))
		return
	}

	// daily reset
	scheduler, err := cron.NewScheduler(logger)
	if err != nil {
		panic(err)
	}
	schedCtx, cancelSched := context.WithCancel(context.Background())
	defer cancelSched()
	scheduler.Start(schedCtx)
	if cfg.MonitorConfig.DailyResetCron != "" {
		job := cron.NewDailyResetJob(ctx, pid, 10*time.Second, logger)
		if err := scheduler.Schedule(cfg.MonitorConfig.DailyResetCron, job); err != nil {
			panic(err)
		}
	}

	server := server.NewServer(*cfg, ctx, pid, m.Handler())
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelStop()
	scheduler.Stop(stopCtx)

	ctx.Stop(pid)
	as.Shutdown()
}

func inverterActorProvider(cfg *config.Config, reader omnik.Reader, logger *zap.Logger) actor.InverterActorProvider {
	return func() *adactor.InverterActor {
		return adactor.NewInverterActor(reader, cfg.Inverter.RequestTimeout(), logger)
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}
