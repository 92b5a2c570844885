// Command dubflowd runs the localization pipeline daemon: it polls the task
// store for pending tasks and drives each one through parse, subtitles, dub,
// pack, and publish.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"dubflow/internal/config"
	"dubflow/internal/logging"
	"dubflow/internal/task"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, resolvedPath, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		LogDir:  cfg.Paths.LogDir,
		LogFile: "dubflowd.log",
		Color:   logging.ColorEnabled(),
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := task.Open(cfg)
	if err != nil {
		logger.Error("open task store", logging.Error(err))
		return
	}
	defer store.Close()

	manager, err := buildManager(cfg, store, logger)
	if err != nil {
		logger.Error("build pipeline", logging.Error(err))
		return
	}

	if err := manager.Start(ctx); err != nil {
		logger.Error("start pipeline", logging.Error(err))
		return
	}
	logger.Info("dubflowd started",
		logging.String("config", resolvedPath),
		logging.String("db", store.Path()))

	<-ctx.Done()
	logger.Info("shutting down")
	manager.Stop()
	logger.Info("dubflowd stopped")
}
