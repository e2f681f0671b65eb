package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"modelshelf/internal/config"
	"modelshelf/internal/daemon"
	"modelshelf/internal/ipc"
	"modelshelf/internal/logging"
	"modelshelf/internal/modelcache"
	"modelshelf/internal/scanner"
)

func main() {
	configFlag := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := modelcache.Open(cfg)
	if err != nil {
		logger.Error("open cache store", logging.Error(err))
		return
	}

	fetcher, err := newFetcher(cfg)
	if err != nil {
		logger.Error("configure catalog client", logging.Error(err))
		return
	}

	scan := scanner.New(cfg, store, fetcher, logger)
	d, err := daemon.New(cfg, store, scan, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger, cancel)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		return
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("modelshelfd shutting down")
}
