package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"serialpha/src/config"
	"serialpha/src/logger"
	"serialpha/src/server"
	"serialpha/src/utils"
)

// -----------------------------------------------------------------------------

func main() {
	// 1. Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	replayFile := flag.String("replay", "", "replay a captured instrument stream instead of a serial port")
	flag.Parse()

	// 2. Load config
	conf, created, err := config.LoadOrCreate(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if created {
		fmt.Printf("Wrote default config to %s\n", *configPath)
	}
	if *replayFile != "" {
		conf.Transport.ReplayFile = *replayFile
	}

	// 3. Setup Logger
	if err := logger.Init(conf.LogLevel, conf.Logger); err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	appLogger := logger.NewLogger(conf, conf.Name)

	// 4. Setup Components
	gateway := setupStorage(conf.MConfig, appLogger)
	defer gateway.Close()

	memLimit := setupMemoryLimit(appLogger)

	srv := server.NewControlServer(conf.MConfig, logger.NewLogger(conf, "ControlServer"))
	ctrl := setupController(conf.MConfig, gateway, srv)
	srv.SetController(ctrl)

	// 5. Restore the previous session and profiles
	ctrl.Restore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctrl.Start(ctx)

	autoExporter := setupAutoExport(conf.MConfig, ctrl, appLogger)
	if autoExporter != nil {
		autoExporter.Start()
		appLogger.Info("Auto export scheduled, next run at %s", autoExporter.Next().Format(time.RFC3339))
	}

	// 6. Start Servers
	grpcServer := startServers(srv, ctrl, conf.MConfig, appLogger)

	go utils.NewMemoryMonitor(memLimit).Run(ctx, time.Minute)

	appLogger.Info("%s ready on http://%s:%d", conf.Name, conf.Host, conf.Port)

	// 7. Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	if autoExporter != nil {
		autoExporter.Stop(10 * time.Second)
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if err := srv.Stop(); err != nil {
		appLogger.Warning("Control server shutdown: %v", err)
	}
	ctrl.Shutdown()
	cancel()
	appLogger.Info("Bye")
}
