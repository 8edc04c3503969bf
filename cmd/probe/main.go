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
	"serialpha/src/models"
	"serialpha/src/transport"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// probe opens one instrument outside the service and prints what the
// acquisition pipeline makes of its records.
func main() {
	// 1. Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	listOnly := flag.Bool("list", false, "list serial ports and profiles, then exit")
	profileArg := flag.String("profile", "0", "profile index or exact name")
	profilesFile := flag.String("profiles", "", "profile document to import before selecting")
	port := flag.String("port", "", "serial port (default: config, then first available)")
	replay := flag.String("replay", "", "read a captured stream instead of a serial port")
	records := flag.Int("records", 10, "stop after this many records, 0 for no limit")
	timeout := flag.Duration("timeout", 30*time.Second, "give up after this long, 0 for no limit")
	statusAddr := flag.String("status", "", "print the state of a running service (gRPC host:port), then exit")
	flag.Parse()

	if *statusAddr != "" {
		os.Exit(queryStatus(*statusAddr))
	}

	// 2. Load config
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *replay != "" {
		conf.Transport.ReplayFile = *replay
	}
	if *port != "" {
		conf.Transport.Port = *port
	}

	// 3. Setup Logger (diagnostics go to stdout next to the results)
	if err := logger.Init(conf.LogLevel, models.MLoggerConfig{Mode: "development"}); err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// 4. Profiles
	registry, err := loadProfiles(*profilesFile)
	if err != nil {
		fmt.Printf("Error loading profiles: %v\n", err)
		os.Exit(1)
	}

	if *listOnly {
		printPorts()
		printProfiles(registry)
		return
	}

	p, err := pickProfile(registry, *profileArg)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	// 5. Run until enough records, the timeout or Ctrl-C
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	opener := transport.NewOpener(conf.Transport)
	stats, err := run(ctx, opener, p, conf.MConfig, *records, os.Stdout)
	fmt.Printf("\n%d bytes, %d records, %d parsed, %d rejected\n", stats.bytes, stats.records, stats.parsed, stats.rejected)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// -----------------------------------------------------------------------------

func queryStatus(addr string) int {
	cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}
	defer cc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := printStatus(ctx, cc, os.Stdout); err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}
	return 0
}
