package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"serialpha/src/acquisition"
	"serialpha/src/grpc_control"
	"serialpha/src/logger"
	"serialpha/src/models"
	"serialpha/src/profile"
	"serialpha/src/transport"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

const probeProfile = `{"name":"bench","serial":{"baudRate":9600},"parser":{"delimiter":";","lineTerminator":"\r"}}`

func TestProbeReplay(t *testing.T) {
	dir := t.TempDir()
	capture := filepath.Join(dir, "capture.txt")
	if err := os.WriteFile(capture, []byte("7.00;25.3\r15;20\rabc;25.3\r7.10;25.4\r"), 0o644); err != nil {
		t.Fatal(err)
	}
	profiles := filepath.Join(dir, "profiles.json")
	if err := os.WriteFile(profiles, []byte(probeProfile), 0o644); err != nil {
		t.Fatal(err)
	}

	registry, err := loadProfiles(profiles)
	if err != nil {
		t.Fatalf("loadProfiles: %v", err)
	}
	p, err := pickProfile(registry, "bench")
	if err != nil {
		t.Fatalf("pickProfile: %v", err)
	}

	cfg := &models.MConfig{}
	opener := transport.NewReplayOpener(capture, 4, 0)

	var out bytes.Buffer
	stats, err := run(context.Background(), opener, p, cfg, 3, &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.records != 3 || stats.parsed != 2 || stats.rejected != 1 {
		t.Errorf("stats = %+v\n%s", stats, out.String())
	}
	if !strings.Contains(out.String(), `"15;20" -> rejected`) {
		t.Errorf("output:\n%s", out.String())
	}
}

func TestPickProfile(t *testing.T) {
	registry, err := loadProfiles("")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pickProfile(registry, "1"); err != nil {
		t.Errorf("index: %v", err)
	}
	if _, err := pickProfile(registry, "99"); err == nil {
		t.Error("out of range index accepted")
	}
	if _, err := pickProfile(registry, "no such meter"); err == nil {
		t.Error("unknown name accepted")
	}
}

func TestPrintStatus(t *testing.T) {
	cfg := &models.MConfig{}
	cfg.Export.FallbackDir = t.TempDir()
	ctrl := acquisition.NewController(acquisition.Options{Config: cfg, Registry: profile.NewRegistry()})
	defer ctrl.Shutdown()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	grpc_control.RegisterAcquisitionControlServer(srv, grpc_control.NewControlService(ctrl, logger.NewLogger(cfg, "ControlService")))
	go srv.Serve(lis)
	defer srv.Stop()

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer cc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var out bytes.Buffer
	if err := printStatus(ctx, cc, &out); err != nil {
		t.Fatalf("printStatus: %v", err)
	}
	var state map[string]interface{}
	if err := json.Unmarshal(out.Bytes(), &state); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if connected, ok := state["connected"].(bool); !ok || connected {
		t.Errorf("connected = %v in %s", state["connected"], out.String())
	}
}
