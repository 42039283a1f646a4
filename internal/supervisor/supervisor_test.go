package supervisor

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/reviews-extractor/internal/common"
	"github.com/joseph-ayodele/reviews-extractor/internal/credential"
)

// TestHelperProcess is the worker launched by the supervisor tests. It serves gRPC health,
// records the credential it was started with, and exits on interrupt.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	if out := os.Getenv("HELPER_OUT"); out != "" {
		f, err := os.OpenFile(out, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err == nil {
			_, _ = f.WriteString(os.Getenv(credential.EnvVar) + "\n")
			_ = f.Close()
		}
	}

	lis, err := net.Listen("tcp", os.Getenv("GRPC_ADDR"))
	if err != nil {
		os.Exit(3)
	}
	g := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(g, hs)
	go func() { _ = g.Serve(lis) }()

	<-sig
	g.Stop()
	os.Exit(0)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func freeAddr(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := lis.Addr().String()
	_ = lis.Close()
	return addr
}

func TestSupervisorRestartsOnCredentialChange(t *testing.T) {
	t.Setenv(credential.EnvVar, "")
	dir := t.TempDir()
	credPath := filepath.Join(dir, "config", "config.json")
	out := filepath.Join(dir, "launches.txt")
	addr := freeAddr(t)

	store, err := credential.NewStore(credPath, "fallback-key", quietLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	ready := make(chan int, 4)
	sup, err := New(Config{
		Command: []string{os.Args[0], "-test.run=TestHelperProcess"},
		Env: func() []string {
			return []string{
				"GO_WANT_HELPER_PROCESS=1",
				"GRPC_ADDR=" + addr,
				"HELPER_OUT=" + out,
				credential.EnvVar + "=" + store.Read(),
			}
		},
		HealthAddr:     addr,
		CredentialPath: credPath,
		ReadyTimeout:   10 * time.Second,
		StopTimeout:    5 * time.Second,
		Debounce:       50 * time.Millisecond,
		Stdout:         io.Discard,
		Stderr:         io.Discard,
		OnReady:        func(pid int) { ready <- pid },
	}, quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- sup.Run(ctx) }()

	waitPID := func() int {
		select {
		case pid := <-ready:
			return pid
		case err := <-errc:
			t.Fatalf("Run returned early: %v", err)
		case <-time.After(15 * time.Second):
			t.Fatal("worker did not become ready")
		}
		return 0
	}

	first := waitPID()
	if err := store.Update("rotated-key-123"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	second := waitPID()
	if first == second {
		t.Fatalf("expected a new worker process, pid %d reused", first)
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read launches: %v", err)
	}
	launches := strings.Fields(string(data))
	if len(launches) != 2 || launches[0] != "fallback-key" || launches[1] != "rotated-key-123" {
		t.Fatalf("worker launches = %v", launches)
	}
}

func TestWorkerEnv(t *testing.T) {
	cfg := common.DefaultConfig()
	cfg.Storage.UploadsDir = "/data/uploads"
	cfg.Storage.CredentialPath = "/data/config.json"

	env := WorkerEnv(cfg, "secret-value")
	for _, want := range []string{
		"UPLOADS_DIR=/data/uploads",
		"CONFIG_FILE_PATH=/data/config.json",
		"PLEPER_API_KEY=secret-value",
		"GRPC_ADDR=" + cfg.Server.GRPCAddr,
	} {
		if !slices.Contains(env, want) {
			t.Fatalf("missing %q in %v", want, env)
		}
	}
	for _, kv := range WorkerEnv(cfg, "") {
		if strings.HasPrefix(kv, "PLEPER_API_KEY=") {
			t.Fatalf("empty credential must not be exported: %v", kv)
		}
	}
}

func TestNewRequiresCommand(t *testing.T) {
	if _, err := New(Config{}, quietLogger()); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestWatchFileCoalescesBursts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := WatchFile(ctx, path, 100*time.Millisecond, quietLogger())
	if err != nil {
		t.Fatalf("WatchFile: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	select {
	case <-events:
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
	select {
	case <-events:
		t.Fatal("burst should be reported once")
	case <-time.After(400 * time.Millisecond):
	}
}
