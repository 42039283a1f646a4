// Package supervisor runs the HTTP service as a child process the way a desktop shell
// does: launch it with the shared locations in its environment, wait until it reports
// healthy, and restart it whenever the persisted credential changes.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/reviews-extractor/internal/common"
	"github.com/joseph-ayodele/reviews-extractor/internal/credential"
)

// Config describes the worker process.
type Config struct {
	Command        []string
	Env            func() []string // extra environment, evaluated at every start
	HealthAddr     string          // gRPC health endpoint of the worker; empty skips the probe
	CredentialPath string          // restart when this file changes
	ReadyTimeout   time.Duration
	StopTimeout    time.Duration
	RestartDelay   time.Duration // pause before relaunching a worker that exited on its own
	Debounce       time.Duration
	Stdout, Stderr io.Writer
	// OnReady is called after every successful start with the worker pid.
	OnReady func(pid int)
}

type Supervisor struct {
	cfg    Config
	logger *slog.Logger
}

// WorkerEnv is the environment handed to the worker: the shared artifact and credential
// locations plus the credential value current at launch.
func WorkerEnv(cfg *common.Config, credentialValue string) []string {
	env := []string{
		"UPLOADS_DIR=" + cfg.Storage.UploadsDir,
		"CONFIG_FILE_PATH=" + cfg.Storage.CredentialPath,
		"ADDR=" + cfg.Server.Addr,
		"GRPC_ADDR=" + cfg.Server.GRPCAddr,
	}
	if credentialValue != "" {
		env = append(env, credential.EnvVar+"="+credentialValue)
	}
	return env
}

// FromConfig builds the supervisor settings used by the CLI.
func FromConfig(cfg *common.Config, creds credential.Reader) Config {
	return Config{
		Command:        strings.Fields(cfg.Supervisor.WorkerCommand),
		Env:            func() []string { return WorkerEnv(cfg, creds.Read()) },
		HealthAddr:     cfg.Server.GRPCAddr,
		CredentialPath: cfg.Storage.CredentialPath,
		ReadyTimeout:   cfg.Supervisor.ReadyTimeout.Std(),
		StopTimeout:    cfg.Supervisor.StopTimeout.Std(),
	}
}

func New(cfg Config, logger *slog.Logger) (*Supervisor, error) {
	if len(cfg.Command) == 0 {
		return nil, common.InvalidInput("worker command is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 20 * time.Second
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 5 * time.Second
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = 2 * time.Second
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 250 * time.Millisecond
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	return &Supervisor{cfg: cfg, logger: logger}, nil
}

type worker struct {
	cmd  *exec.Cmd
	done chan error
}

// Run keeps one worker alive until ctx ends, then stops it.
func (s *Supervisor) Run(ctx context.Context) error {
	var changes <-chan struct{}
	if s.cfg.CredentialPath != "" {
		ch, _, err := WatchFile(ctx, s.cfg.CredentialPath, s.cfg.Debounce, s.logger)
		if err != nil {
			return fmt.Errorf("watch credential: %w", err)
		}
		changes = ch
	}

	for {
		w, err := s.start(ctx)
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			s.stop(w)
			return nil
		case <-changes:
			s.logger.Info("supervisor.credential.changed", "pid", w.cmd.Process.Pid)
			s.stop(w)
		case err := <-w.done:
			s.logger.Warn("supervisor.worker.exited", "pid", w.cmd.Process.Pid, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.cfg.RestartDelay):
			}
		}
	}
}

func (s *Supervisor) start(ctx context.Context) (*worker, error) {
	cmd := exec.Command(s.cfg.Command[0], s.cfg.Command[1:]...)
	cmd.Env = os.Environ()
	if s.cfg.Env != nil {
		cmd.Env = append(cmd.Env, s.cfg.Env()...)
	}
	cmd.Stdout = s.cfg.Stdout
	cmd.Stderr = s.cfg.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker %q: %w", s.cfg.Command[0], err)
	}
	w := &worker{cmd: cmd, done: make(chan error, 1)}
	go func() { w.done <- cmd.Wait() }()
	s.logger.Info("supervisor.worker.started", "pid", cmd.Process.Pid, "command", strings.Join(s.cfg.Command, " "))

	if s.cfg.HealthAddr != "" {
		if err := s.waitReady(ctx, w); err != nil {
			s.stop(w)
			return nil, err
		}
	}
	s.logger.Info("supervisor.worker.ready", "pid", cmd.Process.Pid)
	if s.cfg.OnReady != nil {
		s.cfg.OnReady(cmd.Process.Pid)
	}
	return w, nil
}

// waitReady polls the worker's gRPC health service until it reports SERVING.
func (s *Supervisor) waitReady(ctx context.Context, w *worker) error {
	conn, err := grpc.NewClient(s.cfg.HealthAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("health client: %w", err)
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadyTimeout)
	defer cancel()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		callCtx, callCancel := context.WithTimeout(ctx, time.Second)
		resp, err := client.Check(callCtx, &healthpb.HealthCheckRequest{})
		callCancel()
		if err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("worker not ready after %s: %w", s.cfg.ReadyTimeout, ctx.Err())
		case err := <-w.done:
			w.done <- err
			return fmt.Errorf("worker exited before becoming ready: %w", errOrExit(err))
		case <-tick.C:
		}
	}
}

// stop asks the worker to exit and kills it after StopTimeout.
func (s *Supervisor) stop(w *worker) {
	pid := w.cmd.Process.Pid
	if err := w.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Debug("supervisor.worker.signal_failed", "pid", pid, "error", err)
		_ = w.cmd.Process.Kill()
	}
	select {
	case <-w.done:
	case <-time.After(s.cfg.StopTimeout):
		s.logger.Warn("supervisor.worker.kill", "pid", pid)
		_ = w.cmd.Process.Kill()
		<-w.done
	}
	s.logger.Info("supervisor.worker.stopped", "pid", pid)
}

func errOrExit(err error) error {
	if err == nil {
		return errors.New("exit status 0")
	}
	return err
}
