package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/issues/internal/api"
	"github.com/joescharf/issues/internal/daemon"
	"github.com/joescharf/issues/internal/output"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the issues HTTP API server",
	Long: `Start the JSON HTTP API in the foreground.
By default it listens on port 8080. Use --port to change it.

Use "issues serve start" to run it in the background.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmd.Context())
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the API server in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background API server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

func init() {
	serveCmd.AddCommand(serveStartCmd)
	serveCmd.AddCommand(serveStopCmd)
	serveCmd.AddCommand(serveStatusCmd)
	rootCmd.AddCommand(serveCmd)

	serveCmd.PersistentFlags().IntP("port", "p", 8080, "port to listen on")
	_ = viper.BindPFlag("port", serveCmd.PersistentFlags().Lookup("port"))
}

// pidFile returns the PID file tracking the background server.
func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(viper.GetString("state_dir"), "issues-serve.pid"))
}

// serveLogPath is where the background server writes its logs.
func serveLogPath() string {
	return filepath.Join(viper.GetString("state_dir"), "issues-serve.log")
}

func newHTTPServer() (*http.Server, error) {
	svc, err := getService()
	if err != nil {
		return nil, err
	}
	if viper.GetString("auth.secret") == "" {
		logger.Warn("auth.secret is empty; every mutating request will be rejected")
	}

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", viper.GetInt("port")),
		Handler:           api.NewServer(svc, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          newStdLogger(),
	}, nil
}

func serveRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	srv, err := newHTTPServer()
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", srv.Addr, err)
	}
	return serveUntilSignal(ctx, srv, ln)
}

// serveUntilSignal serves on ln until ctx is cancelled or a shutdown signal
// arrives, then drains in-flight requests.
func serveUntilSignal(ctx context.Context, srv *http.Server, ln net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	logger.Info("api server listening", "addr", ln.Addr().String())
	ui.Info("Serving API at http://%s", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func serveStartRun() error {
	pf := pidFile()
	if rec, running := pf.IsRunning(); running {
		return fmt.Errorf("server already running (pid %d, port %d)", rec.PID, rec.Port)
	}

	if dryRun {
		ui.DryRunMsg("Would start API server on port %d", viper.GetInt("port"))
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(serveLogPath()), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	logFile, err := os.OpenFile(serveLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("find executable: %w", err)
	}

	args := []string{"serve", "--port", strconv.Itoa(viper.GetInt("port"))}
	if cfg := viper.ConfigFileUsed(); cfg != "" {
		args = append(args, "--config", cfg)
	}

	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)

	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	pid := child.Process.Pid
	if err := pf.Write(daemon.Record{PID: pid, Port: viper.GetInt("port")}); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	_ = child.Process.Release()

	ui.Success("Started API server (pid %d) on port %d", pid, viper.GetInt("port"))
	ui.Info("Logs: %s", serveLogPath())
	return nil
}

func serveStopRun() error {
	pf := pidFile()
	rec, running := pf.IsRunning()
	if !running {
		_ = pf.Remove()
		return fmt.Errorf("server not running")
	}

	if dryRun {
		ui.DryRunMsg("Would stop API server (pid %d)", rec.PID)
		return nil
	}

	term, kill := stopSignals()
	if err := pf.Signal(term); err != nil {
		return fmt.Errorf("signal server: %w", err)
	}

	deadline := time.Now().Add(shutdownTimeout)
	for time.Now().Before(deadline) {
		if _, alive := pf.IsRunning(); !alive {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if _, alive := pf.IsRunning(); alive {
		ui.Warning("Server did not exit in %s, killing", shutdownTimeout)
		_ = pf.Signal(kill)
	}

	_ = pf.Remove()
	ui.Success("Stopped API server (pid %d)", rec.PID)
	return nil
}

func serveStatusRun() error {
	pf := pidFile()
	rec, running := pf.IsRunning()
	if !running {
		fmt.Fprintf(ui.Out, "API server: %s\n", output.Yellow("not running"))
		return nil
	}
	fmt.Fprintf(ui.Out, "API server: %s (pid %d)\n", output.Green("running"), rec.PID)
	fmt.Fprintf(ui.Out, "  URL: http://localhost:%d\n", rec.Port)
	fmt.Fprintf(ui.Out, "  Log: %s\n", serveLogPath())
	return nil
}
