// Command server runs the Kiddies HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/charlesng35/kiddies/internal/app"
	"github.com/charlesng35/kiddies/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:])
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
	default:
		fmt.Fprintf(os.Stderr, "kiddies-server: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("kiddies-server", flag.ContinueOnError)
	configPath := fs.String("config", "", "configuration directory, or a file inside it")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(*configPath)
	if err != nil {
		return err
	}
	if err := app.ConfigureLogging(cfg.Server); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.WithModule("bootstrap")
	stack, err := bootstrapRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := stack.Shutdown(context.Background()); err != nil {
			log.Warn("shutdown cleanup", zap.Error(err))
		}
	}()

	if err := issueBootstrapInvite(ctx, stack.Services.Invites, cfg.Bootstrap.AdminEmail, log); err != nil {
		return err
	}
	logSecurityAudit(ctx, stack, cfg, logger.WithModule("security"))

	srv := newHTTPServer(cfg.Server, stack.Router)
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", srv.Addr, err)
	}
	log.Info("server listening", zap.String("addr", ln.Addr().String()))

	return serve(ctx, srv, ln, cfg.Server.ShutdownTimeout, log)
}

func loadApplicationConfig(path string) (*app.Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return app.LoadConfig()
	}

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config path %q does not exist", path)
	}
	if err != nil {
		return nil, fmt.Errorf("stat config path: %w", err)
	}
	if !info.IsDir() {
		path = filepath.Dir(path)
	}
	return app.LoadConfig(path)
}
