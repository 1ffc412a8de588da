package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	pagecapture "github.com/porticus-lab/go-page-capture"
	"github.com/porticus-lab/go-page-capture/httpapi"
)

const (
	defaultAddr     = ":8080"
	shutdownTimeout = 30 * time.Second
)

type serveFlags struct {
	config      string
	addr        string
	maxBody     int64
	concurrency int
	browser     browserFlags
	layout      layoutFlags
	log         logFlags
}

func parseServeFlags(args []string, stderr io.Writer) (*serveFlags, error) {
	var f serveFlags
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&f.config, "config", "c", "", "YAML config file")
	fs.StringVar(&f.addr, "addr", "", "listen address (default "+defaultAddr+")")
	fs.Int64Var(&f.maxBody, "max-body", 0, "maximum request body in bytes")
	fs.IntVar(&f.concurrency, "concurrency", 0, "simultaneous exports (default GOMAXPROCS)")
	addBrowserFlags(fs, &f.browser)
	addLayoutFlags(fs, &f.layout)
	addLogFlags(fs, &f.log)
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 0 {
		return nil, fmt.Errorf("%w: serve takes no arguments", errUsage)
	}
	return &f, nil
}

func (f *serveFlags) apply(cfg *pagecapture.Config) {
	ef := exportFlags{browser: f.browser, layout: f.layout, log: f.log}
	ef.apply(cfg)
	if f.addr != "" {
		cfg.Server.Addr = f.addr
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultAddr
	}
	if f.maxBody > 0 {
		cfg.Server.MaxBodyBytes = f.maxBody
	}
	if f.concurrency > 0 {
		cfg.Server.Concurrency = f.concurrency
	}
}

func runServe(args []string, stderr io.Writer) error {
	f, err := parseServeFlags(args, stderr)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(f.config)
	if err != nil {
		return err
	}
	f.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := newLogger(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defaults, err := cfg.ExportOptions()
	if err != nil {
		return err
	}

	exp, err := pagecapture.NewExporter(cfg.ExporterOptions(logger)...)
	if err != nil {
		return err
	}
	defer exp.Close()

	api := httpapi.New(exp,
		httpapi.WithLogger(logger),
		httpapi.WithDefaults(defaults),
		httpapi.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		httpapi.WithConcurrency(cfg.Server.Concurrency),
	)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("server stopped")
	return nil
}
