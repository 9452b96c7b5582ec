// Command min-creds runs the credential-lease broker: it loads a YAML
// configuration file given as its one positional argument, restores any
// persisted leases, serves the HTTP API until interrupted, and saves live
// leases back to disk before exiting.
//
// Ground: original_source/min_creds/src/main.rs's boot sequence
// (read config, optionally load persisted leases, start the expiry
// sweeper, serve, save on exit), expressed with a pflag positional
// argument and signal-driven graceful shutdown the way coredhcp's own
// cmd/ wires its server lifecycle.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/dlr-eoc/min-creds/broker"
	"github.com/dlr-eoc/min-creds/config"
	"github.com/dlr-eoc/min-creds/httpapi"
	"github.com/dlr-eoc/min-creds/logger"
	"github.com/dlr-eoc/min-creds/persistence"
)

var version = "dev"

var log = logger.GetLogger("main")

func main() {
	pflag.Parse()
	if pflag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: min-creds <config-file>")
		os.Exit(2)
	}

	if err := run(pflag.Arg(0)); err != nil {
		log.WithError(err).Error("exiting")
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	logger.SetLevel(level)
	if cfg.LogFile != "" {
		if err := logger.SetLogFile(cfg.LogFile, level); err != nil {
			return fmt.Errorf("opening log file %s: %w", cfg.LogFile, err)
		}
	}

	log.Infof("min-creds (v%s)", version)

	reg := broker.NewRegistry(cfg)

	if cfg.PersistentLeasesFilename != "" {
		if err := persistence.Load(cfg.PersistentLeasesFilename, reg); err != nil {
			log.WithError(err).Warn("could not load persistent leases")
		} else {
			log.Info("persistent leases loaded")
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := &http.Server{
		Addr:    cfg.ListenOn,
		Handler: httpapi.NewServer(reg, cfg.WebPath),
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		broker.RunSweeper(groupCtx, reg)
		return nil
	})
	group.Go(func() error {
		return serve(srv, cfg)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Infof("starting webserver on %s using path %s", cfg.ListenOn, cfg.WebPath)
	if err := group.Wait(); err != nil && err != http.ErrServerClosed {
		return err
	}

	if cfg.PersistentLeasesFilename != "" {
		if err := persistence.Save(cfg.PersistentLeasesFilename, reg); err != nil {
			log.WithError(err).Warn("could not save persistent leases")
		}
	}

	return nil
}

func serve(srv *http.Server, cfg *config.Config) error {
	if cfg.SSL == nil {
		err := srv.ListenAndServe()
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}

	srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	err := srv.ListenAndServeTLS(cfg.SSL.CertificateChainFile, cfg.SSL.PrivateKeyPEMFile)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
