package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"

	"myhttpd/backend"
	"myhttpd/config"
	"myhttpd/handler"
	"myhttpd/logging"
	"myhttpd/manager"
	"myhttpd/observability"
	"myhttpd/queue"
	"myhttpd/scheduler"
	"myhttpd/server"
)

const monitorInterval = 5 * time.Second

func main() {
	if err := run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(os.Args[0]), err)
		os.Exit(1)
	}
}

func run(args []string) error {
	exec := filepath.Base(args[0])
	flags := config.NewFlagSet(exec)
	flags.Usage = func() { config.PrintUsage(os.Stderr, exec, flags) }

	cli, err := config.ParseArgs(flags, args[1:])
	if err != nil {
		return err
	}
	if cli.Help {
		config.PrintUsage(os.Stdout, exec, flags)
		return nil
	}

	cfg, err := config.LoadConfig(cli.ConfigFile, flags)
	if err != nil {
		return err
	}

	if cfg.Debug {
		logging.InitLogger(logrus.DebugLevel)
	} else {
		logging.InitLogger(logrus.InfoLevel)
	}
	log := logging.GetLogger()

	shutdownTracing, err := observability.InitTracing(cfg.TracingOptions("myhttpd"))
	if err != nil {
		return err
	}

	store, err := backend.New(cfg.RootDir, cfg.HomeDir)
	if err != nil {
		return err
	}

	access, err := logging.NewAccessLog(cfg.LogFile, cfg.Debug)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.ListenAddress())
	if err != nil {
		return multierr.Append(fmt.Errorf("cannot listen on %s: %w", cfg.ListenAddress(), err), access.Close())
	}

	reqQueue := queue.NewRequestQueue(cfg.QueueOptions())
	pool, err := manager.NewWorkerPool(cfg.Threads)
	if err != nil {
		return multierr.Combine(err, ln.Close(), access.Close())
	}

	resolver := handler.NewResolver(store.Fs, store.Root, store.Home)
	httpHandler := handler.NewHTTPHandler(handler.Options{
		Resolver:     resolver,
		Builder:      handler.NewResponseBuilder(store.Fs),
		AccessLog:    access,
		ConnDeadline: cfg.ConnDeadline,
	})
	sched := scheduler.New(reqQueue, pool, httpHandler, scheduler.Options{
		Quiescence: cfg.Quiescence(),
		Countdown:  cfg.Debug,
	})
	srv := server.New(ln, reqQueue, resolver, server.Options{ReadTimeout: cfg.ReadTimeout})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infof("Serving %s on %s (policy %s, %d threads, queuing time %s)",
		store.Root, srv.Addr(), reqQueue.Policy(), pool.Size(), cfg.Quiescence())
	if cfg.Debug {
		log.Debugf("Debug mode: access log on stdout, one worker thread")
	}

	var wg conc.WaitGroup
	wg.Go(func() { reqQueue.Monitor(ctx, monitorInterval) })
	wg.Go(func() { pool.Monitor(ctx, monitorInterval) })

	serveErr := make(chan error, 1)
	wg.Go(func() {
		serveErr <- srv.Serve(ctx)
		// A failed listener ends the scheduler too.
		stop()
	})
	wg.Go(func() { sched.Run(ctx) })

	<-ctx.Done()
	log.Infoln("Shutting down")

	if r := wg.WaitAndRecover(); r != nil {
		log.Errorf("Panic during shutdown: %v", r.Value)
	}

	var errs error
	if err := <-serveErr; err != nil && !errors.Is(err, net.ErrClosed) {
		errs = multierr.Append(errs, err)
	}
	errs = multierr.Append(errs, srv.Close())
	errs = multierr.Append(errs, access.Close())

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errs = multierr.Append(errs, shutdownTracing(flushCtx))
	return errs
}
