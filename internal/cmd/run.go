package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/httpd/internal/admin"
	"github.com/Brownie44l1/httpd/internal/config"
	"github.com/Brownie44l1/httpd/internal/daemon"
	"github.com/Brownie44l1/httpd/internal/files"
	"github.com/Brownie44l1/httpd/internal/headers"
	"github.com/Brownie44l1/httpd/internal/hub"
	"github.com/Brownie44l1/httpd/internal/logger"
	"github.com/Brownie44l1/httpd/internal/router"
	"github.com/Brownie44l1/httpd/internal/server"
)

// Extra time a stopping daemon gets beyond its own shutdown timeout.
const daemonStopGrace = 5 * time.Second

func run(cmd *cobra.Command, c config.Config) error {
	if c.Daemon != config.DaemonNone && !daemon.Daemonized() {
		return controlDaemon(cmd, c)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	release, err := daemon.Foreground(c.PIDFile)
	if err != nil {
		return err
	}
	defer release()

	out, closeLog, err := logOutput(cmd, c)
	if err != nil {
		return err
	}
	defer closeLog()

	return serve(ctx, c, out)
}

func controlDaemon(cmd *cobra.Command, c config.Config) error {
	ctl, err := daemon.NewController(c.PIDFile, os.Args[1:])
	if err != nil {
		return err
	}
	ctl.StopTimeout = c.ShutdownTimeout + daemonStopGrace
	ctl.Out = cmd.OutOrStdout()

	switch c.Daemon {
	case config.DaemonStart:
		_, err = ctl.Start()
	case config.DaemonStop:
		err = ctl.Stop(cmd.Context())
	case config.DaemonRestart:
		_, err = ctl.Restart(cmd.Context())
	}
	return err
}

// logOutput picks where log lines go. The returned func closes a log file.
func logOutput(cmd *cobra.Command, c config.Config) (io.Writer, func() error, error) {
	noop := func() error { return nil }
	switch {
	case !c.Log:
		return nil, noop, nil
	case c.LogFile != "":
		f, err := logger.OpenFile(c.LogFile)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	default:
		return cmd.OutOrStdout(), noop, nil
	}
}

// serve wires every component and runs until ctx is cancelled or the
// listener fails.
func serve(ctx context.Context, c config.Config, out io.Writer) error {
	sink := logger.NewSink(out, c.ServerName)
	log := logger.New(sink, c.Debug)

	var pub logger.Publisher
	var events *hub.Hub
	if c.AdminAddr != "" {
		events = hub.New()
		pub = events
	}
	access := logger.NewAccessLog(sink, pub)

	resolver, err := files.NewResolver(c.RootDir, c.DefaultFile, c.Deny)
	if err != nil {
		return err
	}

	validator := headers.Validator{
		Strict:     c.StrictHost,
		ServerName: c.ServerName,
		IP:         c.IP,
		Port:       strconv.Itoa(c.Port),
	}

	srv := server.New(server.Config{
		Addr:           c.Addr(),
		ServerName:     c.ServerName,
		ReadTimeout:    c.ReadTimeout,
		WriteTimeout:   c.WriteTimeout,
		MaxHeaderBytes: c.MaxHeaderBytes,
	}, router.New(resolver, validator, log), access, log)

	l, err := net.Listen("tcp", c.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", c.Addr(), err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if c.Watch {
		go func() {
			if err := resolver.Watch(ctx, log); err != nil {
				log.Warn("file watching disabled", logger.Err(err))
			}
		}()
	}

	if events != nil {
		go events.Start(ctx)
		go func() {
			if err := admin.New(srv, events, log).ListenAndServe(ctx, c.AdminAddr); err != nil {
				log.Error("admin API stopped", logger.Err(err))
			}
		}()
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(l) }()

	select {
	case err := <-errc:
		if errors.Is(err, server.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), c.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown incomplete", logger.Err(err))
	}
	<-errc
	return nil
}
