package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// EnvDaemonized marks the detached child so it does not detach again.
const EnvDaemonized = "HTTPD_DAEMONIZED"

var (
	ErrAlreadyRunning = errors.New("server already running")
	ErrBadPIDFile     = errors.New("malformed pid file")
	ErrStopTimeout    = errors.New("server did not stop in time")
)

// Daemonized reports whether this process is the detached child.
func Daemonized() bool {
	return os.Getenv(EnvDaemonized) == "1"
}

// Controller starts and stops a detached server recorded in a PID file.
type Controller struct {
	PIDFile     string
	Executable  string
	Args        []string
	StopTimeout time.Duration
	Out         io.Writer
}

// NewController controls the running binary with args.
func NewController(pidFile string, args []string) (*Controller, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	return &Controller{
		PIDFile:     pidFile,
		Executable:  exe,
		Args:        args,
		StopTimeout: 10 * time.Second,
		Out:         io.Discard,
	}, nil
}

// Start launches a detached copy of the server and records its PID. It
// refuses when the PID file names a live process.
func (c *Controller) Start() (int, error) {
	if pid, ok, err := Running(c.PIDFile); err != nil {
		return 0, err
	} else if ok {
		return 0, fmt.Errorf("%w: pid %d", ErrAlreadyRunning, pid)
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", os.DevNull, err)
	}
	defer devNull.Close()

	cmd := exec.Command(c.Executable, c.Args...)
	cmd.Env = append(os.Environ(), EnvDaemonized+"=1")
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start daemon: %w", err)
	}
	pid := cmd.Process.Pid

	if err := AppendPID(c.PIDFile, pid); err != nil {
		cmd.Process.Kill()
		return 0, err
	}
	cmd.Process.Release()

	fmt.Fprintf(c.Out, "started pid %d\n", pid)
	return pid, nil
}

// Stop interrupts every process in the PID file, waits for each to exit
// and removes the file.
func (c *Controller) Stop(ctx context.Context) error {
	pids, err := ReadPIDs(c.PIDFile)
	if err != nil {
		return err
	}

	if c.StopTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.StopTimeout)
		defer cancel()
	}

	for _, pid := range pids {
		if !alive(pid) {
			continue
		}
		if err := interrupt(pid); err != nil {
			return fmt.Errorf("signal pid %d: %w", pid, err)
		}
		if err := waitExit(ctx, pid); err != nil {
			return fmt.Errorf("pid %d: %w", pid, err)
		}
		fmt.Fprintf(c.Out, "stopped pid %d\n", pid)
	}

	return RemovePIDFile(c.PIDFile)
}

// Restart stops whatever is running, then starts again.
func (c *Controller) Restart(ctx context.Context) (int, error) {
	if err := c.Stop(ctx); err != nil {
		return 0, err
	}
	return c.Start()
}

func waitExit(ctx context.Context, pid int) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for alive(pid) {
		select {
		case <-ctx.Done():
			return ErrStopTimeout
		case <-ticker.C:
		}
	}
	return nil
}

// Foreground records this process in the PID file, unless it is the
// detached child whose parent already did. The returned func removes the
// file.
func Foreground(pidFile string) (func() error, error) {
	release := func() error { return RemovePIDFile(pidFile) }
	if Daemonized() {
		return release, nil
	}

	if pid, ok, err := Running(pidFile); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("%w: pid %d", ErrAlreadyRunning, pid)
	}

	// Stale entries from a crashed run are dropped
	if err := RemovePIDFile(pidFile); err != nil {
		return nil, err
	}
	if err := AppendPID(pidFile, os.Getpid()); err != nil {
		return nil, err
	}
	return release, nil
}
