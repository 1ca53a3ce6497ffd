// Package supervise runs a child command under a watchdog.
//
// Every write the child makes to stdout or stderr counts as a ping, so an
// unmodified program that logs while it makes progress can be supervised
// without linking against canary. When the watchdog triggers, the child's
// process group is sent SIGTERM and, after a grace period, SIGKILL.
package supervise

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/bft-labs/canary/pkg/canary"
	"github.com/bft-labs/canary/pkg/log"
	"github.com/bft-labs/canary/pkg/watchdog"
)

// waitDelay bounds how long Wait keeps copying output after the child exits,
// for grandchildren that inherited the pipes.
const waitDelay = time.Second

// ErrNotStarted is returned by Wait before Start succeeded.
var ErrNotStarted = errors.New("supervise: child not started")

// Config describes the child command.
type Config struct {
	Command string
	Args    []string

	// Stdout and Stderr receive the child's output. Default: os.Stdout and os.Stderr.
	Stdout io.Writer
	Stderr io.Writer

	// Grace is the delay between SIGTERM and SIGKILL on Terminate.
	Grace time.Duration

	Logger log.Logger
}

// Supervisor owns one child process.
type Supervisor struct {
	cfg    Config
	logger log.Logger

	cmd       *exec.Cmd
	done      chan struct{}
	waitErr   error
	terminate sync.Once
}

// New returns a Supervisor for cfg.
func New(cfg Config) (*Supervisor, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, errors.New("supervise: command is required")
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	if cfg.Grace < 0 {
		cfg.Grace = 0
	}
	return &Supervisor{
		cfg:    cfg,
		logger: log.OrNoop(cfg.Logger),
		done:   make(chan struct{}),
	}, nil
}

// Start launches the child. Output written by the child pings p.
func (s *Supervisor) Start(p canary.Pinger) error {
	cmd := exec.Command(s.cfg.Command, s.cfg.Args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = &pingWriter{w: s.cfg.Stdout, pinger: p}
	cmd.Stderr = &pingWriter{w: s.cfg.Stderr, pinger: p}
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("supervise: start %s: %w", s.cfg.Command, err)
	}
	s.cmd = cmd

	s.logger.Info("child started",
		log.String("command", s.cfg.Command),
		log.Int("pid", cmd.Process.Pid),
	)

	go func() {
		s.waitErr = cmd.Wait()
		close(s.done)
	}()
	return nil
}

// Wait blocks until the child exits or ctx is done, and returns the exit
// code the supervisor should propagate. A child killed by a signal maps to
// 128 plus the signal number, as shells report it.
func (s *Supervisor) Wait(ctx context.Context) (int, error) {
	if s.cmd == nil {
		return -1, ErrNotStarted
	}

	select {
	case <-ctx.Done():
		return -1, ctx.Err()
	case <-s.done:
	}

	code, err := exitCode(s.waitErr)
	s.logger.Info("child exited", log.Int("exit_code", code))
	return code, err
}

// Done is closed once the child has exited.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Terminate asks the child's process group to exit, escalates to SIGKILL
// after the grace period and waits for the child to be reaped.
// Calls after the first only wait.
func (s *Supervisor) Terminate() {
	if s.cmd == nil {
		return
	}

	s.terminate.Do(func() {
		if err := signalTerminate(s.cmd); err != nil {
			s.logger.Debug("terminate signal failed", log.Err(err))
		}

		timer := time.NewTimer(s.cfg.Grace)
		defer timer.Stop()

		select {
		case <-s.done:
			return
		case <-timer.C:
		}

		s.logger.Warn("child ignored termination, killing",
			log.Millis("grace_ms", s.cfg.Grace))
		if err := signalKill(s.cmd); err != nil {
			s.logger.Debug("kill signal failed", log.Err(err))
		}
	})
	<-s.done
}

// TriggerAction returns a watchdog action that terminates the child and
// then runs next. Pass watchdog.TerminateProcess() to exit with the watchdog
// exit code once the child is gone.
func (s *Supervisor) TriggerAction(next watchdog.Action) watchdog.Action {
	return watchdog.Callback(func(ev watchdog.TriggerEvent) {
		s.logger.Error("watchdog triggered, terminating child",
			log.Millis("timeout_ms", ev.Timeout),
			log.Millis("elapsed_ms", ev.Elapsed),
		)
		s.Terminate()
		if next != nil {
			next.Trigger(ev)
		}
	})
}

func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return -1, fmt.Errorf("supervise: wait: %w", err)
	}
	if code := exitErr.ExitCode(); code >= 0 {
		return code, nil
	}
	if code, ok := signalExitCode(exitErr); ok {
		return code, nil
	}
	return 1, nil
}

// pingWriter forwards output and pings on every write.
type pingWriter struct {
	w      io.Writer
	pinger canary.Pinger
}

func (pw *pingWriter) Write(p []byte) (int, error) {
	if len(p) > 0 {
		_ = pw.pinger.Ping()
	}
	return pw.w.Write(p)
}
