package main

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keithlinneman/draftsite/internal/health"
	"github.com/keithlinneman/draftsite/internal/log"
)

const (
	drainPeriod     = 60 * time.Second
	shutdownTimeout = 10 * time.Second
)

// drain fails readiness and then waits out drainPeriod so the load balancer
// stops routing here before the listeners close. A second signal cuts the
// wait short.
func drain(L log.Logger, gate *health.Gate) {
	ctx := context.Background()
	gate.Drain("shutting down")
	L.Info(ctx, "readiness gate drained, waiting for load balancer", "drain_period", drainPeriod.String())

	again := make(chan os.Signal, 1)
	signal.Notify(again, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(again)

	select {
	case <-time.After(drainPeriod):
		L.Info(ctx, "drain period complete")
	case <-again:
		L.Warn(ctx, "second signal received, skipping drain")
	}
}

// shutdownStep is one component to stop, in order.
type shutdownStep struct {
	name string
	stop func(context.Context) error
}

func shutdown(L log.Logger, steps ...shutdownStep) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, s := range steps {
		if err := s.stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			L.Error(ctx, err, "shutdown step failed", "step", s.name)
		}
	}
}

var errNoNotifySocket = errors.New("NOTIFY_SOCKET not set")

// notifySystemd sends READY=1 when running under a Type=notify unit.
func notifySystemd() error {
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return errNoNotifySocket
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return err
	}
	_, werr := conn.Write([]byte("READY=1"))
	return errors.Join(werr, conn.Close())
}
