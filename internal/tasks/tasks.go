// Package tasks runs the engine's long-lived background loops (topology
// refresh, ARP scan, packet capture, ARP spoofing, mDNS/SSDP discovery)
// under a common
// supervision policy: on error, log and retry after a jittered sleep;
// never return until the context is canceled (spec §4.C).
package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iotinspector/inspector/internal/misc"
)

// Func is one iteration of a supervised task. A non-nil error is logged
// and retried after the task's period; ctx cancellation should be checked
// by long-running implementations.
type Func func(ctx context.Context) error

// Spawn launches fn in its own goroutine, running it repeatedly every
// period (jittered 10%) until ctx is done. Each call to fn that returns an
// error is logged at Error level with the task name and retried; it is
// never fatal to the process (spec §7: per-cycle errors are logged and
// swallowed).
func Spawn(ctx context.Context, name string, period time.Duration, fn Func, log *zap.Logger) {
	go run(ctx, name, period, fn, log)
}

func run(ctx context.Context, name string, period time.Duration, fn Func, log *zap.Logger) {
	sleeper := misc.NewSleeper(period, 10)
	for {
		if ctx.Err() != nil {
			return
		}
		if err := fn(ctx); err != nil && log != nil {
			log.Error("task iteration failed", zap.String("task", name), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleeper.Duration()):
		}
	}
}
