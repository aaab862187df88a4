// Package handlers implements the six protocol handlers from spec §4.G:
// ARP learn, DHCP, DNS, TLS SNI, and the flow aggregator with its
// hostname backfill gate. Each handler is a narrow function over a
// decoded protocol.* struct and the shared store; internal/classify calls
// them through the Dispatcher interface it defines.
package handlers

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/iotinspector/inspector/internal/store"
)

// Clock lets tests control "now" instead of depending on wall time.
type Clock func() time.Time

// Handlers bundles the store and logger every handler needs. It
// implements internal/classify.Dispatcher.
type Handlers struct {
	Store *store.Store
	Log   *zap.Logger
	Clock Clock

	// InspectByDefault seeds is_inspected on newly discovered devices,
	// mirroring config.Config.InspectEveryDeviceByDefault (spec §6).
	InspectByDefault bool

	lastBackfillUnixNano atomic.Int64
}

// New constructs a Handlers using time.Now as its clock.
func New(s *store.Store, log *zap.Logger, inspectByDefault bool) *Handlers {
	return &Handlers{Store: s, Log: log, Clock: time.Now, InspectByDefault: inspectByDefault}
}

func (h *Handlers) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

// maybeBackfillFlowHostnames runs BackfillFlowHostnames at most once every
// 2 seconds (spec §4.G: "Hostname backfill on flows: at most every 2s").
func (h *Handlers) maybeBackfillFlowHostnames(ctx context.Context) {
	now := h.now().UnixNano()
	last := h.lastBackfillUnixNano.Load()
	if now-last < int64(2*time.Second) {
		return
	}
	if !h.lastBackfillUnixNano.CompareAndSwap(last, now) {
		return // another goroutine just won the race
	}
	h.Store.Lock()
	_, err := h.Store.BackfillFlowHostnames(ctx)
	h.Store.Unlock()
	if err != nil {
		h.Log.Warn("flow hostname backfill failed", zap.Error(err))
	}
}
