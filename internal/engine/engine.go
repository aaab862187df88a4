// Package engine wires every component together into a running inspector
// process: topology resolution, the store, the supervised background
// tasks, and clean shutdown. It mirrors the teacher's Cfg constructor
// (cfg.go's NewCfg/Shutdown) — one struct built once at startup, options
// applied in order, a single cancel func torn down on Shutdown.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iotinspector/inspector/internal/adapters/forwarding"
	"github.com/iotinspector/inspector/internal/adapters/mdns"
	"github.com/iotinspector/inspector/internal/adapters/oui"
	"github.com/iotinspector/inspector/internal/adapters/ssdp"
	"github.com/iotinspector/inspector/internal/arpscan"
	"github.com/iotinspector/inspector/internal/capture"
	"github.com/iotinspector/inspector/internal/classify"
	"github.com/iotinspector/inspector/internal/config"
	"github.com/iotinspector/inspector/internal/handlers"
	"github.com/iotinspector/inspector/internal/netstate"
	"github.com/iotinspector/inspector/internal/sender"
	"github.com/iotinspector/inspector/internal/spoof"
	"github.com/iotinspector/inspector/internal/store"
	"github.com/iotinspector/inspector/internal/tasks"
	"github.com/iotinspector/inspector/internal/topology"
)

// Periods grounded on the original's SafeLoopThread sleep_time arguments in
// core.py (topology=60s, arp scan=10s, mdns/ssdp=5s, capture rolling-restart
// window=30s). The original ticks its spoof loop every 1s and gates actual
// sends with its own INTERNET_SPOOFING_INTERVAL=10s counter, a workaround
// for a freshness check tasks.Spawn's own period already gives us for free
// — so the spoof task is simply scheduled at the 10s interval directly.
const (
	topologyRefreshPeriod = 60 * time.Second
	arpScanPeriod         = 10 * time.Second
	spoofTickPeriod       = 10 * time.Second
	mdnsScanPeriod        = 5 * time.Second
	ssdpScanPeriod        = 5 * time.Second
	captureWindow         = 30 * time.Second
	captureRestartDelay   = 1 * time.Second // pause between capture windows
	topologyResolveWait   = 30 * time.Second
	queueCapacity         = 4096
	snaplen               = 65535
)

// Engine owns every long-running component and the shared netstate/store
// they operate on.
type Engine struct {
	log              *zap.Logger
	state            *netstate.State
	store            *store.Store
	queue            *capture.Queue
	fwd              forwarding.Toggler
	inspectByDefault bool
	netlinker        topology.Netlinker
	resolveWait      time.Duration
	cancel           context.CancelFunc
	wg               sync.WaitGroup
}

// Option configures an Engine at construction time, mirroring the
// teacher's functional-options pattern in NewCfg.
type Option func(*options)

type options struct {
	ouiDBPath   string
	netlinker   topology.Netlinker
	resolveWait time.Duration
}

// WithOUIDatabase points the engine at a vendor-prefix file (spec §6 "OUI
// database"). Omitted or unreadable paths leave vendor lookups always
// missing, never fatal.
func WithOUIDatabase(path string) Option {
	return func(o *options) { o.ouiDBPath = path }
}

// WithNetlinker overrides the Netlinker used for topology resolution.
// Exposed so tests can exercise Run's topology-failure path against a fake
// routing table instead of the host's real one.
func WithNetlinker(nl topology.Netlinker) Option {
	return func(o *options) { o.netlinker = nl }
}

// WithResolveWait overrides how long topology resolution retries before
// giving up. Exposed so tests don't have to wait out the production
// topologyResolveWait.
func WithResolveWait(d time.Duration) Option {
	return func(o *options) { o.resolveWait = d }
}

// New constructs an Engine: opens the store and wires the OUI vendor
// function. The supervised tasks are created and started by Run.
func New(cfg config.Config, log *zap.Logger, opts ...Option) (*Engine, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var vendor store.VendorLookup
	if o.ouiDBPath != "" {
		db := oui.Load(o.ouiDBPath)
		vendor = db.Lookup
	}

	dsn := ":memory:"
	if !cfg.UseInMemoryDB {
		dsn = cfg.DBFile
	}
	s, err := store.Open(dsn, vendor)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	nl := o.netlinker
	if nl == nil {
		nl = topology.DefaultNetlinker
	}
	resolveWait := o.resolveWait
	if resolveWait == 0 {
		resolveWait = topologyResolveWait
	}

	return &Engine{
		log:              log,
		state:            netstate.New(),
		store:            s,
		queue:            capture.NewQueue(queueCapacity),
		fwd:              forwarding.New(),
		inspectByDefault: cfg.InspectEveryDeviceByDefault,
		netlinker:        nl,
		resolveWait:      resolveWait,
	}, nil
}

// Run resolves the network topology, enables IP forwarding, and launches
// every supervised task. It blocks until ctx is canceled.
func (e *Engine) Run(ctx context.Context) error {
	resolved, err := topology.Resolve(ctx, e.netlinker, e.resolveWait, e.log)
	if err != nil {
		return fmt.Errorf("resolving topology: %w", err)
	}
	e.state.SetAddresses(resolved.ToAddresses())
	e.state.IsRunning.Store(true)
	e.state.IsInspecting.Store(true)

	if err := e.fwd.Enable(); err != nil {
		return fmt.Errorf("enabling ip forwarding: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	handle, err := sender.OpenLive(resolved.IfaceName, snaplen, true)
	if err != nil {
		return fmt.Errorf("opening send handle: %w", err)
	}
	var w sender.Writer = handle
	defer handle.Close()

	h := handlers.New(e.store, e.log, e.inspectByDefault)
	mdnsEnricher := mdns.New(e.store, e.log)
	ssdpEnricher := ssdp.New(e.store, e.log)

	tasks.Spawn(runCtx, "topology-refresh", topologyRefreshPeriod, func(ctx context.Context) error {
		r, err := topology.Resolve(ctx, e.netlinker, e.resolveWait, e.log)
		if err != nil {
			return err
		}
		e.state.SetAddresses(r.ToAddresses())
		return nil
	}, e.log)

	tasks.Spawn(runCtx, "arp-scan", arpScanPeriod, func(ctx context.Context) error {
		return arpscan.Scan(ctx, e.state, w, e.log)
	}, e.log)

	tasks.Spawn(runCtx, "packet-capture", captureRestartDelay, func(ctx context.Context) error {
		addrs := e.state.Addresses()
		if addrs.IfaceName == "" {
			return nil
		}
		return capture.Run(ctx, addrs.IfaceName, addrs.HostIP, captureWindow, e.queue, e.log)
	}, e.log)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		classify.Drain(runCtx, e.queue, e.state, h, e.log)
	}()

	tasks.Spawn(runCtx, "arp-spoof", spoofTickPeriod, func(ctx context.Context) error {
		return spoof.Cycle(ctx, e.state, e.store, w, e.log)
	}, e.log)

	tasks.Spawn(runCtx, "mdns-discovery", mdnsScanPeriod, func(ctx context.Context) error {
		mdnsEnricher.Scan(ctx)
		return nil
	}, e.log)

	tasks.Spawn(runCtx, "ssdp-discovery", ssdpScanPeriod, func(ctx context.Context) error {
		ssdpEnricher.Scan(ctx)
		return nil
	}, e.log)

	<-runCtx.Done()
	return nil
}

// Shutdown cancels every supervised task, disables IP forwarding, and
// closes the store (spec §4.C "process exit cancels them", spec §6 "clean-up
// path disables IP forwarding").
func (e *Engine) Shutdown() {
	e.state.IsRunning.Store(false)
	e.state.IsInspecting.Store(false)
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	if err := e.fwd.Disable(); err != nil {
		e.log.Warn("failed to disable ip forwarding during shutdown", zap.Error(err))
	}
	if err := e.store.Close(); err != nil {
		e.log.Warn("failed to close store during shutdown", zap.Error(err))
	}
}
