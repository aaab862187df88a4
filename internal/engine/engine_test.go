package engine

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"
	"go.uber.org/zap"

	"github.com/iotinspector/inspector/internal/config"
)

// mockNetlinker is the same narrow testify mock topology_test.go uses,
// reproduced here since the real type is unexported to that package.
type mockNetlinker struct {
	mock.Mock
}

func (m *mockNetlinker) RouteList(link netlink.Link, family int) ([]netlink.Route, error) {
	args := m.Called(link, family)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]netlink.Route), args.Error(1)
}

func (m *mockNetlinker) LinkByIndex(index int) (netlink.Link, error) {
	args := m.Called(index)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(netlink.Link), args.Error(1)
}

type recordingToggler struct {
	enableCalled, disableCalled bool
	enableErr                  error
}

func (r *recordingToggler) Enable() error {
	r.enableCalled = true
	return r.enableErr
}

func (r *recordingToggler) Disable() error {
	r.disableCalled = true
	return nil
}

func TestNew_ThreadsInspectByDefaultAndOUIOption(t *testing.T) {
	ctx := context.Background()
	cfg := config.Config{UseInMemoryDB: true, InspectEveryDeviceByDefault: true}

	e, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	require.True(t, e.inspectByDefault)

	require.NoError(t, e.store.UpsertDeviceFromARP(ctx, "aa:bb:cc:00:00:01", "192.168.1.5", 1, false, e.inspectByDefault))
	d, ok, err := e.store.GetDevice(ctx, "aa:bb:cc:00:00:01")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, d.IsInspected)
}

func TestNew_DefaultsToEphemeralInMemoryStore(t *testing.T) {
	e, err := New(config.Default(), zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, e.store)
	// An in-memory store never persists, so two independent opens never
	// collide; a cheap smoke check that Open succeeded against ":memory:".
	require.NoError(t, e.store.UpsertDeviceFromARP(context.Background(), "aa:bb:cc:00:00:02", "192.168.1.6", 1, false, false))
}

func TestRun_PropagatesTopologyResolutionFailure(t *testing.T) {
	nl := &mockNetlinker{}
	nl.On("RouteList", mock.Anything, netlink.FAMILY_V4).Return(nil, errors.New("netlink socket closed"))

	e, err := New(config.Default(), zap.NewNop(),
		WithNetlinker(nl),
		WithResolveWait(50*time.Millisecond))
	require.NoError(t, err)

	err = e.Run(context.Background())
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "resolving topology"))
}

// TestRun_PropagatesForwardingEnableFailure drives Run through a real
// topology resolution (loopback, index 1, is stable on Linux test hosts)
// and asserts a forwarding.Enable failure aborts Run before any task is
// spawned.
func TestRun_PropagatesForwardingEnableFailure(t *testing.T) {
	loopback := &netlink.Device{LinkAttrs: netlink.LinkAttrs{Name: "lo", Index: 1}}
	nl := &mockNetlinker{}
	nl.On("RouteList", mock.Anything, netlink.FAMILY_V4).Return(
		[]netlink.Route{{LinkIndex: 1, Gw: net.ParseIP("127.0.0.1")}}, nil)
	nl.On("LinkByIndex", 1).Return(loopback, nil)

	e, err := New(config.Default(), zap.NewNop(),
		WithNetlinker(nl),
		WithResolveWait(50*time.Millisecond))
	require.NoError(t, err)

	fake := &recordingToggler{enableErr: errors.New("sysctl: permission denied")}
	e.fwd = fake

	err = e.Run(context.Background())
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "enabling ip forwarding"))
	require.True(t, fake.enableCalled)
}
