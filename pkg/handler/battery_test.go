package handler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfreebuds/freebuds-go/pkg/property"
	"github.com/openfreebuds/freebuds-go/pkg/spp"
)

// fakeRequester answers correlated requests from a canned response map.
type fakeRequester struct {
	mu        sync.Mutex
	responses map[spp.Command]*spp.Packet
	requests  []*spp.Packet
	err       error
}

func newFakeRequester() *fakeRequester {
	return &fakeRequester{responses: make(map[spp.Command]*spp.Packet)}
}

func (f *fakeRequester) respond(cmd spp.Command, params map[uint8][]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[cmd] = spp.NewPacket(cmd, params)
}

func (f *fakeRequester) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeRequester) SendPackage(_ context.Context, req *spp.Packet) (*spp.Packet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	resp, ok := f.responses[req.Command]
	if !ok {
		return nil, errors.New("no canned response")
	}
	return resp, nil
}

func (f *fakeRequester) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func TestBatteryDecodeScenario(t *testing.T) {
	store := property.New()
	b := NewBattery(BatteryConfig{DualEarbud: true}, newFakeRequester(), store, nil, nil)

	pkt := spp.NewPacket(spp.CmdBatteryNotify, map[uint8][]byte{
		1: {55},
		2: {40, 45, 99},
		3: {0x01},
	})
	require.NoError(t, b.OnPackage(context.Background(), pkt))

	assert.Equal(t, map[string]any{
		"global":      55,
		"left":        40,
		"right":       45,
		"case":        99,
		"is_charging": true,
	}, store.Namespace(NamespaceBattery))
}

func TestBatteryDualEarbudDisabled(t *testing.T) {
	store := property.New()
	b := NewBattery(BatteryConfig{DualEarbud: false}, newFakeRequester(), store, nil, nil)

	pkt := spp.NewPacket(spp.CmdBatteryNotify, map[uint8][]byte{
		1: {55},
		2: {40, 45, 99},
	})
	require.NoError(t, b.OnPackage(context.Background(), pkt))

	assert.Equal(t, map[string]any{"global": 55}, store.Namespace(NamespaceBattery))
}

func TestBatteryChargingMarkerAbsent(t *testing.T) {
	store := property.New()
	b := NewBattery(BatteryConfig{}, newFakeRequester(), store, nil, nil)

	pkt := spp.NewPacket(spp.CmdBatteryNotify, map[uint8][]byte{
		3: {0x00, 0x00},
	})
	require.NoError(t, b.OnPackage(context.Background(), pkt))

	assert.Equal(t, false, store.Get(NamespaceBattery, "is_charging", nil))
}

func TestBatteryPartialReportPreservesKnownFields(t *testing.T) {
	store := property.New()
	b := NewBattery(BatteryConfig{DualEarbud: true}, newFakeRequester(), store, nil, nil)

	full := spp.NewPacket(spp.CmdBatteryNotify, map[uint8][]byte{
		1: {55},
		2: {40, 45, 99},
	})
	require.NoError(t, b.OnPackage(context.Background(), full))

	// A later packet reporting only the global level must not erase the
	// per-earbud fields.
	partial := spp.NewPacket(spp.CmdBatteryNotify, map[uint8][]byte{
		1: {60},
	})
	require.NoError(t, b.OnPackage(context.Background(), partial))

	ns := store.Namespace(NamespaceBattery)
	assert.Equal(t, 60, ns["global"])
	assert.Equal(t, 40, ns["left"])
	assert.Equal(t, 45, ns["right"])
}

func TestBatteryMalformedParametersIgnored(t *testing.T) {
	store := property.New()
	b := NewBattery(BatteryConfig{DualEarbud: true}, newFakeRequester(), store, nil, nil)

	pkt := spp.NewPacket(spp.CmdBatteryNotify, map[uint8][]byte{
		1: {55, 99},   // wrong length for global
		2: {40, 45},   // wrong length for levels
		3: {},         // empty charging indicator
	})
	require.NoError(t, b.OnPackage(context.Background(), pkt))

	assert.Empty(t, store.Namespace(NamespaceBattery))
}

func TestBatteryOnInitBootstrapsStore(t *testing.T) {
	requester := newFakeRequester()
	requester.respond(spp.CmdBatteryRead, map[uint8][]byte{1: {77}})
	store := property.New()
	b := NewBattery(BatteryConfig{}, requester, store, nil, nil)

	require.NoError(t, b.OnInit(context.Background()))

	// The store is populated before OnInit returns.
	assert.Equal(t, 77, store.Get(NamespaceBattery, "global", nil))
	require.Equal(t, 1, requester.requestCount())

	// The bootstrap request asks for all three parameters.
	req := requester.requests[0]
	assert.Equal(t, spp.CmdBatteryRead, req.Command)
	assert.ElementsMatch(t, []uint8{1, 2, 3}, req.ParameterIDs())
}

func TestBatteryOnInitFailurePropagates(t *testing.T) {
	requester := newFakeRequester()
	requester.fail(assert.AnError)
	b := NewBattery(BatteryConfig{}, requester, property.New(), nil, nil)

	err := b.OnInit(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}

func TestBatteryPeriodicUpdates(t *testing.T) {
	requester := newFakeRequester()
	requester.respond(spp.CmdBatteryRead, map[uint8][]byte{1: {50}})
	store := property.New()
	b := NewBattery(BatteryConfig{
		PeriodicUpdate: true,
		UpdateInterval: 10 * time.Millisecond,
	}, requester, store, func() bool { return true }, nil)

	require.NoError(t, b.OnInit(context.Background()))
	require.Eventually(t, func() bool { return requester.requestCount() >= 3 }, time.Second, time.Millisecond)

	require.NoError(t, b.Cleanup(context.Background()))
	after := requester.requestCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, requester.requestCount(), "no update calls after cleanup")

	// Cleanup is idempotent.
	require.NoError(t, b.Cleanup(context.Background()))
}

func TestBatteryCleanupWithoutPeriodicTask(t *testing.T) {
	b := NewBattery(BatteryConfig{}, newFakeRequester(), property.New(), nil, nil)
	require.NoError(t, b.Cleanup(context.Background()))
	require.NoError(t, b.Cleanup(context.Background()))
}
