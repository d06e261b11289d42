package driver_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfreebuds/freebuds-go/pkg/driver"
	"github.com/openfreebuds/freebuds-go/pkg/eventbus"
	"github.com/openfreebuds/freebuds-go/pkg/handler"
	"github.com/openfreebuds/freebuds-go/pkg/spp"
	"github.com/openfreebuds/freebuds-go/pkg/transport"
)

// fakeDevice emulates the earbuds end of the link: it answers read and
// set requests and can push unsolicited notify packets.
type fakeDevice struct {
	conn net.Conn
	done chan struct{}

	mu        sync.Mutex
	battery   map[uint8][]byte
	noiseMode byte
}

func startFakeDevice(conn net.Conn) *fakeDevice {
	d := &fakeDevice{
		conn: conn,
		done: make(chan struct{}),
		battery: map[uint8][]byte{
			handler.ParamBatteryGlobal:   {55},
			handler.ParamBatteryLevels:   {40, 45, 99},
			handler.ParamBatteryCharging: {0x01},
		},
		noiseMode: byte(handler.NoiseOff),
	}
	go d.run()
	return d
}

func (d *fakeDevice) run() {
	defer close(d.done)
	deframer := transport.NewDeframer(d.conn)
	for {
		frame, err := deframer.ReadPDU()
		if err != nil {
			return
		}
		req, err := spp.Decode(frame)
		if err != nil {
			continue
		}

		var resp *spp.Packet
		switch req.Command {
		case spp.CmdBatteryRead:
			d.mu.Lock()
			params := make(map[uint8][]byte, len(d.battery))
			for id, data := range d.battery {
				params[id] = append([]byte(nil), data...)
			}
			d.mu.Unlock()
			resp = spp.NewPacket(spp.CmdBatteryRead, params)
		case spp.CmdNoiseRead:
			d.mu.Lock()
			mode := d.noiseMode
			d.mu.Unlock()
			resp = spp.NewPacket(spp.CmdNoiseRead, map[uint8][]byte{
				handler.ParamNoiseMode: {mode},
			})
		case spp.CmdNoiseSet:
			if data, ok := req.Param(handler.ParamNoiseMode); ok && len(data) == 1 {
				d.mu.Lock()
				d.noiseMode = data[0]
				d.mu.Unlock()
			}
			resp = spp.NewPacket(spp.CmdNoiseSet, nil)
		default:
			continue
		}
		d.send(resp)
	}
}

func (d *fakeDevice) send(p *spp.Packet) {
	data, err := spp.Encode(p)
	if err != nil {
		panic(err)
	}
	_, _ = d.conn.Write(data)
}

func (d *fakeDevice) setBatteryGlobal(level byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.battery[handler.ParamBatteryGlobal] = []byte{level}
}

func newTestDriver(t *testing.T, config driver.Config) (*driver.Driver, *fakeDevice) {
	t.Helper()

	hostConn, devConn := net.Pipe()
	dev := startFakeDevice(devConn)
	tr := transport.NewSocketTransport(hostConn, "AA:BB:CC:DD:EE:FF", nil)

	d, err := driver.New(tr, config)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = d.Stop(context.Background())
		_ = devConn.Close()
		<-dev.done
	})
	return d, dev
}

func TestStartPopulatesStore(t *testing.T) {
	d, _ := newTestDriver(t, driver.Config{DualEarbud: true})

	require.NoError(t, d.Start(context.Background()))
	assert.Equal(t, driver.StateRunning, d.State())
	assert.True(t, d.Started())

	// Bootstrap reads finished before Start returned.
	assert.Equal(t, map[string]any{
		"global":      55,
		"left":        40,
		"right":       45,
		"case":        99,
		"is_charging": true,
	}, d.Namespace(handler.NamespaceBattery))
	assert.Equal(t, "off", d.GetProperty(handler.NamespaceNoise, "mode_name", nil))
}

func TestStartTwiceFails(t *testing.T) {
	d, _ := newTestDriver(t, driver.Config{})

	require.NoError(t, d.Start(context.Background()))
	assert.ErrorIs(t, d.Start(context.Background()), driver.ErrAlreadyStarted)
}

func TestUnsolicitedNotifyReachesStoreAndBus(t *testing.T) {
	d, dev := newTestDriver(t, driver.Config{DualEarbud: true})
	require.NoError(t, d.Start(context.Background()))

	member := d.Subscribe()
	defer d.Unsubscribe(member)

	dev.send(spp.NewPacket(spp.CmdBatteryNotify, map[uint8][]byte{
		handler.ParamBatteryGlobal: {42},
	}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	event, err := d.WaitForEvent(ctx, member)
	require.NoError(t, err)
	assert.Equal(t, eventbus.KindPropertyChanged, event.Kind)
	assert.Equal(t, []any{handler.NamespaceBattery}, event.Args)

	assert.Equal(t, 42, d.GetProperty(handler.NamespaceBattery, "global", nil))
}

func TestSetNoiseModeRoundTrip(t *testing.T) {
	d, dev := newTestDriver(t, driver.Config{})
	require.NoError(t, d.Start(context.Background()))

	require.NoError(t, d.NoiseControl().SetMode(context.Background(), handler.NoiseAwareness))

	dev.mu.Lock()
	mode := dev.noiseMode
	dev.mu.Unlock()
	assert.Equal(t, byte(handler.NoiseAwareness), mode)
	assert.Equal(t, "awareness", d.GetProperty(handler.NamespaceNoise, "mode_name", nil))
}

func TestBatteryRequestUpdate(t *testing.T) {
	d, dev := newTestDriver(t, driver.Config{})
	require.NoError(t, d.Start(context.Background()))

	dev.setBatteryGlobal(77)
	require.NoError(t, d.Battery().RequestUpdate(context.Background()))
	assert.Equal(t, 77, d.GetProperty(handler.NamespaceBattery, "global", nil))
}

func TestStopIsIdempotentAndFinal(t *testing.T) {
	d, _ := newTestDriver(t, driver.Config{})
	require.NoError(t, d.Start(context.Background()))

	require.NoError(t, d.Stop(context.Background()))
	assert.Equal(t, driver.StateStopped, d.State())
	assert.False(t, d.Started())

	require.NoError(t, d.Stop(context.Background()))
	assert.Equal(t, driver.StateStopped, d.State())
}

func TestStopWithoutStart(t *testing.T) {
	d, _ := newTestDriver(t, driver.Config{})
	require.NoError(t, d.Stop(context.Background()))
	assert.Equal(t, driver.StateStopped, d.State())
}

func TestPeerDisconnectStopsDriver(t *testing.T) {
	d, dev := newTestDriver(t, driver.Config{})
	require.NoError(t, d.Start(context.Background()))

	member := d.Subscribe()
	defer d.Unsubscribe(member)

	require.NoError(t, dev.conn.Close())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	event, err := d.WaitForEvent(ctx, member)
	require.NoError(t, err)
	assert.Equal(t, eventbus.KindStateChanged, event.Kind)
	assert.Equal(t, []any{driver.StateStopped.String()}, event.Args)

	require.Eventually(t, func() bool { return d.State() == driver.StateStopped },
		time.Second, time.Millisecond)
	assert.False(t, d.Started())

	// Requests after disconnect fail instead of hanging.
	err = d.Battery().RequestUpdate(context.Background())
	assert.Error(t, err)
}

func TestPeriodicBatteryPolling(t *testing.T) {
	d, dev := newTestDriver(t, driver.Config{
		PeriodicBatteryUpdate: true,
		BatteryUpdateInterval: 10 * time.Millisecond,
	})
	require.NoError(t, d.Start(context.Background()))

	dev.setBatteryGlobal(33)
	require.Eventually(t, func() bool {
		return d.GetProperty(handler.NamespaceBattery, "global", nil) == 33
	}, time.Second, time.Millisecond)

	require.NoError(t, d.Stop(context.Background()))
}
