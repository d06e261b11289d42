package transport

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"

	"github.com/openfreebuds/freebuds-go/pkg/log"
)

// BlueZ constants.
const (
	// SPPUUID is the Serial Port Profile UUID used for RFCOMM connections.
	SPPUUID = "00001101-0000-1000-8000-00805f9b34fb"

	busName          = "org.bluez"
	adapterPath      = "/org/bluez/hci0"
	deviceIface      = "org.bluez.Device1"
	profileIface     = "org.bluez.Profile1"
	profileMgrIface  = "org.bluez.ProfileManager1"
	profileMgrPath   = dbus.ObjectPath("/org/bluez")
	profileBasePath  = "/org/openfreebuds/profile"
	propertiesGetter = "org.freedesktop.DBus.Properties.Get"
)

// deviceObjectPath converts a MAC address like "AA:BB:CC:DD:EE:FF" to
// "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF".
func deviceObjectPath(addr string) dbus.ObjectPath {
	escaped := strings.ReplaceAll(strings.ToUpper(addr), ":", "_")
	return dbus.ObjectPath(adapterPath + "/dev_" + escaped)
}

// profileExport receives the RFCOMM file descriptor from BlueZ once the
// SPP channel to the device is up. Exported on the session's private
// object path as org.bluez.Profile1.
type profileExport struct {
	fds chan int
}

func (p *profileExport) NewConnection(device dbus.ObjectPath, fd dbus.UnixFD, props map[string]dbus.Variant) *dbus.Error {
	select {
	case p.fds <- int(fd):
	default:
		// A second connection on a single-use profile; refuse it.
		f := os.NewFile(uintptr(fd), "rfcomm-extra")
		_ = f.Close()
	}
	return nil
}

func (p *profileExport) RequestDisconnection(device dbus.ObjectPath) *dbus.Error {
	return nil
}

func (p *profileExport) Release() *dbus.Error {
	return nil
}

// Dial connects to the device's SPP channel through BlueZ and returns a
// live SocketTransport over the resulting RFCOMM stream. logger
// optionally captures protocol events from the first frame on; pass nil
// to disable.
//
// The device must already be paired; pairing agents are out of scope.
// Dial registers a client-role Profile1 object, asks the device to
// connect the SPP profile, and waits for BlueZ to hand over the file
// descriptor via NewConnection. The caller owns the returned transport.
func Dial(ctx context.Context, addr string, logger log.Logger) (*SocketTransport, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}

	devicePath := deviceObjectPath(addr)
	device := conn.Object(busName, devicePath)

	// Fail early with a readable error when the device is unknown to
	// BlueZ, rather than a generic ConnectProfile failure.
	var paired dbus.Variant
	if err := device.Call(propertiesGetter, 0, deviceIface, "Paired").Store(&paired); err != nil {
		return nil, fmt.Errorf("device %s not known to BlueZ: %w", addr, err)
	}
	if p, ok := paired.Value().(bool); ok && !p {
		return nil, fmt.Errorf("device %s is not paired", addr)
	}

	profile := &profileExport{fds: make(chan int, 1)}
	profilePath := dbus.ObjectPath(profileBasePath + "/" + strings.ReplaceAll(uuid.NewString(), "-", ""))
	if err := conn.Export(profile, profilePath, profileIface); err != nil {
		return nil, fmt.Errorf("export profile object: %w", err)
	}

	manager := conn.Object(busName, profileMgrPath)
	opts := map[string]dbus.Variant{
		"Role":                 dbus.MakeVariant("client"),
		"AutoConnect":          dbus.MakeVariant(false),
		"RequireAuthorization": dbus.MakeVariant(false),
	}
	if err := manager.Call(profileMgrIface+".RegisterProfile", 0, profilePath, SPPUUID, opts).Err; err != nil {
		return nil, fmt.Errorf("register SPP profile: %w", err)
	}
	unregister := func() {
		_ = manager.Call(profileMgrIface+".UnregisterProfile", 0, profilePath).Err
	}

	call := device.CallWithContext(ctx, deviceIface+".ConnectProfile", 0, SPPUUID)
	if call.Err != nil {
		unregister()
		return nil, fmt.Errorf("connect SPP profile on %s: %w", addr, call.Err)
	}

	select {
	case fd := <-profile.fds:
		unregister()
		file := os.NewFile(uintptr(fd), "rfcomm")
		return NewSocketTransport(file, addr, logger), nil
	case <-ctx.Done():
		unregister()
		return nil, fmt.Errorf("waiting for SPP connection to %s: %w", addr, ctx.Err())
	}
}
