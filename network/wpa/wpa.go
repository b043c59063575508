package wpa

import (
	"sync"

	"github.com/go-errors/errors"
	"github.com/godbus/dbus/v5"
)

const (
	busName   = "fi.w1.wpa_supplicant1"
	busPath   = "/fi/w1/wpa_supplicant1"
	busIface  = "fi.w1.wpa_supplicant1"
	ifaceName = "fi.w1.wpa_supplicant1.Interface"
	bssName   = "fi.w1.wpa_supplicant1.BSS"
)

// Wpa is a connection to wpa_supplicant on the system bus.
type Wpa struct {
	mu   sync.Mutex
	conn *dbus.Conn
}

func New() *Wpa {
	return &Wpa{}
}

func (w *Wpa) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn != nil {
		return nil
	}

	conn, err := dbus.SystemBus()
	if err != nil {
		return errors.Errorf("could not connect to system bus: %v", err)
	}

	w.conn = conn

	return nil
}

func (w *Wpa) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return nil
	}

	// the system bus connection is shared, only forget about it
	w.conn = nil

	return nil
}

func (w *Wpa) GetInterface(ifname string) (*Interface, error) {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()

	if conn == nil {
		return nil, errors.New("wpa is not started")
	}

	var objPath dbus.ObjectPath

	call := conn.Object(busName, busPath).Call(busIface+".GetInterface", 0, ifname)
	if call.Err != nil {
		return nil, errors.Errorf("could not get interface %v: %v", ifname, call.Err)
	}

	err := call.Store(&objPath)
	if err != nil {
		return nil, errors.Errorf("could not store value: %v", err)
	}

	return &Interface{
		wpa: w,
		obj: conn.Object(busName, objPath),
	}, nil
}

func (w *Wpa) object(path dbus.ObjectPath) dbus.BusObject {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.conn.Object(busName, path)
}
