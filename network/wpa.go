package network

import (
	"context"

	"github.com/go-errors/errors"
	"github.com/the-lightning-land/nmwatchd/network/wpa"
)

// WpaSsid reads the associated SSID from wpa_supplicant over D-Bus.
type WpaSsid struct {
	ifname string
	wpa    *wpa.Wpa
}

func NewWpaSsid(ifname string) *WpaSsid {
	return &WpaSsid{
		ifname: ifname,
		wpa:    wpa.New(),
	}
}

func (s *WpaSsid) Ssid(ctx context.Context) (string, error) {
	err := s.wpa.Start()
	if err != nil {
		return "", errors.Errorf("could not start wpa: %v", err)
	}

	iface, err := s.wpa.GetInterface(s.ifname)
	if err != nil {
		return "", errors.Errorf("could not find interface %v: %v", s.ifname, err)
	}

	state, err := iface.State()
	if err != nil {
		return "", err
	}

	if state != "completed" {
		return "", nil
	}

	bss, err := iface.CurrentBSS()
	if err != nil {
		return "", err
	}

	if bss == nil {
		return "", nil
	}

	props, err := bss.GetAll()
	if err != nil {
		return "", errors.Errorf("could not read bss %v: %v", bss, err)
	}

	return props.Ssid, nil
}

func (s *WpaSsid) Close() error {
	return s.wpa.Stop()
}
