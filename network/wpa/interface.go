package wpa

import (
	"github.com/go-errors/errors"
	"github.com/godbus/dbus/v5"
)

type Interface struct {
	wpa *Wpa
	obj dbus.BusObject
}

// State returns the wpa_supplicant interface state such as "completed",
// "scanning" or "disconnected".
func (i *Interface) State() (string, error) {
	v, err := i.obj.GetProperty(ifaceName + ".State")
	if err != nil {
		return "", errors.Errorf("could not get state: %v", err)
	}

	state, ok := v.Value().(string)
	if !ok {
		return "", errors.Errorf("could not convert state: %v", v)
	}

	return state, nil
}

// CurrentBSS returns the BSS the interface is associated with, or nil.
func (i *Interface) CurrentBSS() (*BSS, error) {
	v, err := i.obj.GetProperty(ifaceName + ".CurrentBSS")
	if err != nil {
		return nil, errors.Errorf("could not get current bss: %v", err)
	}

	objectPath, ok := v.Value().(dbus.ObjectPath)
	if !ok {
		return nil, errors.Errorf("could not convert current bss: %v", v)
	}

	// wpa_supplicant reports "/" while not associated
	if objectPath == "/" || !objectPath.IsValid() {
		return nil, nil
	}

	return &BSS{
		obj: i.wpa.object(objectPath),
	}, nil
}
