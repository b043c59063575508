package device

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-errors/errors"
	"github.com/the-lightning-land/nmwatchd/bus"
	"github.com/the-lightning-land/nmwatchd/setup"
)

const (
	SignalGuiStatusRequest  = "gui.status.request"
	SignalGuiStatusResponse = "gui.status.request.response"
	SignalMouthReset        = "enclosure.mouth.reset"

	DefaultInputDevices = "/proc/bus/input/devices"
	defaultGuiTimeout   = 3 * time.Second
)

type DisplayMode string

const (
	DisplayAuto     DisplayMode = "auto"
	DisplayTouch    DisplayMode = "touch"
	DisplayHeadless DisplayMode = "headless"
)

// Requester sends a message and waits for the matching reply.
type Requester interface {
	Emit(msg *bus.Message) error
	WaitForResponse(ctx context.Context, msg *bus.Message, replyType string) (*bus.Message, error)
}

type Config struct {
	Mode DisplayMode
	Bus  Requester
	// InputDevices is the kernel's input device listing.
	InputDevices string
	GuiTimeout   time.Duration
	Logger       Logger
}

// Device answers questions about the display and input hardware and
// drives the enclosure.
type Device struct {
	mode         DisplayMode
	bus          Requester
	inputDevices string
	guiTimeout   time.Duration
	log          Logger
}

func New(config *Config) *Device {
	device := &Device{
		mode:         config.Mode,
		bus:          config.Bus,
		inputDevices: config.InputDevices,
		guiTimeout:   config.GuiTimeout,
	}

	if device.mode == "" {
		device.mode = DisplayAuto
	}

	if device.inputDevices == "" {
		device.inputDevices = DefaultInputDevices
	}

	if device.guiTimeout <= 0 {
		device.guiTimeout = defaultGuiTimeout
	}

	if config.Logger != nil {
		device.log = config.Logger
	} else {
		device.log = noopLogger{}
	}

	return device
}

// Capabilities decides whether the setup can be offered on a touch display:
// a GUI has to be attached to the bus and a touch or pointer device present.
func (d *Device) Capabilities(ctx context.Context) (setup.Capabilities, error) {
	switch d.mode {
	case DisplayTouch:
		return setup.Capabilities{HasTouchDisplay: true}, nil
	case DisplayHeadless:
		return setup.Capabilities{HasTouchDisplay: false}, nil
	case DisplayAuto:
	default:
		return setup.Capabilities{}, errors.Errorf("unknown display mode %q", d.mode)
	}

	if !d.guiConnected(ctx) {
		return setup.Capabilities{HasTouchDisplay: false}, nil
	}

	touch, err := d.canUseTouchOrMouse()
	if err != nil {
		return setup.Capabilities{}, err
	}

	return setup.Capabilities{HasTouchDisplay: touch}, nil
}

func (d *Device) guiConnected(ctx context.Context) bool {
	if d.bus == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, d.guiTimeout)
	defer cancel()

	reply, err := d.bus.WaitForResponse(ctx, bus.NewMessage(SignalGuiStatusRequest, nil), SignalGuiStatusResponse)
	if err != nil {
		d.log.Debugf("No GUI status: %v", err)
		return false
	}

	return reply.Bool("connected")
}

func (d *Device) canUseTouchOrMouse() (bool, error) {
	f, err := os.Open(d.inputDevices)
	if err != nil {
		return false, errors.Errorf("could not read input devices: %v", err)
	}

	defer f.Close()

	return hasTouchOrPointer(f)
}

// hasTouchOrPointer scans an input device listing for a touchscreen or a
// device bound to a mouse handler.
func hasTouchOrPointer(r io.Reader) (bool, error) {
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case strings.HasPrefix(line, "N: Name="):
			if strings.Contains(strings.ToLower(line), "touch") {
				return true, nil
			}
		case strings.HasPrefix(line, "H: Handlers="):
			for _, handler := range strings.Fields(strings.TrimPrefix(line, "H: Handlers=")) {
				if strings.HasPrefix(handler, "mouse") {
					return true, nil
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return false, errors.Errorf("could not scan input devices: %v", err)
	}

	return false, nil
}

// ResetDisplay returns the enclosure's display to its idle state.
func (d *Device) ResetDisplay() error {
	if d.bus == nil {
		return nil
	}

	return d.bus.Emit(bus.NewMessage(SignalMouthReset, nil))
}
