package network

import (
	"context"
	"strings"

	"github.com/go-errors/errors"
)

var (
	ErrUnsupportedSecurity = errors.New("unsupported security type")
	ErrMissingPassword     = errors.New("security type requires a password")
)

type Connection interface {
	ConnectionName() string
}

type WpaPskConnection struct {
	Ssid string
	Psk  string
}

func (c *WpaPskConnection) ConnectionName() string {
	return c.Ssid
}

func (c *WpaPskConnection) String() string {
	return c.Ssid + " (" + strings.Repeat("*", len(c.Psk)) + ")"
}

type OpenConnection struct {
	Ssid string
}

func (c *OpenConnection) ConnectionName() string {
	return c.Ssid
}

func (c *OpenConnection) String() string {
	return c.Ssid + " (open)"
}

// NewConnection maps the fields of a connect request onto a Connection.
// A missing security type is inferred from the presence of a password.
func NewConnection(name string, password string, securityType string) (Connection, error) {
	if name == "" {
		return nil, errors.New("connection name is required")
	}

	switch strings.ToLower(securityType) {
	case "":
		if password == "" {
			return &OpenConnection{Ssid: name}, nil
		}

		return &WpaPskConnection{Ssid: name, Psk: password}, nil
	case "none", "open":
		return &OpenConnection{Ssid: name}, nil
	case "wpa", "wpa-psk", "wpa2", "wpa2-psk", "wpa3", "sae", "psk":
		if password == "" {
			return nil, ErrMissingPassword
		}

		return &WpaPskConnection{Ssid: name, Psk: password}, nil
	default:
		return nil, errors.Errorf("%w: %v", ErrUnsupportedSecurity, securityType)
	}
}

// Network is the OS level control surface of the wireless adapter.
type Network interface {
	Connect(ctx context.Context, connection Connection) error
	Disconnect(ctx context.Context, name string) error
	Forget(ctx context.Context, name string) error
}

// ProfileChecker reports whether a wireless profile was configured before,
// meaning the adapter may still be reconnecting on its own.
type ProfileChecker interface {
	HasWifiProfile(ctx context.Context) (bool, error)
}

type anyProfile []ProfileChecker

// AnyProfile asks every checker in turn and succeeds on the first positive
// answer. Errors are only returned when no checker could answer at all.
func AnyProfile(checkers ...ProfileChecker) ProfileChecker {
	return anyProfile(checkers)
}

func (a anyProfile) HasWifiProfile(ctx context.Context) (bool, error) {
	var lastErr error
	answered := false

	for _, checker := range a {
		ok, err := checker.HasWifiProfile(ctx)
		if err != nil {
			lastErr = err
			continue
		}

		answered = true

		if ok {
			return true, nil
		}
	}

	if !answered && lastErr != nil {
		return false, lastErr
	}

	return false, nil
}
