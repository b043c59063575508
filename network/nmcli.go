package network

import (
	"bufio"
	"bytes"
	"context"
	"strings"

	"github.com/go-errors/errors"
)

// check NmcliNetworks compliance to its interfaces during compile time
var _ Network = (*NmcliNetwork)(nil)
var _ ProfileChecker = (*NmcliNetwork)(nil)

type Config struct {
	Interface string
	Runner    Runner
	Logger    Logger
}

// NmcliNetwork drives NetworkManager through its command line client.
type NmcliNetwork struct {
	log    Logger
	ifname string
	runner Runner
}

func NewNmcliNetwork(config *Config) *NmcliNetwork {
	net := &NmcliNetwork{
		ifname: config.Interface,
		runner: config.Runner,
	}

	if net.runner == nil {
		net.runner = ExecRunner{}
	}

	if config.Logger != nil {
		net.log = config.Logger
	} else {
		net.log = noopLogger{}
	}

	return net
}

func (n *NmcliNetwork) Connect(ctx context.Context, connection Connection) error {
	args := []string{"device", "wifi", "connect"}

	switch conn := connection.(type) {
	case *WpaPskConnection:
		n.log.Infof("Connecting via nmcli to secure network %v", conn)
		args = append(args, conn.Ssid, "password", conn.Psk)
	case *OpenConnection:
		n.log.Infof("Connecting via nmcli to open network %v", conn)
		args = append(args, conn.Ssid)
	default:
		return errors.Errorf("unsupported connection type %T", connection)
	}

	if n.ifname != "" {
		args = append(args, "ifname", n.ifname)
	}

	_, err := n.runner.Run(ctx, "nmcli", args...)
	if err != nil {
		return errors.Errorf("could not connect to %v: %v", connection.ConnectionName(), err)
	}

	return nil
}

func (n *NmcliNetwork) Disconnect(ctx context.Context, name string) error {
	n.log.Infof("Disconnecting via nmcli from %v", name)

	_, err := n.runner.Run(ctx, "nmcli", "connection", "down", "id", name)
	if err != nil {
		return errors.Errorf("could not disconnect from %v: %v", name, err)
	}

	return nil
}

func (n *NmcliNetwork) Forget(ctx context.Context, name string) error {
	n.log.Infof("Forgetting network %v via nmcli", name)

	_, err := n.runner.Run(ctx, "nmcli", "connection", "delete", "id", name)
	if err != nil {
		return errors.Errorf("could not forget %v: %v", name, err)
	}

	return nil
}

func (n *NmcliNetwork) HasWifiProfile(ctx context.Context) (bool, error) {
	out, err := n.runner.Run(ctx, "nmcli", "-t", "-f", "TYPE", "connection", "show")
	if err != nil {
		return false, errors.Errorf("could not list connections: %v", err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "802-11-wireless", "wifi":
			return true, nil
		}
	}

	return false, nil
}
