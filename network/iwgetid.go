package network

import (
	"context"
	"strings"
)

// IwgetidSsid reads the associated SSID with `iwgetid -r`, which exits
// non-zero when the adapter is not associated.
type IwgetidSsid struct {
	Runner Runner
}

func (s *IwgetidSsid) Ssid(ctx context.Context) (string, error) {
	runner := s.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	out, err := runner.Run(ctx, "iwgetid", "-r")
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(out)), nil
}
