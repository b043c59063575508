package network

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/go-errors/errors"
)

// Runner executes a system utility and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return out, errors.Errorf("%v failed: %v: %v", name, err, msg)
		}

		return out, errors.Errorf("%v failed: %v", name, err)
	}

	return out, nil
}
