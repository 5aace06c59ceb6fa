package arch

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cochaviz/pbuild/internal/process"
)

// ErrUnavailable is returned when the host architecture cannot be probed.
var ErrUnavailable = errors.New("host architecture unavailable")

// ResolveHost asks dpkg for the native package architecture of the host.
func ResolveHost(ctx context.Context, launcher process.Launcher) (Architecture, error) {
	cmd := process.Command{Name: "dpkg", Args: []string{"--print-architecture"}}

	status, out, err := launcher.Output(ctx, cmd)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if status != 0 {
		return "", fmt.Errorf("%w: %s exited with status %d", ErrUnavailable, cmd, status)
	}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	if !scanner.Scan() {
		return "", fmt.Errorf("%w: %s produced no output", ErrUnavailable, cmd)
	}
	line := strings.TrimSpace(scanner.Text())
	if line == "" {
		return "", fmt.Errorf("%w: %s produced no output", ErrUnavailable, cmd)
	}
	return Architecture(line), nil
}
