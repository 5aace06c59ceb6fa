package build

import (
	"context"
	"strings"

	"github.com/cochaviz/pbuild/internal/pbuilderrc"
	"github.com/cochaviz/pbuild/internal/process"
)

// DebianArchiveKeyring is the keyring debootstrap needs to verify a Debian
// mirror from a host whose default keyring is not Debian's.
const DebianArchiveKeyring = "/usr/share/keyrings/debian-archive-keyring.gpg"

// hostIsUbuntu asks lsb_release for the host distributor. Any failure counts
// as "not Ubuntu".
func hostIsUbuntu(ctx context.Context, launcher process.Launcher) bool {
	status, out, err := launcher.Output(ctx, process.Command{Name: "lsb_release", Args: []string{"--id"}})
	if err != nil || status != 0 {
		return false
	}
	return strings.Contains(string(out), "Ubuntu")
}

// withHostKeyring adds the Debian archive keyring to the debootstrap options
// unless the configuration already names a keyring.
func withHostKeyring(configuration pbuilderrc.Configuration) pbuilderrc.Configuration {
	for _, opt := range configuration.DebootstrapOpts {
		if opt == "--keyring" || strings.HasPrefix(opt, "--keyring=") {
			return configuration
		}
	}
	opts := make([]string, 0, len(configuration.DebootstrapOpts)+2)
	opts = append(opts, configuration.DebootstrapOpts...)
	configuration.DebootstrapOpts = append(opts, "--keyring", DebianArchiveKeyring)
	return configuration
}
