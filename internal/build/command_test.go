package build

import (
	"reflect"
	"testing"
)

func TestCommandLineKeepsOrderAndNamedValues(t *testing.T) {
	t.Parallel()

	line := NewCommandLine("cowbuilder", true).
		Flag("--create").
		Option("--basepath", "/b").
		Repeat("--debootstrapopts", "--arch", "arm64").
		Positional("extra")

	want := []string{"sudo", "cowbuilder", "--create", "--basepath", "/b", "--debootstrapopts", "--arch", "--debootstrapopts", "arm64", "extra"}
	if got := line.Argv(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Argv() = %q, want %q", got, want)
	}
	if got := line.Values("--debootstrapopts"); !reflect.DeepEqual(got, []string{"--arch", "arm64"}) {
		t.Fatalf("Values() = %q", got)
	}
	if got := line.Values("--distribution"); len(got) != 0 {
		t.Fatalf("Values(--distribution) = %q", got)
	}

	cmd := line.Command(map[string]string{"DIST": "sid"})
	if cmd.Name != "sudo" || cmd.Args[0] != "cowbuilder" || cmd.Env["DIST"] != "sid" {
		t.Fatalf("Command() = %+v", cmd)
	}
}

func TestCommandLineWithoutSudo(t *testing.T) {
	t.Parallel()

	cmd := NewCommandLine("pbuilder", false).Positional("update").Command(nil)
	if cmd.Name != "pbuilder" || !reflect.DeepEqual(cmd.Args, []string{"update"}) {
		t.Fatalf("Command() = %+v", cmd)
	}
}
