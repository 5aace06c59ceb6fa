package arch

import (
	"context"
	"errors"
	"testing"

	"github.com/cochaviz/pbuild/internal/process/processtest"
)

func TestNormalizeAliases(t *testing.T) {
	t.Parallel()

	cases := map[string]Architecture{
		"amd64":       AMD64,
		" X86_64 ":    AMD64,
		"aarch64":     ARM64,
		"armv7l":      ARMHF,
		"ppc64le":     PPC64EL,
		"loongarch64": LOONG64,
		"all":         All,
		"sparc":       "",
	}
	for input, want := range cases {
		if got := Normalize(input); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestParseRejectsUnknown(t *testing.T) {
	t.Parallel()

	if _, err := Parse("vax"); err == nil {
		t.Fatal("Parse() error = nil, want error")
	}
	if got, err := Parse("arm64"); err != nil || got != ARM64 {
		t.Fatalf("Parse(arm64) = %q, %v", got, err)
	}
}

func TestEffective(t *testing.T) {
	t.Parallel()

	for _, host := range []Architecture{AMD64, ARM64, "custom"} {
		if got := Effective(All, host); got != host {
			t.Errorf("Effective(all, %q) = %q, want host", host, got)
		}
		for _, requested := range []Architecture{AMD64, I386, ARMHF} {
			if got := Effective(requested, host); got != requested {
				t.Errorf("Effective(%q, %q) = %q, want requested", requested, host, got)
			}
		}
	}
}

func TestBootstrapTool(t *testing.T) {
	t.Parallel()

	for _, host := range Supported() {
		if got := BootstrapTool(host, host); got != Debootstrap {
			t.Errorf("BootstrapTool(%q, %q) = %q, want %q", host, host, got, Debootstrap)
		}
		for _, requested := range Supported() {
			if requested == host {
				continue
			}
			if got := BootstrapTool(host, requested); got != QemuDebootstrap {
				t.Errorf("BootstrapTool(%q, %q) = %q, want %q", host, requested, got, QemuDebootstrap)
			}
		}
	}
}

func TestResolveHostUsesFirstLine(t *testing.T) {
	t.Parallel()

	launcher := &processtest.Launcher{}
	launcher.Script("dpkg", processtest.Result{Stdout: "  arm64 \nignored\n"})

	got, err := ResolveHost(context.Background(), launcher)
	if err != nil {
		t.Fatalf("ResolveHost() error = %v", err)
	}
	if got != ARM64 {
		t.Fatalf("ResolveHost() = %q, want arm64", got)
	}

	cmds := launcher.Commands()
	if len(cmds) != 1 || cmds[0].String() != "dpkg --print-architecture" {
		t.Fatalf("unexpected commands: %v", cmds)
	}
}

func TestResolveHostUnavailable(t *testing.T) {
	t.Parallel()

	cases := map[string]processtest.Result{
		"nonzero exit": {Status: 2, Stdout: "amd64\n"},
		"empty output": {},
		"start error":  {Err: errors.New("exec: \"dpkg\": executable file not found")},
	}

	for name, result := range cases {
		name, result := name, result
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			launcher := &processtest.Launcher{}
			launcher.Script("dpkg", result)

			got, err := ResolveHost(context.Background(), launcher)
			if !errors.Is(err, ErrUnavailable) {
				t.Fatalf("ResolveHost() error = %v, want ErrUnavailable", err)
			}
			if got != "" {
				t.Fatalf("ResolveHost() = %q, want empty", got)
			}
		})
	}
}
