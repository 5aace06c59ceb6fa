// Package pbuilderrc renders the shell-sourced configuration file read by
// pbuilder and cowbuilder. See pbuilderrc(5) for the meaning of each key.
package pbuilderrc

import (
	"fmt"
	"strings"
)

// Resolver selects the pbuilder-satisfydepends backend.
type Resolver string

// Supported resolvers. ResolverDefault leaves the choice to pbuilder.
const (
	ResolverDefault      Resolver = ""
	ResolverApt          Resolver = "apt"
	ResolverExperimental Resolver = "experimental"
	ResolverAptitude     Resolver = "aptitude"
	ResolverGdebi        Resolver = "gdebi"
	ResolverClassic      Resolver = "classic"
)

const satisfyDependsPrefix = "/usr/lib/pbuilder/pbuilder-satisfydepends-"

// Command returns the satisfydepends helper path, or "" for ResolverDefault.
func (r Resolver) Command() string {
	if r == ResolverDefault {
		return ""
	}
	return satisfyDependsPrefix + string(r)
}

// ParseResolver accepts a resolver name ("" and "default" select ResolverDefault).
func ParseResolver(value string) (Resolver, error) {
	switch r := Resolver(strings.ToLower(strings.TrimSpace(value))); r {
	case ResolverApt, ResolverExperimental, ResolverAptitude, ResolverGdebi, ResolverClassic:
		return r, nil
	case ResolverDefault, "default":
		return ResolverDefault, nil
	default:
		return ResolverDefault, fmt.Errorf("unknown satisfydepends resolver %q", value)
	}
}

// UnmarshalText lets job files name the resolver directly.
func (r *Resolver) UnmarshalText(text []byte) error {
	parsed, err := ParseResolver(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

const eatMyDataPackage = "eatmydata"

// Configuration is the set of build tool options written to the pbuilderrc.
// The zero value renders a configuration that only disables networking.
type Configuration struct {
	UseNetwork             bool     `yaml:"network"`
	Debootstrap            string   `yaml:"debootstrap"`
	MirrorSite             string   `yaml:"mirror_site"`
	DebootstrapOpts        []string `yaml:"debootstrap_opts"`
	EatMyData              bool     `yaml:"eatmydata"`
	ExtraPackages          string   `yaml:"extra_packages"`
	AdditionalBuildResults []string `yaml:"additional_build_results"`
	Components             string   `yaml:"components"`
	SatisfyDepends         Resolver `yaml:"satisfydepends"`
	OtherMirror            string   `yaml:"other_mirror"`
	BuildArch              string   `yaml:"build_arch"`
	BindMounts             string   `yaml:"bind_mounts"`
}

// Render returns the configuration file contents. It never modifies c, so
// repeated calls yield identical text.
func (c Configuration) Render() string {
	var b strings.Builder

	writeLine(&b, "USENETWORK", yesNo(c.UseNetwork))
	writeLine(&b, "DEBOOTSTRAP", c.Debootstrap)
	writeLine(&b, "MIRRORSITE", c.MirrorSite)
	writeLine(&b, "DEBOOTSTRAPOPTS", shellArray(c.DebootstrapOpts, '\''))

	extraPackages := c.ExtraPackages
	if c.EatMyData {
		extraPackages = appendPackage(extraPackages, eatMyDataPackage)
		b.WriteString("EATMYDATA=yes\n")
		b.WriteString("export LD_PRELOAD=libeatmydata.so\n")
	}

	writeLine(&b, "EXTRAPACKAGES", extraPackages)
	writeLine(&b, "ADDITIONAL_BUILDRESULTS", shellArray(c.AdditionalBuildResults, '"'))
	writeLine(&b, "COMPONENTS", quoted(c.Components))
	writeLine(&b, "PBUILDERSATISFYDEPENDSCMD", c.SatisfyDepends.Command())
	writeLine(&b, "OTHERMIRROR", quoted(c.OtherMirror))
	writeLine(&b, "ARCHITECTURE", c.BuildArch)
	writeLine(&b, "BINDMOUNTS", quoted(c.BindMounts))

	return b.String()
}

// ExtraPackageList returns the packages installed into the chroot, including
// eatmydata when enabled.
func (c Configuration) ExtraPackageList() []string {
	pkgs := c.ExtraPackages
	if c.EatMyData {
		pkgs = appendPackage(pkgs, eatMyDataPackage)
	}
	return strings.Fields(pkgs)
}

func writeLine(b *strings.Builder, key, value string) {
	if value == "" {
		return
	}
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(value)
	b.WriteByte('\n')
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func quoted(value string) string {
	if value == "" {
		return ""
	}
	return `"` + value + `"`
}

// shellArray renders a bash array literal, e.g. ('a' 'b').
func shellArray(items []string, quote byte) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte('(')
	for i, item := range items {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte(quote)
		b.WriteString(item)
		b.WriteByte(quote)
	}
	b.WriteByte(')')
	return b.String()
}

func appendPackage(list, pkg string) string {
	for _, existing := range strings.Fields(list) {
		if existing == pkg {
			return list
		}
	}
	if strings.TrimSpace(list) == "" {
		return pkg
	}
	return list + " " + pkg
}
