package cmd

import (
	"fmt"
	goruntime "runtime"
	"runtime/debug"

	"github.com/dotcommander/deepresearch/internal/storage"
)

// BuildInfo is set through linker flags. Missing values are filled from the
// module and VCS data the Go toolchain embeds.
type BuildInfo struct {
	Version   string
	CommitSHA string
}

func versionTemplate(b BuildInfo) string {
	v := "{{.Name}} {{.Version}}"
	if len(b.CommitSHA) >= storage.SHA1Short {
		v += " (" + storage.Short(b.CommitSHA) + ")"
	}
	return v + fmt.Sprintf(" %s %s/%s\n", goruntime.Version(), goruntime.GOOS, goruntime.GOARCH)
}

func normalizeBuildInfo(b BuildInfo) BuildInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		if b.Version == "" {
			b.Version = "unknown"
		}
		return b
	}
	return fillBuildInfo(b, info)
}

// fillBuildInfo prefers linker values, then the module version, then a
// dev-<rev>[-dirty] version built from VCS settings.
func fillBuildInfo(b BuildInfo, info *debug.BuildInfo) BuildInfo {
	vcs := map[string]string{}
	for _, s := range info.Settings {
		vcs[s.Key] = s.Value
	}
	rev := vcs["vcs.revision"]
	if b.CommitSHA == "" {
		b.CommitSHA = rev
	}
	if b.Version != "" {
		return b
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		b.Version = v
		return b
	}
	b.Version = "dev"
	if len(rev) >= storage.SHA1Short {
		b.Version += "-" + storage.Short(rev)
	}
	if vcs["vcs.modified"] == "true" {
		b.Version += "-dirty"
	}
	return b
}
