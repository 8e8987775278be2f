package version

import (
	"runtime/debug"
	"strings"
)

// Set at build time using -ldflags.
var (
	Version = "dev"
	Commit  = ""
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	Dirty     bool   `json:"dirty,omitempty"`
	GoVersion string `json:"go_version"`
	// Deps maps module path to version for the modules selected by Get.
	Deps map[string]string `json:"deps,omitempty"`
}

// Get returns the build info of the running binary. Dependencies whose
// module path starts with one of prefixes are listed in Deps.
func Get(prefixes ...string) *Info {
	info := &Info{Version: Version, Commit: Commit}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	return fromBuildInfo(info, bi, prefixes)
}

func fromBuildInfo(info *Info, bi *debug.BuildInfo, prefixes []string) *Info {
	info.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
			}
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}
	if len(info.Commit) > 7 {
		info.Commit = info.Commit[:7]
	}

	for _, dep := range bi.Deps {
		for _, p := range prefixes {
			if strings.HasPrefix(dep.Path, p) {
				if info.Deps == nil {
					info.Deps = make(map[string]string)
				}
				info.Deps[dep.Path] = dep.Version
				break
			}
		}
	}
	return info
}

// String returns version[-commit][-dirty].
func (i *Info) String() string {
	parts := []string{i.Version}
	if i.Commit != "" {
		parts = append(parts, i.Commit)
	}
	if i.Dirty {
		parts = append(parts, "dirty")
	}
	return strings.Join(parts, "-")
}

// IsRelease reports whether the binary was built from a tagged, clean tree.
func (i *Info) IsRelease() bool {
	return i.Version != "dev" && !i.Dirty
}
