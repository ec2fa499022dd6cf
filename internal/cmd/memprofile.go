package cmd

import (
	"os"
	"runtime/pprof"

	"github.com/dotcommander/deepresearch/internal/logging"
)

// memprofile is set by the hidden --memprofile flag.
var memprofile bool

// maybeWriteMemProfile dumps the heap and allocs profiles into the working
// directory as deepresearch_<name>.profile.
func maybeWriteMemProfile() {
	if !memprofile {
		return
	}
	for _, name := range []string{"heap", "allocs"} {
		if err := writeProfile(name, "deepresearch_"+name+".profile"); err != nil {
			logging.L.Error("could not write profile", "profile", name, "err", err)
			return
		}
	}
}

func writeProfile(name, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err //nolint:wrapcheck
	}
	if err := pprof.Lookup(name).WriteTo(f, 0); err != nil {
		_ = f.Close()
		return err //nolint:wrapcheck
	}
	return f.Close() //nolint:wrapcheck
}
