package flags

import (
	"flag"
	"time"

	"github.com/pkg/errors"

	"spikeplot.dev/spikeplot/common"
)

// LaunchFlags holds CLI args for spikelaunch.
type LaunchFlags struct {
	PlanPath   string
	ScriptPath string

	Interp       bool
	DryRun       bool
	Wait         string
	ReadyTimeout time.Duration
	KeepProxy    bool
	Verbose      bool
}

func defineLaunchFlags(fs *flag.FlagSet, f *LaunchFlags) {
	fs.StringVar(&f.PlanPath, "plan", "", "launch plan (TOML or YAML) replacing the default proxy and plotter")
	fs.StringVar(&f.ScriptPath, "script", "", "shell launch script to convert into a plan")
	fs.BoolVar(&f.Interp, "interp", false, "run -script with the embedded shell instead of converting it")
	fs.BoolVar(&f.DryRun, "dry-run", false, "print the launch order and exit")
	fs.StringVar(&f.Wait, "wait", "", "wait until the first background process accepts connections on this address")
	fs.DurationVar(&f.ReadyTimeout, "ready-timeout", common.DefaultReadyTimeout, "how long -wait waits")
	fs.BoolVar(&f.KeepProxy, "keep-proxy", false, "leave background processes running when the plotter exits")
	fs.BoolVar(&f.Verbose, "V", false, "display verbose log messages")
}

// ParseLaunchArgs defines and parses the flags from the command line for
// spikelaunch
func ParseLaunchArgs(args []string) (*LaunchFlags, error) {
	f := new(LaunchFlags)
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	defineLaunchFlags(fs, f)

	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}
	if err := noArgs(fs.Args()); err != nil {
		return nil, err
	}
	if f.PlanPath != "" && f.ScriptPath != "" {
		return nil, errors.New("-plan and -script are mutually exclusive")
	}
	if f.Interp && f.ScriptPath == "" {
		return nil, errors.New("-interp needs -script")
	}
	if f.Interp && (f.Wait != "" || f.KeepProxy) {
		return nil, errors.New("-wait and -keep-proxy do not apply to -interp")
	}
	if f.ReadyTimeout <= 0 {
		return nil, errors.Errorf("ready timeout must be positive, got %s", f.ReadyTimeout)
	}
	return f, nil
}
