package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"mvdan.cc/sh/v3/interp"

	"spikeplot.dev/spikeplot/common"
	"spikeplot.dev/spikeplot/config"
	"spikeplot.dev/spikeplot/flags"
	"spikeplot.dev/spikeplot/launch"
)

func main() {
	os.Exit(run())
}

func run() int {
	f, err := flags.ParseLaunchArgs(os.Args)
	if err != nil {
		logrus.Error(err)
		return 2
	}
	common.ConfigureLogging(f.Verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if f.Interp {
		return interpret(ctx, f.ScriptPath)
	}

	plan, err := loadPlan(f)
	if err != nil {
		logrus.Error(err)
		return 1
	}
	for i := range plan.Processes {
		p := &plan.Processes[i]
		if !p.Background {
			continue
		}
		if f.Wait != "" && p.Ready == "" {
			p.Ready = f.Wait
			p.ReadyTimeout = config.Duration{Duration: f.ReadyTimeout}
			f.Wait = ""
		}
		if f.KeepProxy {
			p.Keep = true
		}
	}

	if f.DryRun {
		if err := launch.DryRun(os.Stdout, plan); err != nil {
			logrus.Error(err)
			return 1
		}
		return 0
	}

	s := &launch.Supervisor{
		Runner: &launch.ExecRunner{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr},
	}
	code, err := s.Run(ctx, plan)
	if err != nil {
		logrus.Error(err)
	}
	return code
}

func loadPlan(f *flags.LaunchFlags) (*launch.Plan, error) {
	switch {
	case f.PlanPath != "":
		return launch.LoadPlan(f.PlanPath)
	case f.ScriptPath != "":
		fd, err := os.Open(f.ScriptPath)
		if err != nil {
			return nil, err
		}
		defer fd.Close()
		return launch.PlanFromScript(fd, f.ScriptPath)
	default:
		return launch.DefaultPlan(), nil
	}
}

// interpret runs a launch script as a shell would, returning its exit status.
func interpret(ctx context.Context, path string) int {
	fd, err := os.Open(path)
	if err != nil {
		logrus.Error(err)
		return 1
	}
	defer fd.Close()
	err = launch.RunScript(ctx, fd, path, os.Stdin, os.Stdout, os.Stderr)
	if status, ok := interp.IsExitStatus(err); ok {
		return int(status)
	}
	if err != nil {
		logrus.Error(err)
		return 1
	}
	return 0
}
