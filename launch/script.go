package launch

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"spikeplot.dev/spikeplot/common"
	"spikeplot.dev/spikeplot/pkg/thunks"
)

func parseScript(r io.Reader, name string) (*syntax.File, error) {
	f, err := syntax.NewParser().Parse(r, name)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing launch script %s", name)
	}
	return f, nil
}

// PlanFromScript turns a launch script made of simple commands into a plan.
// A command ending in & runs in the background; leading VAR=value words
// become its environment. Words are expanded against the launcher's
// environment, so quotes and $VARS behave as in a shell.
func PlanFromScript(r io.Reader, name string) (*Plan, error) {
	f, err := parseScript(r, name)
	if err != nil {
		return nil, err
	}
	cfg := &expand.Config{Env: expand.ListEnviron(os.Environ()...)}
	p := new(Plan)
	seen := make(map[string]int)
	for _, stmt := range f.Stmts {
		call, ok := stmt.Cmd.(*syntax.CallExpr)
		if !ok || stmt.Negated || len(stmt.Redirs) > 0 {
			return nil, errors.Errorf("%s: only simple commands are supported, use -interp to run it", stmt.Pos())
		}
		if len(call.Args) == 0 {
			return nil, errors.Errorf("%s: assignments without a command are not supported", stmt.Pos())
		}
		proc := Process{Background: stmt.Background}
		for _, as := range call.Assigns {
			value := ""
			if as.Value != nil {
				if value, err = expand.Literal(cfg, as.Value); err != nil {
					return nil, errors.Wrapf(err, "%s", as.Pos())
				}
			}
			proc.Env = append(proc.Env, as.Name.Value+"="+value)
		}
		if proc.Command, err = expand.Fields(cfg, call.Args...); err != nil {
			return nil, errors.Wrapf(err, "%s", stmt.Pos())
		}
		if len(proc.Command) == 0 {
			return nil, errors.Errorf("%s: command expands to nothing", stmt.Pos())
		}
		proc.Name = uniqueName(seen, processName(proc.Command))
		p.Processes = append(p.Processes, proc)
	}
	if err := p.Validate(); err != nil {
		return nil, errors.Wrapf(err, "launch script %s", name)
	}
	return p, nil
}

var interpreters = map[string]bool{
	"python": true, "python3": true, "sh": true, "bash": true, "env": true,
}

// processName names a process after its program, skipping a leading
// interpreter: "python3 proxy.py" is "proxy".
func processName(command []string) string {
	base := filepath.Base(command[0])
	if interpreters[base] && len(command) > 1 && !strings.HasPrefix(command[1], "-") {
		base = filepath.Base(command[1])
	}
	return strings.TrimSuffix(strings.TrimSuffix(base, ".py"), ".sh")
}

func uniqueName(seen map[string]int, name string) string {
	seen[name]++
	if n := seen[name]; n > 1 {
		return name + "-" + strconv.Itoa(n)
	}
	return name
}

// RunScript runs a launch script with the embedded shell, logging every
// program it executes.
func RunScript(ctx context.Context, r io.Reader, name string, stdin io.Reader, stdout, stderr io.Writer) error {
	f, err := parseScript(r, name)
	if err != nil {
		return err
	}
	next := interp.DefaultExecHandler(common.DefaultStopGrace)
	runner, err := interp.New(
		interp.StdIO(stdin, stdout, stderr),
		interp.ExecHandler(func(ctx context.Context, args []string) error {
			start := thunks.TimeNow()
			logrus.WithField("script", name).Infof("launch: running %q", args)
			err := next(ctx, args)
			logrus.WithField("script", name).Debugf("launch: %s finished after %s: %v", args[0], thunks.TimeNow().Sub(start).Round(time.Millisecond), err)
			return err
		}),
	)
	if err != nil {
		return err
	}
	return runner.Run(ctx, f)
}
