// Package launch starts the spike proxy and the plotter in the right order
// and keeps them supervised.
package launch

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"spikeplot.dev/spikeplot/common"
	"spikeplot.dev/spikeplot/config"
)

// Process is one program started by the launcher.
type Process struct {
	Name    string   `toml:"name" yaml:"name"`
	Command []string `toml:"command" yaml:"command"`
	Env     []string `toml:"env" yaml:"env"`
	Dir     string   `toml:"dir" yaml:"dir"`

	// Background processes are started without waiting for them. The single
	// foreground process owns the terminal and its exit ends the launch.
	Background bool     `toml:"background" yaml:"background"`
	After      []string `toml:"after" yaml:"after"`

	// Ready, when set, holds back later processes until a TCP dial to this
	// address succeeds.
	Ready        string          `toml:"ready" yaml:"ready"`
	ReadyTimeout config.Duration `toml:"ready_timeout" yaml:"ready_timeout"`

	PTY           bool `toml:"pty" yaml:"pty"`
	Keep          bool `toml:"keep" yaml:"keep"`
	SkipIfRunning bool `toml:"skip_if_running" yaml:"skip_if_running"`
}

// Mode returns "background" or "foreground".
func (p *Process) Mode() string {
	if p.Background {
		return "background"
	}
	return "foreground"
}

// Executable returns the base name of the program.
func (p *Process) Executable() string {
	if len(p.Command) == 0 {
		return ""
	}
	return filepath.Base(p.Command[0])
}

// Plan is the list of processes to launch, in declaration order.
type Plan struct {
	Processes []Process `toml:"process" yaml:"processes"`
}

// DefaultPlan starts the proxy in the background, then the plotter in the
// foreground subscribed to n1, n2 and n3.
func DefaultPlan() *Plan {
	return &Plan{Processes: []Process{
		{
			Name:       "proxy",
			Command:    []string{"spikeproxy"},
			Background: true,
		},
		{
			Name: "plot",
			Command: []string{
				"spikeplot",
				"-a", common.DefaultProxyHost,
				"-p", "5000",
				"-i", "n1,n2,n3",
				"-n",
				"-s", "500",
				"-l",
			},
			After: []string{"proxy"},
		},
	}}
}

// LoadPlan reads a plan file. Files ending in .yaml or .yml are YAML,
// everything else is TOML.
func LoadPlan(path string) (*Plan, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "plan load failed (%s)", path)
	}
	p := new(Plan)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(p); err != nil {
			return nil, errors.Wrapf(err, "plan parse failed (%s)", path)
		}
	default:
		md, err := toml.Decode(string(b), p)
		if err != nil {
			return nil, errors.Wrapf(err, "plan parse failed (%s)", path)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, errors.Errorf("plan parse failed (%s): unknown setting %q", path, undecoded[0].String())
		}
	}
	if err := p.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid plan %s", path)
	}
	return p, nil
}

// Foreground returns the foreground process, or nil.
func (p *Plan) Foreground() *Process {
	for i := range p.Processes {
		if !p.Processes[i].Background {
			return &p.Processes[i]
		}
	}
	return nil
}

// Validate checks names, commands, dependencies and that there is at most
// one foreground process, which nothing may wait for.
func (p *Plan) Validate() error {
	if len(p.Processes) == 0 {
		return errors.New("plan has no processes")
	}
	foreground := ""
	for i, proc := range p.Processes {
		if proc.Name == "" {
			return errors.Errorf("process %d has no name", i)
		}
		if len(proc.Command) == 0 || proc.Command[0] == "" {
			return errors.Errorf("process %s has no command", proc.Name)
		}
		if proc.Ready != "" {
			if _, _, err := net.SplitHostPort(proc.Ready); err != nil {
				return errors.Wrapf(err, "process %s: bad ready address", proc.Name)
			}
		}
		if !proc.Background {
			if foreground != "" {
				return errors.Errorf("processes %s and %s are both in the foreground", foreground, proc.Name)
			}
			foreground = proc.Name
		}
	}
	for _, proc := range p.Processes {
		for _, dep := range proc.After {
			if dep == foreground {
				return errors.Errorf("process %s waits for the foreground process %s", proc.Name, dep)
			}
		}
	}
	_, err := p.graph()
	return err
}

func (p *Plan) graph() (graph.Graph[string, string], error) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())
	for _, proc := range p.Processes {
		if err := g.AddVertex(proc.Name); err != nil {
			if errors.Is(err, graph.ErrVertexAlreadyExists) {
				return nil, errors.Errorf("duplicate process name %s", proc.Name)
			}
			return nil, err
		}
	}
	for _, proc := range p.Processes {
		for _, dep := range proc.After {
			err := g.AddEdge(dep, proc.Name)
			switch {
			case err == nil, errors.Is(err, graph.ErrEdgeAlreadyExists):
			case errors.Is(err, graph.ErrVertexNotFound):
				return nil, errors.Errorf("process %s waits for unknown process %s", proc.Name, dep)
			case errors.Is(err, graph.ErrEdgeCreatesCycle):
				return nil, errors.Errorf("process %s and %s wait for each other", proc.Name, dep)
			default:
				return nil, err
			}
		}
	}
	return g, nil
}

// Order returns the processes in start order: dependencies first, ties
// broken by declaration order, the foreground process last.
func (p *Plan) Order() ([]Process, error) {
	g, err := p.graph()
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(p.Processes))
	for i, proc := range p.Processes {
		index[proc.Name] = i
	}
	less := func(a, b string) bool {
		pa, pb := p.Processes[index[a]], p.Processes[index[b]]
		if pa.Background != pb.Background {
			return pa.Background
		}
		return index[a] < index[b]
	}
	names, err := graph.StableTopologicalSort(g, less)
	if err != nil {
		return nil, err
	}
	out := make([]Process, 0, len(names))
	var fg *Process
	for _, n := range names {
		proc := p.Processes[index[n]]
		if !proc.Background {
			fg = &proc
			continue
		}
		out = append(out, proc)
	}
	if fg != nil {
		out = append(out, *fg)
	}
	return out, nil
}
