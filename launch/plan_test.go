package launch

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gotest.tools/assert"
)

func TestDefaultPlan(t *testing.T) {
	p := DefaultPlan()
	assert.NilError(t, p.Validate())

	order, err := p.Order()
	assert.NilError(t, err)
	assert.Equal(t, len(order), 2)

	assert.Equal(t, order[0].Name, "proxy")
	assert.Equal(t, order[0].Background, true)
	assert.DeepEqual(t, order[0].Command, []string{"spikeproxy"})
	assert.Equal(t, order[0].Ready, "")

	assert.Equal(t, order[1].Name, "plot")
	assert.Equal(t, order[1].Background, false)
	assert.DeepEqual(t, order[1].Command, []string{
		"spikeplot", "-a", "localhost", "-p", "5000", "-i", "n1,n2,n3", "-n", "-s", "500", "-l",
	})
	assert.Equal(t, p.Foreground().Name, "plot")
}

func TestOrder(t *testing.T) {
	p := &Plan{Processes: []Process{
		{Name: "plot", Command: []string{"spikeplot"}},
		{Name: "viewer", Command: []string{"v"}, Background: true, After: []string{"proxy"}},
		{Name: "proxy", Command: []string{"spikeproxy"}, Background: true, After: []string{"sim"}},
		{Name: "sim", Command: []string{"sim"}, Background: true},
		{Name: "logger", Command: []string{"l"}, Background: true},
	}}
	order, err := p.Order()
	assert.NilError(t, err)
	pos := map[string]int{}
	for i, proc := range order {
		pos[proc.Name] = i
	}
	assert.Equal(t, len(pos), 5)
	assert.Assert(t, pos["sim"] < pos["proxy"])
	assert.Assert(t, pos["proxy"] < pos["viewer"])
	assert.Equal(t, pos["plot"], 4)
}

func TestOrderKeepsDeclarationOrder(t *testing.T) {
	p := &Plan{Processes: []Process{
		{Name: "c", Command: []string{"c"}, Background: true},
		{Name: "a", Command: []string{"a"}, Background: true},
		{Name: "fg", Command: []string{"fg"}},
		{Name: "b", Command: []string{"b"}, Background: true},
	}}
	order, err := p.Order()
	assert.NilError(t, err)
	var names []string
	for _, proc := range order {
		names = append(names, proc.Name)
	}
	assert.DeepEqual(t, names, []string{"c", "a", "b", "fg"})
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		procs []Process
		err   string
	}{
		{nil, "no processes"},
		{[]Process{{Command: []string{"a"}}}, "has no name"},
		{[]Process{{Name: "a"}}, "has no command"},
		{[]Process{{Name: "a", Command: []string{"a"}}, {Name: "b", Command: []string{"b"}}}, "both in the foreground"},
		{[]Process{
			{Name: "a", Command: []string{"a"}, Background: true},
			{Name: "a", Command: []string{"b"}, Background: true},
		}, "duplicate process name a"},
		{[]Process{{Name: "a", Command: []string{"a"}, Background: true, After: []string{"zz"}}}, "unknown process zz"},
		{[]Process{
			{Name: "a", Command: []string{"a"}, Background: true, After: []string{"b"}},
			{Name: "b", Command: []string{"b"}, Background: true, After: []string{"a"}},
		}, "wait for each other"},
		{[]Process{
			{Name: "fg", Command: []string{"a"}},
			{Name: "b", Command: []string{"b"}, Background: true, After: []string{"fg"}},
		}, "waits for the foreground process"},
		{[]Process{{Name: "a", Command: []string{"a"}, Background: true, Ready: "nope"}}, "bad ready address"},
	} {
		err := (&Plan{Processes: tc.procs}).Validate()
		assert.ErrorContains(t, err, tc.err)
	}
}

func writePlan(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	assert.NilError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadPlanTOML(t *testing.T) {
	path := writePlan(t, "plan.toml", `
[[process]]
name = "proxy"
command = ["spikeproxy", "-source", "sim://"]
background = true
ready = "localhost:5000"
ready_timeout = "3s"
keep = true

[[process]]
name = "plot"
command = ["spikeplot", "-l"]
after = ["proxy"]
`)
	p, err := LoadPlan(path)
	assert.NilError(t, err)
	assert.Equal(t, len(p.Processes), 2)
	assert.Equal(t, p.Processes[0].Ready, "localhost:5000")
	assert.Equal(t, p.Processes[0].ReadyTimeout.Duration, 3*time.Second)
	assert.Equal(t, p.Processes[0].Keep, true)
	assert.DeepEqual(t, p.Processes[1].After, []string{"proxy"})
}

func TestLoadPlanYAML(t *testing.T) {
	path := writePlan(t, "plan.yaml", `
processes:
  - name: proxy
    command: [spikeproxy]
    background: true
    pty: true
    skip_if_running: true
  - name: plot
    command: [spikeplot, -i, all]
`)
	p, err := LoadPlan(path)
	assert.NilError(t, err)
	assert.Equal(t, p.Processes[0].PTY, true)
	assert.Equal(t, p.Processes[0].SkipIfRunning, true)
	assert.DeepEqual(t, p.Processes[1].Command, []string{"spikeplot", "-i", "all"})
}

func TestLoadPlanErrors(t *testing.T) {
	_, err := LoadPlan(writePlan(t, "plan.toml", "[[process]]\nname = \"a\"\ncommand = [\"a\"]\nbogus = 1\n"))
	assert.ErrorContains(t, err, "unknown setting")

	_, err = LoadPlan(writePlan(t, "plan.yml", "processes:\n  - name: a\n    bogus: 1\n"))
	assert.ErrorContains(t, err, "plan parse failed")

	_, err = LoadPlan(writePlan(t, "plan.toml", "[[process]]\nname = \"a\"\n"))
	assert.ErrorContains(t, err, "has no command")

	_, err = LoadPlan(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorContains(t, err, "plan load failed")
}

func TestDryRun(t *testing.T) {
	buf := &bytes.Buffer{}
	assert.NilError(t, DryRun(buf, DefaultPlan()))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, len(lines), 2)
	assert.Assert(t, strings.HasPrefix(lines[0], "1"))
	assert.Assert(t, strings.Contains(lines[0], "background"))
	assert.Assert(t, strings.Contains(lines[0], "spikeproxy"))
	assert.Assert(t, strings.Contains(lines[1], "foreground"))
	assert.Assert(t, strings.Contains(lines[1], "spikeplot -a localhost -p 5000 -i n1,n2,n3 -n -s 500 -l"))
}
