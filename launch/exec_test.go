package launch

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"gotest.tools/assert"
)

func waitForLog(t *testing.T, hook *test.Hook, process, text string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		for _, e := range hook.AllEntries() {
			if e.Data["process"] == process && strings.Contains(e.Message, text) {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no log entry from %s containing %q", process, text)
}

func TestExecForegroundExitCode(t *testing.T) {
	out := &bytes.Buffer{}
	r := &ExecRunner{Stdout: out, Stderr: out}
	h, err := r.Start(context.Background(), Process{Name: "fg", Command: []string{"sh", "-c", "echo $GREETING; exit 3"}, Env: []string{"GREETING=hello"}})
	assert.NilError(t, err)
	code, err := h.Wait()
	assert.NilError(t, err)
	assert.Equal(t, code, 3)
	assert.Equal(t, out.String(), "hello\n")

	// Waiting again returns the same result.
	code, _ = h.Wait()
	assert.Equal(t, code, 3)
}

func TestExecBackgroundOutputIsLogged(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	logrus.SetLevel(logrus.InfoLevel)

	r := &ExecRunner{}
	h, err := r.Start(context.Background(), Process{Name: "proxy", Command: []string{"sh", "-c", "echo listening; echo bye"}, Background: true})
	assert.NilError(t, err)
	code, err := h.Wait()
	assert.NilError(t, err)
	assert.Equal(t, code, 0)
	waitForLog(t, hook, "proxy", "listening")
	waitForLog(t, hook, "proxy", "bye")
}

func TestExecBackgroundPTY(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	r := &ExecRunner{}
	h, err := r.Start(context.Background(), Process{
		Name:       "proxy",
		Command:    []string{"sh", "-c", "test -t 1 && echo on-a-tty"},
		Background: true,
		PTY:        true,
	})
	assert.NilError(t, err)
	code, err := h.Wait()
	assert.NilError(t, err)
	assert.Equal(t, code, 0)
	waitForLog(t, hook, "proxy", "on-a-tty")
}

func TestExecStop(t *testing.T) {
	r := &ExecRunner{}
	h, err := r.Start(context.Background(), Process{Name: "sleeper", Command: []string{"sh", "-c", "sleep 30"}, Background: true})
	assert.NilError(t, err)

	start := time.Now()
	assert.NilError(t, h.Stop(2*time.Second))
	assert.Assert(t, time.Since(start) < 5*time.Second)
	code, _ := h.Wait()
	assert.Assert(t, code > 128, "exit code %d", code)

	// Stopping an exited process is a no-op.
	assert.NilError(t, h.Stop(time.Second))
}

func TestExecStopKillsStubbornProcess(t *testing.T) {
	r := &ExecRunner{}
	h, err := r.Start(context.Background(), Process{
		Name:       "stubborn",
		Command:    []string{"sh", "-c", "trap '' TERM; while :; do sleep 1; done"},
		Background: true,
	})
	assert.NilError(t, err)
	time.Sleep(100 * time.Millisecond)

	assert.NilError(t, h.Stop(200*time.Millisecond))
	code, _ := h.Wait()
	assert.Equal(t, code, 128+9)
}

func TestExecMissingProgram(t *testing.T) {
	r := &ExecRunner{}
	_, err := r.Start(context.Background(), Process{Name: "x", Command: []string{"spikeplot-does-not-exist"}})
	assert.ErrorContains(t, err, "executable file not found")
}

func TestProcessTreeIncludesSelf(t *testing.T) {
	pids := processTree(os.Getpid())
	assert.Equal(t, pids[0], os.Getpid())
}

func TestMatchExecutable(t *testing.T) {
	assert.Assert(t, matchExecutable("spikeproxy", "spikeproxy"))
	assert.Assert(t, !matchExecutable("spikeplot", "spikeproxy"))
	assert.Assert(t, matchExecutable("a-very-long-pro", "a-very-long-program"))
}
