package launch

import (
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"spikeplot.dev/spikeplot/pkg/thunks"
)

// ExecRunner starts real programs. The foreground process gets Stdin,
// Stdout and Stderr; background output goes to the log, one entry per line.
type ExecRunner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Start implements Runner.
func (r *ExecRunner) Start(ctx context.Context, p Process) (Handle, error) {
	path, err := thunks.LookPath(p.Command[0])
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(path, p.Command[1:]...)
	cmd.Args[0] = p.Command[0]
	cmd.Dir = p.Dir
	cmd.Env = append(os.Environ(), p.Env...)
	if p.Background {
		return startBackground(cmd, p)
	}
	return r.startForeground(cmd)
}

func (r *ExecRunner) startForeground(cmd *exec.Cmd) (Handle, error) {
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	// The plotter switches the terminal to raw mode; put it back however it
	// exits.
	var restore func()
	if f, ok := r.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if state, err := term.GetState(int(f.Fd())); err == nil {
			restore = func() { term.Restore(int(f.Fd()), state) }
		}
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	h := newExecHandle(cmd)
	go func() {
		h.finish(cmd.Wait())
		if restore != nil {
			restore()
		}
	}()
	return h, nil
}

func startBackground(cmd *exec.Cmd, p Process) (Handle, error) {
	out := logrus.WithField("process", p.Name).WriterLevel(logrus.InfoLevel)
	if p.PTY {
		f, err := pty.Start(cmd)
		if err != nil {
			out.Close()
			return nil, err
		}
		h := newExecHandle(cmd)
		copied := make(chan struct{})
		go func() {
			defer close(copied)
			io.Copy(out, f)
		}()
		go func() {
			err := cmd.Wait()
			// Reading the master fails once every holder of the terminal
			// is gone; descendants may keep it open.
			t := time.NewTimer(time.Second)
			select {
			case <-copied:
				t.Stop()
			case <-t.C:
			}
			f.Close()
			<-copied
			out.Close()
			h.finish(err)
		}()
		return h, nil
	}

	cmd.Stdout = out
	cmd.Stderr = out
	// Keep terminal signals meant for the plotter away from background
	// processes; the supervisor stops them.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.WaitDelay = time.Second
	if err := cmd.Start(); err != nil {
		out.Close()
		return nil, err
	}
	h := newExecHandle(cmd)
	go func() {
		err := cmd.Wait()
		out.Close()
		h.finish(err)
	}()
	return h, nil
}

type execHandle struct {
	cmd  *exec.Cmd
	done chan struct{}

	m sync.Mutex
	// +checklocks:m
	code int
	// +checklocks:m
	err error
}

func newExecHandle(cmd *exec.Cmd) *execHandle {
	return &execHandle{cmd: cmd, done: make(chan struct{})}
}

func (h *execHandle) finish(err error) {
	code := 0
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitCode(exitErr.ProcessState)
		err = nil
	} else if err != nil {
		code = 1
	}
	h.m.Lock()
	h.code, h.err = code, err
	h.m.Unlock()
	close(h.done)
}

// exitCode follows the shell convention of 128+n for a death by signal n.
func exitCode(ps *os.ProcessState) int {
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return ps.ExitCode()
}

// Wait implements Handle.
func (h *execHandle) Wait() (int, error) {
	<-h.done
	h.m.Lock()
	defer h.m.Unlock()
	return h.code, h.err
}

// Stop implements Handle.
func (h *execHandle) Stop(grace time.Duration) error {
	select {
	case <-h.done:
		return nil
	default:
	}
	pids := processTree(h.cmd.Process.Pid)
	signalAll(pids, syscall.SIGTERM)
	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case <-h.done:
		// Descendants that ignored SIGTERM do not outlive the launch.
		signalAll(pids[1:], syscall.SIGKILL)
		return nil
	case <-t.C:
	}
	logrus.Warnf("launch: pid %d ignored SIGTERM for %s, killing it", pids[0], grace)
	signalAll(pids, syscall.SIGKILL)
	<-h.done
	return nil
}
