package launch

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"spikeplot.dev/spikeplot/common"
	"spikeplot.dev/spikeplot/pkg/combinators"
)

// Handle is a started process.
type Handle interface {
	// Wait blocks until the process exited and returns its exit code. It may
	// be called more than once.
	Wait() (int, error)
	// Stop asks the process and its descendants to exit, and kills them once
	// grace expired.
	Stop(grace time.Duration) error
}

// Runner starts processes.
type Runner interface {
	Start(ctx context.Context, p Process) (Handle, error)
}

// Supervisor starts a plan and tears it down when the foreground process
// exits.
type Supervisor struct {
	Runner Runner
	Grace  time.Duration

	// Running reports whether a program with this executable name already
	// runs. Defaults to a process table lookup.
	Running func(name string) (bool, error)
	// Dial is used for readiness checks.
	Dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

type started struct {
	proc   Process
	handle Handle
}

// Run starts every process of plan in order and returns the exit code of the
// foreground process. Without a foreground process it runs until ctx is
// done.
func (s *Supervisor) Run(ctx context.Context, plan *Plan) (int, error) {
	if err := plan.Validate(); err != nil {
		return 1, err
	}
	order, err := plan.Order()
	if err != nil {
		return 1, err
	}
	grace := combinators.Or(s.Grace, common.DefaultStopGrace)

	var background []started
	var watchers errgroup.Group
	stopping := make(chan struct{})
	teardown := func() {
		close(stopping)
		s.stopAll(background, grace)
		watchers.Wait()
	}

	for _, p := range order {
		if !p.Background {
			break
		}
		log := logrus.WithField("process", p.Name)
		if p.SkipIfRunning {
			running, err := s.running(p.Executable())
			if err != nil {
				log.Warnf("launch: checking for a running %s: %s", p.Executable(), err)
			} else if running {
				log.Infof("launch: %s already runs, not starting it", p.Executable())
				continue
			}
		}
		log.Infof("launch: starting %q in the background", p.Command)
		h, err := s.Runner.Start(ctx, p)
		if err != nil {
			teardown()
			return 1, errors.Wrapf(err, "starting %s", p.Name)
		}
		background = append(background, started{proc: p, handle: h})
		watch := func() error {
			code, err := h.Wait()
			select {
			case <-stopping:
			default:
				log.Warnf("launch: %s exited early with status %d: %v", p.Name, code, err)
			}
			return nil
		}
		if p.Keep {
			// outlives the launch; nobody waits for it
			go watch()
		} else {
			watchers.Go(watch)
		}
		if p.Ready != "" {
			timeout := combinators.Or(p.ReadyTimeout.Duration, common.DefaultReadyTimeout)
			if err := s.waitReady(ctx, p.Ready, timeout); err != nil {
				teardown()
				return 1, errors.Wrapf(err, "%s never became ready", p.Name)
			}
			log.Infof("launch: %s accepts connections on %s", p.Name, p.Ready)
		}
	}

	fg := order[len(order)-1]
	if fg.Background {
		logrus.Info("launch: no foreground process, running until interrupted")
		<-ctx.Done()
		teardown()
		return 0, nil
	}

	log := logrus.WithField("process", fg.Name)
	log.Infof("launch: starting %q in the foreground", fg.Command)
	h, err := s.Runner.Start(ctx, fg)
	if err != nil {
		teardown()
		return 1, errors.Wrapf(err, "starting %s", fg.Name)
	}
	type result struct {
		code int
		err  error
	}
	done := make(chan result, 1)
	go func() {
		code, err := h.Wait()
		done <- result{code, err}
	}()
	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		log.Info("launch: interrupted, stopping the foreground process")
		h.Stop(grace)
		res = <-done
	}
	log.Infof("launch: %s exited with status %d", fg.Name, res.code)
	teardown()
	return res.code, res.err
}

func (s *Supervisor) stopAll(procs []started, grace time.Duration) {
	var g errgroup.Group
	for _, st := range procs {
		st := st
		log := logrus.WithField("process", st.proc.Name)
		if st.proc.Keep {
			log.Infof("launch: leaving %s running", st.proc.Name)
			continue
		}
		g.Go(func() error {
			if err := st.handle.Stop(grace); err != nil {
				log.Warnf("launch: stopping %s: %s", st.proc.Name, err)
			}
			return nil
		})
	}
	g.Wait()
}

func (s *Supervisor) running(name string) (bool, error) {
	if s.Running != nil {
		return s.Running(name)
	}
	return processRunning(name)
}

// waitReady dials addr until it answers or timeout expires.
func (s *Supervisor) waitReady(ctx context.Context, addr string, timeout time.Duration) error {
	dial := s.Dial
	if dial == nil {
		d := net.Dialer{}
		dial = d.DialContext
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		conn, err := dial(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			return nil
		}
		t := time.NewTimer(100 * time.Millisecond)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return errors.Wrapf(ctx.Err(), "dialing %s: %s", addr, err)
		}
	}
}

// DryRun writes the start order of plan without starting anything.
func DryRun(w io.Writer, plan *Plan) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	order, err := plan.Order()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, p := range order {
		var notes []string
		if p.Ready != "" {
			notes = append(notes, "ready="+p.Ready)
		}
		if p.Keep {
			notes = append(notes, "keep")
		}
		if p.SkipIfRunning {
			notes = append(notes, "skip-if-running")
		}
		env := ""
		if len(p.Env) > 0 {
			env = strings.Join(p.Env, " ") + " "
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s%s\t%s\n", i+1, p.Name, p.Mode(), env, strings.Join(p.Command, " "), strings.Join(notes, ","))
	}
	return tw.Flush()
}
