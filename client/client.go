// Package client connects a plotter to the proxy and turns the stream into
// messages for the display.
package client

import (
	"context"
	"io"
	"net"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"spikeplot.dev/spikeplot/common"
	"spikeplot.dev/spikeplot/wire"
)

// State is the connection state shown by the plotter.
type State int

// Connection states.
const (
	Waiting State = iota
	Connected
	Disconnected
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// HeaderMsg carries the channel names granted by the proxy, in frame order.
type HeaderMsg struct {
	Names []string
}

// FrameMsg carries one count per subscribed channel.
type FrameMsg struct {
	Counts []byte
}

// StatusMsg reports a change of connection state.
type StatusMsg struct {
	State State
	Addr  string
}

// ErrMsg reports a fatal error. The plotter quits when it receives one.
type ErrMsg struct {
	Err error
}

// Sink receives display messages. *tea.Program implements it.
type Sink interface {
	Send(msg tea.Msg)
}

// Client subscribes to a fixed selection of channels on one proxy.
type Client struct {
	Addr  string
	Names []string
	// Live keeps the client dialing after the proxy goes away.
	Live  bool
	Retry time.Duration
}

func (c *Client) retry() time.Duration {
	if c.Retry <= 0 {
		return common.DialRetryInterval
	}
	return c.Retry
}

// Dial connects to addr, retrying every interval until it succeeds or ctx
// is done.
func Dial(ctx context.Context, addr string, interval time.Duration) (net.Conn, error) {
	dialer := net.Dialer{}
	for {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			logrus.Infof("client: connected to %s", addr)
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logrus.Infof("client: waiting for server %s to start", addr)
		if err := sleepCtx(ctx, interval); err != nil {
			return nil, err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect dials the proxy and subscribes.
func (c *Client) Connect(ctx context.Context) (*Session, error) {
	conn, err := Dial(ctx, c.Addr, c.retry())
	if err != nil {
		return nil, err
	}
	s, err := Subscribe(conn, c.Names)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Run streams frames into sink until ctx is done or, outside of live mode,
// until the proxy goes away. first, when not nil, is used as the initial
// session. A refused subscription is reported to sink and returned.
func (c *Client) Run(ctx context.Context, first *Session, sink Sink) error {
	sess := first
	for {
		if sess == nil {
			sink.Send(StatusMsg{State: Waiting, Addr: c.Addr})
			var err error
			sess, err = c.Connect(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				var refused *wire.RemoteError
				if c.Live && !errors.As(err, &refused) {
					logrus.Warnf("client: subscribing to %s: %s", c.Addr, err)
					if sleepCtx(ctx, c.retry()) != nil {
						return nil
					}
					continue
				}
				sink.Send(ErrMsg{Err: err})
				return err
			}
		}
		sink.Send(HeaderMsg{Names: sess.Names})
		sink.Send(StatusMsg{State: Connected, Addr: c.Addr})
		err := sess.Stream(ctx, sink)
		sess.Close()
		sess = nil
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			logrus.Warnf("client: stream from %s ended: %s", c.Addr, err)
		} else {
			logrus.Infof("client: server %s quit", c.Addr)
		}
		sink.Send(StatusMsg{State: Disconnected, Addr: c.Addr})
		if !c.Live {
			return err
		}
	}
}

// Start runs the client in the background and returns a channel receiving
// the result of Run. Unless nonBlocking is set it first connects and
// subscribes, so sink sees nothing until the proxy answered and a refusal is
// returned before anything is drawn.
func (c *Client) Start(ctx context.Context, nonBlocking bool, sink Sink) (<-chan error, error) {
	var first *Session
	if !nonBlocking {
		var err error
		if first, err = c.Connect(ctx); err != nil {
			return nil, err
		}
	}
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, first, sink)
	}()
	return done, nil
}

// Session is an established subscription.
type Session struct {
	Names []string

	conn net.Conn
}

// Subscribe performs the handshake on conn. No names subscribes to every
// channel.
func Subscribe(conn net.Conn, names []string) (*Session, error) {
	if err := wire.WriteSubscribe(conn, names); err != nil {
		return nil, errors.Wrap(err, "sending subscribe")
	}
	m, err := wire.ReadMessage(conn)
	if err != nil {
		return nil, errors.Wrap(err, "reading subscription reply")
	}
	switch m.Type {
	case wire.MsgError:
		return nil, m.Err()
	case wire.MsgHeader:
		granted, err := m.Names()
		if err != nil {
			return nil, err
		}
		return &Session{Names: granted, conn: conn}, nil
	default:
		return nil, errors.Errorf("unexpected %s message during subscription", m.Type)
	}
}

// Stream forwards frames to sink. It returns nil when the proxy closed the
// connection or ctx was cancelled.
func (s *Session) Stream(ctx context.Context, sink Sink) error {
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()
	for {
		m, err := wire.ReadMessage(s.conn)
		if err != nil {
			if ctx.Err() != nil || err == io.EOF {
				return nil
			}
			return err
		}
		switch m.Type {
		case wire.MsgFrame:
			if len(m.Payload) != len(s.Names) {
				return errors.Errorf("frame holds %d counts for %d channels", len(m.Payload), len(s.Names))
			}
			sink.Send(FrameMsg{Counts: m.Payload})
		case wire.MsgError:
			return m.Err()
		default:
			return errors.Errorf("unexpected %s message while streaming", m.Type)
		}
	}
}

// Close closes the connection to the proxy.
func (s *Session) Close() error {
	return s.conn.Close()
}
