package proxy

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"spikeplot.dev/spikeplot/common"
	"spikeplot.dev/spikeplot/config"
	"spikeplot.dev/spikeplot/core"
	"spikeplot.dev/spikeplot/neurons"
	"spikeplot.dev/spikeplot/status"
	"spikeplot.dev/spikeplot/wire"
)

// Server holds the state of a running proxy.
type Server struct {
	config    *config.ProxyConfig
	channels  *neurons.Set
	source    Source
	sourceURL *core.SourceURL
	hub       *Hub

	listener net.Listener
	legacy   net.Listener
	status   net.Listener
}

// NewServer validates c, resolves the channel set, and opens every listener
// so that Addr is meaningful before Serve runs.
func NewServer(c *config.ProxyConfig) (*Server, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	set, err := c.ChannelSet()
	if err != nil {
		return nil, errors.Wrap(err, "resolving channels")
	}
	u, err := core.ParseSource(c.Source)
	if err != nil {
		return nil, err
	}
	src, err := NewSource(u, SourceOptions{
		FrameSize:     set.Len(),
		DialRetry:     c.DialRetry.Duration,
		FrameInterval: c.FrameInterval.Duration,
	})
	if err != nil {
		return nil, err
	}
	s := &Server{
		config:    c,
		channels:  set,
		source:    src,
		sourceURL: u,
		hub:       NewHub(c.ClientQueue),
	}
	if s.listener, err = net.Listen("tcp", c.ListenAddress); err != nil {
		return nil, errors.Wrapf(err, "listening for plotters on %s", c.ListenAddress)
	}
	if c.LegacyAddress != "" {
		if s.legacy, err = net.Listen("tcp", c.LegacyAddress); err != nil {
			s.listener.Close()
			return nil, errors.Wrapf(err, "listening for legacy plotters on %s", c.LegacyAddress)
		}
	}
	if c.StatusAddress != "" {
		if s.status, err = net.Listen("tcp", c.StatusAddress); err != nil {
			s.closeListeners()
			return nil, errors.Wrapf(err, "listening for status requests on %s", c.StatusAddress)
		}
	}
	return s, nil
}

func (s *Server) closeListeners() {
	for _, l := range []net.Listener{s.listener, s.legacy, s.status} {
		if l != nil {
			l.Close()
		}
	}
}

// Addr returns the address plotters connect to.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// StatusAddr returns the address of the status endpoint, or nil.
func (s *Server) StatusAddr() net.Addr {
	if s.status == nil {
		return nil
	}
	return s.status.Addr()
}

// LegacyAddr returns the address of the legacy passthrough, or nil.
func (s *Server) LegacyAddr() net.Addr {
	if s.legacy == nil {
		return nil
	}
	return s.legacy.Addr()
}

// Hub returns the hub frames are published to.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ChannelNames implements status.Provider.
func (s *Server) ChannelNames() []string {
	return s.channels.Names()
}

// Snapshot implements status.Provider.
func (s *Server) Snapshot() status.Snapshot {
	return status.Snapshot{
		Source:    s.source.String(),
		Connected: s.hub.Connected(),
		Clients:   s.hub.Len(),
		Frames:    s.hub.Frames(),
		Dropped:   s.hub.Dropped(),
	}
}

// Serve runs the source, the plotter listener, and the optional legacy and
// status listeners until ctx is cancelled or one of them fails.
func (s *Server) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	defer s.closeListeners()

	logrus.Infof("proxy: serving %d channels on %s from %s", s.channels.Len(), s.listener.Addr(), s.source)

	g.Go(func() error {
		return s.source.Run(ctx, s.hub)
	})
	g.Go(func() error {
		return s.acceptLoop(ctx)
	})
	if s.legacy != nil {
		g.Go(func() error {
			return serveLegacy(ctx, s.legacy, s.sourceURL.Address())
		})
	}
	if s.status != nil {
		srv := &http.Server{Handler: status.New(s), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logrus.Infof("proxy: status endpoint on http://%s", s.status.Addr())
			err := srv.Serve(s.status)
			if err == http.ErrServerClosed {
				return nil
			}
			return err
		})
		g.Go(func() error {
			<-ctx.Done()
			return srv.Close()
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		s.closeListeners()
		s.hub.CloseAll()
		return nil
	})
	return g.Wait()
}

func (s *Server) acceptLoop(ctx context.Context) error {
	var clients errgroup.Group
	defer clients.Wait()
	for {
		c, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "accepting plotter")
		}
		clients.Go(func() error {
			s.handleClient(ctx, c)
			return nil
		})
	}
}

// handleClient performs the subscription handshake and streams frames until
// the plotter or the producer goes away.
func (s *Server) handleClient(ctx context.Context, c net.Conn) {
	log := logrus.WithField("remote", c.RemoteAddr().String())
	defer c.Close()
	// Unblocks a plotter stuck in the handshake when the proxy shuts down.
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	indices, err := s.handshake(c)
	if err != nil {
		log.Warnf("proxy: handshake failed: %s", err)
		return
	}
	log.Infof("proxy: plotter subscribed to %d channels", len(indices))

	sub := s.hub.Subscribe(indices)
	defer s.hub.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	// Plotters send nothing after subscribing; a read returning means they
	// hung up.
	go func() {
		defer cancel()
		var b [1]byte
		for {
			if _, err := c.Read(b[:]); err != nil {
				return
			}
		}
	}()

	for {
		frame, err := sub.Next(ctx)
		if err != nil {
			log.Infof("proxy: plotter stream ended: %s", err)
			return
		}
		if err := wire.WriteFrame(c, frame); err != nil {
			log.Infof("proxy: plotter write failed: %s", err)
			return
		}
	}
}

func (s *Server) handshake(c net.Conn) ([]int, error) {
	if err := c.SetReadDeadline(time.Now().Add(s.config.HandshakeTimeout.Duration)); err != nil {
		return nil, err
	}
	m, err := wire.ReadMessage(c)
	if err != nil {
		return nil, errors.Wrap(err, "reading subscribe")
	}
	if m.Type != wire.MsgSubscribe {
		wire.WriteError(c, "expected subscribe")
		return nil, errors.Errorf("expected subscribe, got %s", m.Type)
	}
	names, err := m.Names()
	if err != nil {
		wire.WriteError(c, err.Error())
		return nil, err
	}
	indices, err := s.channels.SelectNames(names)
	if err != nil {
		wire.WriteError(c, err.Error())
		return nil, err
	}
	// A Header names at most 255 channels; larger networks are plotted by
	// selecting channels by name.
	if len(indices) > common.MaxStringLength {
		reason := fmt.Sprintf("network has %d channels, select at most %d by name", len(indices), common.MaxStringLength)
		wire.WriteError(c, reason)
		return nil, errors.New(reason)
	}
	all := s.channels.Names()
	granted := make([]string, len(indices))
	for i, idx := range indices {
		granted[i] = all[idx]
	}
	if err := wire.WriteHeader(c, granted); err != nil {
		return nil, errors.Wrap(err, "writing header")
	}
	if err := c.SetReadDeadline(time.Time{}); err != nil {
		return nil, err
	}
	return indices, nil
}
