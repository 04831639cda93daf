package proxy

import (
	"context"
	"io"
	"math/rand"
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"spikeplot.dev/spikeplot/common"
	"spikeplot.dev/spikeplot/core"
	"spikeplot.dev/spikeplot/wire"
)

// Source produces full frames (one count per channel) and publishes them to a
// hub until its context is cancelled.
type Source interface {
	Run(ctx context.Context, h *Hub) error
	String() string
}

// SourceOptions tune how sources retry and pace themselves.
type SourceOptions struct {
	FrameSize     int
	DialRetry     time.Duration
	FrameInterval time.Duration
}

// NewSource returns the Source described by u.
func NewSource(u *core.SourceURL, opts SourceOptions) (Source, error) {
	if opts.FrameSize < 1 {
		return nil, errors.New("frame size must be positive")
	}
	if opts.DialRetry <= 0 {
		opts.DialRetry = common.DialRetryInterval
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = common.DefaultFrameInterval
	}
	switch u.Scheme {
	case core.SchemeTCP:
		return &dialSource{url: u, opts: opts}, nil
	case core.SchemeRFCOMM:
		addr, err := bdaddr(u.Host)
		if err != nil {
			return nil, err
		}
		channel, err := strconv.Atoi(u.Port)
		if err != nil {
			return nil, errors.Wrapf(err, "rfcomm channel %q", u.Port)
		}
		return &dialSource{url: u, opts: opts, dial: func(ctx context.Context) (io.ReadCloser, error) {
			return dialRFCOMM(ctx, addr, channel)
		}}, nil
	case core.SchemeListen:
		return &listenSource{url: u, opts: opts}, nil
	case core.SchemeSerial:
		baud, err := u.IntParam("baud", common.DefaultSerialBaud)
		if err != nil {
			return nil, err
		}
		return &serialSource{url: u, baud: baud, opts: opts}, nil
	case core.SchemeSim:
		seed, err := u.IntParam("seed", 1)
		if err != nil {
			return nil, err
		}
		max, err := u.IntParam("max", 20)
		if err != nil {
			return nil, err
		}
		if max < 0 || max > 255 {
			return nil, errors.Errorf("sim max must be within 0..255, got %d", max)
		}
		return &simSource{url: u, seed: int64(seed), max: max, opts: opts}, nil
	default:
		return nil, errors.Errorf("unsupported source scheme %q", u.Scheme)
	}
}

// sleepCtx waits for d or until ctx is done.
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

// pump publishes frames read from r until it fails. A clean end of stream
// returns nil.
func pump(r io.Reader, size int, h *Hub) error {
	fr := wire.NewFrameReader(r, size)
	for {
		frame, err := fr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		h.Publish(frame)
	}
}

// attach runs pump on conn, closing conn when ctx is done, and disconnects
// every subscriber once the producer is gone.
func attach(ctx context.Context, conn io.ReadCloser, size int, h *Hub) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	h.SetConnected(true)
	err := pump(conn, size, h)
	h.SetConnected(false)
	h.CloseAll()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

type dialSource struct {
	url  *core.SourceURL
	opts SourceOptions

	// dial connects to the producer. TCP when nil.
	dial func(ctx context.Context) (io.ReadCloser, error)
}

func (s *dialSource) String() string {
	return s.url.String()
}

// Run dials the producer, retrying until it is up, and dials again each time
// it goes away.
func (s *dialSource) Run(ctx context.Context, h *Hub) error {
	addr := s.url.Address()
	dial := s.dial
	if dial == nil {
		dialer := net.Dialer{}
		dial = func(ctx context.Context) (io.ReadCloser, error) {
			return dialer.DialContext(ctx, "tcp", addr)
		}
	} else {
		addr = s.url.String()
	}
	for {
		conn, err := dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logrus.Infof("proxy: waiting for source %s to start", addr)
			if sleepCtx(ctx, s.opts.DialRetry) != nil {
				return nil
			}
			continue
		}
		logrus.Infof("proxy: connected to source %s", addr)
		if err := attach(ctx, conn, s.opts.FrameSize, h); err != nil {
			logrus.Warnf("proxy: source %s: %s", addr, err)
		} else if ctx.Err() == nil {
			logrus.Infof("proxy: source %s closed the stream", addr)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

type listenSource struct {
	url  *core.SourceURL
	opts SourceOptions

	// ready receives the bound address once listening; used by tests.
	ready chan<- net.Addr
}

func (s *listenSource) String() string {
	return s.url.String()
}

// Run accepts one producer at a time.
func (s *listenSource) Run(ctx context.Context, h *Hub) error {
	lc := net.ListenConfig{}
	l, err := lc.Listen(ctx, "tcp", s.url.Address())
	if err != nil {
		return errors.Wrapf(err, "listening for producers on %s", s.url.Address())
	}
	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()
	defer l.Close()
	logrus.Infof("proxy: waiting for a producer on %s", l.Addr())
	if s.ready != nil {
		s.ready <- l.Addr()
	}
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "accepting producer")
		}
		logrus.Infof("proxy: producer %s attached", conn.RemoteAddr())
		if err := attach(ctx, conn, s.opts.FrameSize, h); err != nil {
			logrus.Warnf("proxy: producer %s: %s", conn.RemoteAddr(), err)
		}
		if ctx.Err() != nil {
			return nil
		}
		logrus.Infof("proxy: producer %s detached", conn.RemoteAddr())
	}
}

type simSource struct {
	url  *core.SourceURL
	seed int64
	max  int
	opts SourceOptions
}

func (s *simSource) String() string {
	return s.url.String()
}

// Run publishes random-walk firing rates every frame interval.
func (s *simSource) Run(ctx context.Context, h *Hub) error {
	rng := rand.New(rand.NewSource(s.seed))
	rates := make([]int, s.opts.FrameSize)
	for i := range rates {
		rates[i] = rng.Intn(s.max + 1)
	}
	ticker := time.NewTicker(s.opts.FrameInterval)
	defer ticker.Stop()
	h.SetConnected(true)
	defer h.SetConnected(false)
	logrus.Infof("proxy: simulating %d channels (seed %d, max %d)", len(rates), s.seed, s.max)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		frame := make([]byte, len(rates))
		for i := range rates {
			rates[i] = clamp(rates[i]+rng.Intn(5)-2, 0, s.max)
			frame[i] = byte(rates[i])
		}
		h.Publish(frame)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
