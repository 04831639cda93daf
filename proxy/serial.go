package proxy

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"spikeplot.dev/spikeplot/core"
)

type serialSource struct {
	url  *core.SourceURL
	baud int
	opts SourceOptions

	// open is swapped in tests.
	open func(path string, baud int) (io.ReadCloser, error)
}

func (s *serialSource) String() string {
	return s.url.String()
}

// Run reads spike events from the device and publishes the per-channel event
// count over the last second every frame interval. A device that disappears
// is reopened after the retry interval.
func (s *serialSource) Run(ctx context.Context, h *Hub) error {
	open := s.open
	if open == nil {
		open = openSerial
	}
	for {
		dev, err := open(s.url.Path, s.baud)
		if err != nil {
			logrus.Infof("proxy: waiting for serial device %s: %s", s.url.Path, err)
			if sleepCtx(ctx, s.opts.DialRetry) != nil {
				return nil
			}
			continue
		}
		logrus.Infof("proxy: reading spikes from %s at %d baud", s.url.Path, s.baud)
		h.SetConnected(true)
		err = s.count(ctx, dev, h)
		h.SetConnected(false)
		h.CloseAll()
		if ctx.Err() != nil {
			return nil
		}
		logrus.Warnf("proxy: serial device %s: %v", s.url.Path, err)
	}
}

// count runs until the device fails or ctx is done.
func (s *serialSource) count(ctx context.Context, dev io.ReadCloser, h *Hub) error {
	events := make(chan byte, 256)
	readErr := make(chan error, 1)
	go func() {
		defer close(events)
		buf := make([]byte, 64)
		for {
			n, err := dev.Read(buf)
			for _, b := range buf[:n] {
				events <- b
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()
	defer func() {
		dev.Close()
		for range events {
		}
	}()

	w := newEventWindow(s.opts.FrameSize, time.Second, s.opts.FrameInterval)
	ticker := time.NewTicker(s.opts.FrameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case b, ok := <-events:
			if !ok {
				return <-readErr
			}
			if !w.add(int(b)) {
				logrus.Debugf("proxy: serial event for unknown neuron index %d", b)
			}
		case <-ticker.C:
			h.Publish(w.frame())
			w.advance()
		}
	}
}

// eventWindow counts events per channel over a rolling window split into
// fixed buckets.
type eventWindow struct {
	buckets [][]int
	cur     int
	size    int
}

func newEventWindow(size int, span, interval time.Duration) *eventWindow {
	n := int(span / interval)
	if span%interval != 0 {
		n++
	}
	if n < 1 {
		n = 1
	}
	w := &eventWindow{buckets: make([][]int, n), size: size}
	for i := range w.buckets {
		w.buckets[i] = make([]int, size)
	}
	return w
}

// add records one event for channel i. It reports false for out of range
// channels.
func (w *eventWindow) add(i int) bool {
	if i < 0 || i >= w.size {
		return false
	}
	w.buckets[w.cur][i]++
	return true
}

// frame sums the buckets, saturating at 255.
func (w *eventWindow) frame() []byte {
	out := make([]byte, w.size)
	for i := range out {
		sum := 0
		for _, b := range w.buckets {
			sum += b[i]
		}
		out[i] = byte(clamp(sum, 0, 255))
	}
	return out
}

// advance starts a new bucket, forgetting the oldest.
func (w *eventWindow) advance() {
	w.cur = (w.cur + 1) % len(w.buckets)
	for i := range w.buckets[w.cur] {
		w.buckets[w.cur][i] = 0
	}
}
