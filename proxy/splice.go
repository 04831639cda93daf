package proxy

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

func spliceOneSide(dst net.Conn, src net.Conn, wg *sync.WaitGroup) {
	defer wg.Done()
	w, err := io.Copy(dst, src)
	dst.Close()
	src.Close()
	logrus.Debugf("legacy proxy: wrote %v bytes from %v to %v. Ended with err: %v", w, src.RemoteAddr(), dst.RemoteAddr(), err)
}

// Splice copies bytes in both directions between a and b until either side
// fails or closes, then closes both. The returned WaitGroup is done once both
// directions stopped.
func Splice(a net.Conn, b net.Conn) *sync.WaitGroup {
	logrus.Infof("legacy proxy: splicing %v and %v", a.RemoteAddr(), b.RemoteAddr())
	wg := &sync.WaitGroup{}
	wg.Add(2)
	go spliceOneSide(a, b, wg)
	go spliceOneSide(b, a, wg)
	return wg
}

// serveLegacy accepts plotters speaking the raw upstream protocol and gives
// each its own spliced connection to the upstream address.
func serveLegacy(ctx context.Context, l net.Listener, upstream string) error {
	logrus.Infof("legacy proxy: listening on %s, forwarding to %s", l.Addr(), upstream)
	var active sync.WaitGroup
	defer active.Wait()
	dialer := net.Dialer{}
	for {
		c, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		up, err := dialer.DialContext(ctx, "tcp", upstream)
		if err != nil {
			logrus.Errorf("legacy proxy: dialing %s for %v: %s", upstream, c.RemoteAddr(), err)
			c.Close()
			continue
		}
		wg := Splice(c, up)
		active.Add(1)
		go func() {
			defer active.Done()
			done := make(chan struct{})
			go func() {
				wg.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-ctx.Done():
				c.Close()
				up.Close()
				<-done
			}
		}()
	}
}
