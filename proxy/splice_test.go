package proxy

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"gotest.tools/assert"
)

func TestSpliceCleanClose(t *testing.T) {
	clientA, serverA := net.Pipe()
	clientB, serverB := net.Pipe()

	frame := []byte{0, 3, 7, 1}

	// splice clientA <--> clientB
	wg := Splice(serverA, serverB)

	go func() {
		// producer side
		n, err := clientA.Write(frame)
		assert.NilError(t, err)
		logrus.Infof("producer: wrote %v bytes", n)
		err = clientA.Close()
		assert.NilError(t, err)
	}()

	go func() {
		// plotter side
		buf := make([]byte, len(frame))
		m, err := io.ReadFull(clientB, buf)
		assert.NilError(t, err)
		assert.DeepEqual(t, buf, frame)
		logrus.Infof("plotter: read %v bytes", m)
		err = clientB.Close()
		assert.NilError(t, err)
	}()

	c := make(chan struct{})
	go func() {
		defer close(c)
		wg.Wait()
	}()

	select {
	case <-c:
		logrus.Info("Wait group finished normally")
	case <-time.After(time.Second * 3):
		t.Fatal("timed out waiting for splice to finish")
	}
}

func TestSpliceOneClose(t *testing.T) {
	clientA, serverA := net.Pipe()
	clientB, serverB := net.Pipe()

	frame := []byte{9, 9}

	wg := Splice(serverA, serverB)

	go func() {
		n, err := clientA.Write(frame)
		assert.NilError(t, err)
		logrus.Infof("producer: wrote %v bytes", n)
		clientA.Close()
	}()

	go func() {
		// plotter never calls close
		buf := make([]byte, len(frame))
		_, err := io.ReadFull(clientB, buf)
		assert.NilError(t, err)
	}()

	c := make(chan struct{})
	go func() {
		defer close(c)
		wg.Wait()
	}()

	select {
	case <-c:
		logrus.Info("Wait group finished normally")
	case <-time.After(time.Second * 3):
		t.Fatal("timed out waiting for splice to finish")
	}
}
