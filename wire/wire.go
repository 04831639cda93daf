// Package wire implements the messages exchanged between the proxy and
// plotters, and the raw frame stream produced by simulators.
//
// Every client message is framed as a one byte type, a two byte big endian
// payload length, and the payload.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/pkg/errors"

	"spikeplot.dev/spikeplot/common"
)

// MsgType identifies a client protocol message.
type MsgType byte

// Message types.
const (
	MsgSubscribe MsgType = 1
	MsgHeader    MsgType = 2
	MsgError     MsgType = 3
	MsgFrame     MsgType = 4
)

// MaxPayload is the largest payload a decoder accepts.
const MaxPayload = 4096

const headerLen = 3

// ErrPayloadTooLarge is returned for messages longer than MaxPayload.
var ErrPayloadTooLarge = errors.New("payload too large")

func (t MsgType) String() string {
	switch t {
	case MsgSubscribe:
		return "subscribe"
	case MsgHeader:
		return "header"
	case MsgError:
		return "error"
	case MsgFrame:
		return "frame"
	default:
		return fmt.Sprintf("unknown(%d)", byte(t))
	}
}

func (t MsgType) valid() bool {
	return t >= MsgSubscribe && t <= MsgFrame
}

// Message is a decoded client protocol message.
type Message struct {
	Type    MsgType
	Payload []byte
}

// WriteMessage frames payload with its type and length and writes it in a
// single call.
func WriteMessage(w io.Writer, t MsgType, payload []byte) error {
	if len(payload) > MaxPayload {
		return ErrPayloadTooLarge
	}
	buf := make([]byte, headerLen+len(payload))
	buf[0] = byte(t)
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(payload)))
	copy(buf[headerLen:], payload)
	_, err := w.Write(buf)
	return err
}

// ReadMessage reads one framed message.
func ReadMessage(r io.Reader) (*Message, error) {
	var h [headerLen]byte
	if _, err := io.ReadFull(r, h[:]); err != nil {
		return nil, err
	}
	t := MsgType(h[0])
	if !t.valid() {
		return nil, errors.Errorf("unknown message type %d", h[0])
	}
	l := binary.BigEndian.Uint16(h[1:3])
	if l > MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	m := &Message{Type: t, Payload: make([]byte, l)}
	if _, err := io.ReadFull(r, m.Payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, errors.Wrapf(err, "reading %s payload", t)
	}
	return m, nil
}

func encodeNames(names []string) ([]byte, error) {
	buf := &bytes.Buffer{}
	if _, err := common.WriteStrings(names, buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeNames(payload []byte) ([]string, error) {
	r := bytes.NewReader(payload)
	names, _, err := common.ReadStrings(r)
	if err != nil {
		return nil, errors.Wrap(err, "malformed name list")
	}
	if r.Len() != 0 {
		return nil, errors.Errorf("malformed name list: %d trailing bytes", r.Len())
	}
	return names, nil
}

// WriteSubscribe asks for the named channels. No names means all channels.
func WriteSubscribe(w io.Writer, names []string) error {
	p, err := encodeNames(names)
	if err != nil {
		return err
	}
	return WriteMessage(w, MsgSubscribe, p)
}

// WriteHeader announces the channels a subscriber will receive, in frame
// order.
func WriteHeader(w io.Writer, names []string) error {
	p, err := encodeNames(names)
	if err != nil {
		return err
	}
	return WriteMessage(w, MsgHeader, p)
}

// WriteError reports a refusal to a subscriber. Long reasons are cut at a
// rune boundary.
func WriteError(w io.Writer, reason string) error {
	p := []byte(reason)
	if len(p) > MaxPayload {
		n := MaxPayload
		for n > 0 && !utf8.RuneStart(p[n]) {
			n--
		}
		p = p[:n]
	}
	return WriteMessage(w, MsgError, p)
}

// WriteFrame sends one count per subscribed channel.
func WriteFrame(w io.Writer, counts []byte) error {
	return WriteMessage(w, MsgFrame, counts)
}

// Names decodes the payload of a Subscribe or Header message.
func (m *Message) Names() ([]string, error) {
	if m.Type != MsgSubscribe && m.Type != MsgHeader {
		return nil, errors.Errorf("%s message carries no names", m.Type)
	}
	return decodeNames(m.Payload)
}

// RemoteError is an Error message received from the proxy.
type RemoteError struct {
	Reason string
}

func (e *RemoteError) Error() string {
	return "proxy refused subscription: " + e.Reason
}

// Err returns the RemoteError carried by an Error message.
func (m *Message) Err() error {
	if m.Type != MsgError {
		return nil
	}
	return &RemoteError{Reason: string(m.Payload)}
}

// FrameReader reads fixed size raw frames from an upstream producer.
type FrameReader struct {
	r    io.Reader
	size int
}

// NewFrameReader returns a reader of frames holding size counts each.
func NewFrameReader(r io.Reader, size int) *FrameReader {
	return &FrameReader{r: r, size: size}
}

// Next reads the next complete frame into a fresh slice. It returns io.EOF
// when the producer closed the stream between frames, and
// io.ErrUnexpectedEOF when it stopped mid-frame.
func (f *FrameReader) Next() ([]byte, error) {
	frame := make([]byte, f.size)
	if _, err := io.ReadFull(f.r, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// Project picks the counts at indices out of a full frame.
func Project(frame []byte, indices []int) []byte {
	out := make([]byte, len(indices))
	for i, idx := range indices {
		if idx >= 0 && idx < len(frame) {
			out[i] = frame[idx]
		}
	}
	return out
}
