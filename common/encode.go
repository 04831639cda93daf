package common

import (
	"encoding/binary"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// MaxStringLength is the longest string WriteString can encode.
const MaxStringLength = 255

// ErrStringTooLong is returned when a string does not fit a one byte length.
var ErrStringTooLong = errors.New("string longer than 255 bytes")

// WriteString writes a string preceded by its length.
func WriteString(s string, w io.Writer) (int64, error) {
	if len(s) > MaxStringLength {
		return 0, ErrStringTooLong
	}
	var written int64
	// write length of string as one byte
	n, err := w.Write([]byte{byte(len(s))})
	written += int64(n)
	if err != nil {
		return written, err
	}
	n, err = io.WriteString(w, s)
	written += int64(n)
	if err != nil {
		return written, err
	}
	return written, nil
}

// ReadString reads a variable length string
func ReadString(r io.Reader) (string, int64, error) {
	var bytesRead int64
	// read len
	var len byte
	err := binary.Read(r, binary.BigEndian, &len)
	if err != nil {
		return "", bytesRead, err
	}
	bytesRead++
	// read string
	builder := strings.Builder{}
	copied, err := io.CopyN(&builder, r, int64(len))
	bytesRead += copied
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return builder.String(), bytesRead, err
}

// WriteStrings writes a one byte count followed by each length-prefixed
// string.
func WriteStrings(ss []string, w io.Writer) (int64, error) {
	if len(ss) > MaxStringLength {
		return 0, errors.Errorf("too many strings: %d", len(ss))
	}
	n, err := w.Write([]byte{byte(len(ss))})
	written := int64(n)
	if err != nil {
		return written, err
	}
	for _, s := range ss {
		m, err := WriteString(s, w)
		written += m
		if err != nil {
			return written, errors.Wrapf(err, "writing %q", s)
		}
	}
	return written, nil
}

// ReadStrings reads a list written by WriteStrings.
func ReadStrings(r io.Reader) ([]string, int64, error) {
	var count [1]byte
	if _, err := io.ReadFull(r, count[:]); err != nil {
		return nil, 0, err
	}
	bytesRead := int64(1)
	out := make([]string, 0, count[0])
	for i := 0; i < int(count[0]); i++ {
		s, n, err := ReadString(r)
		bytesRead += n
		if err != nil {
			return nil, bytesRead, errors.Wrapf(err, "reading string %d of %d", i+1, count[0])
		}
		out = append(out, s)
	}
	return out, bytesRead, nil
}
