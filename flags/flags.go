// Package flags provides support for spikeplot CLI args
package flags

import (
	"github.com/pkg/errors"
)

// ErrExcessArgs is returned when unparsed arguments remain
var ErrExcessArgs = errors.New("excess arguments provided")

func noArgs(rest []string) error {
	if len(rest) > 0 {
		return errors.Wrapf(ErrExcessArgs, "%q", rest)
	}
	return nil
}
