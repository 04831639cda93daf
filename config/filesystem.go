package config

import (
	"io/fs"
	"os"

	"github.com/pkg/errors"
)

// overwriting fileSystem lets us use a mock filesystem for tests
var fileSystem fs.FS = osFS{}

type osFS struct{}

// osFS implements fs.FS.
func (o osFS) Open(name string) (fs.File, error) {
	return os.Open(name)
}

func readFile(path string) ([]byte, error) {
	return fs.ReadFile(fileSystem, path)
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
