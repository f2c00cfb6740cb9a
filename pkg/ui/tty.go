//go:build !windows

package ui

import (
	"io"
	"os"
)

// OpenTTY opens the controlling terminal, used as program input when stdin
// is redirected.
func OpenTTY() (io.ReadWriteCloser, error) {
	return os.OpenFile("/dev/tty", os.O_RDWR, 0)
}
