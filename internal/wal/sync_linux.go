//go:build linux

package wal

import (
	"os"

	"golang.org/x/sys/unix"
)

// fdatasync forces file data to durable storage, together with the
// metadata needed to read it back (such as a grown file length); other
// metadata such as timestamps is not flushed.
func fdatasync(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
