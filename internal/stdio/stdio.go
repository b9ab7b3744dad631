// Package stdio makes sure the stdio file descriptors point at something
// before anything else runs.
//
// The problem this prevents: a parent process may exec this program with fds
// 0-2 unbound. The next file opened would then land on a stdio fd, and later
// log writes would scribble over it — a privilege escalation if an
// underprivileged parent gets the process to corrupt, say, its own database
// file. Any stdio fd that fstat(2) reports as closed (EBADF) is aliased to
// /dev/null instead; any other fstat failure is returned as an error.
package stdio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Setup checks fds 0-2 and redirects dead ones to /dev/null.
func Setup() error {
	devnull := -1

	for fd := 0; fd <= 2; fd++ {
		var st unix.Stat_t
		err := unix.Fstat(fd, &st)
		if err == nil {
			continue
		}
		if err != unix.EBADF {
			return fmt.Errorf("stat fd %d: %w", fd, err)
		}

		if devnull == -1 {
			devnull, err = unix.Open(os.DevNull, unix.O_RDWR, 0)
			if err != nil {
				return fmt.Errorf("open %s: %w", os.DevNull, err)
			}
		}
		if devnull == fd {
			// The open itself landed on the dead descriptor.
			continue
		}

		if err := unix.Dup3(devnull, fd, 0); err != nil {
			return fmt.Errorf("dup3(%d, %d): %w", devnull, fd, err)
		}
	}

	// devnull is deliberately leaked; it doesn't matter.
	return nil
}
