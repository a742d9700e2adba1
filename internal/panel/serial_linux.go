//go:build linux

package panel

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// baudFlags maps supported serial speeds to their termios constants.
var baudFlags = map[int]uint32{
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
}

// configureSerial puts the device line into raw 8N1 mode at the given
// baud rate. Without this a freshly plugged AlarmDecoder board talks
// through whatever discipline the kernel last left on the tty.
func configureSerial(f *os.File, baud int) error {
	flag, ok := baudFlags[baud]
	if !ok {
		return fmt.Errorf("%w: unsupported baud rate %d", ErrConnectionFailed, baud)
	}

	t, err := unix.IoctlGetTermios(int(f.Fd()), unix.TCGETS)
	if err != nil {
		return fmt.Errorf("%w: reading serial attributes for %s: %w", ErrConnectionFailed, f.Name(), err)
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB | unix.CBAUD
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL | flag
	t.Ispeed = flag
	t.Ospeed = flag
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(int(f.Fd()), unix.TCSETS, t); err != nil {
		return fmt.Errorf("%w: applying serial attributes to %s: %w", ErrConnectionFailed, f.Name(), err)
	}
	return nil
}
