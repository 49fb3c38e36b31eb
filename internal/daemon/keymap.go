package daemon

import (
	"golang.org/x/sys/unix"

	"github.com/ArrayBolt3/kloak-v2/internal/logger"
)

// onPhysicalKeymap receives the compositor's keymap descriptor for the
// physical wl_keyboard bound in bindCore and forwards it to the
// virtual keyboard, mmapping just enough to compare it byte-for-byte
// against the previously accepted keymap (spec section 4.6). The
// dedup/upload decision itself lives in virtualinput.State.UploadKeymap.
func (c *Context) onPhysicalKeymap(format uint32, fd int, size uint32) {
	defer unix.Close(fd)

	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		logger.Errorf("daemon: mmap physical keymap: %v", err)
		return
	}
	fingerprint := append([]byte(nil), data...)
	_ = unix.Munmap(data)

	if err := c.input.UploadKeymap(format, fd, size, fingerprint); err != nil {
		logger.Errorf("daemon: upload keymap: %v", err)
	}
}
