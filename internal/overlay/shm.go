package overlay

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/ArrayBolt3/kloak-v2/internal/rng"
)

// shmSegment is a POSIX shared-memory region backing one wl_shm_pool.
// It is created as the shared-memory object "/kloak-XXXXXXXXXX" (ten
// random alphabetic characters), i.e. the file /dev/shm/kloak-XXXXXXXXXX,
// opened, immediately unlinked so no trace of the path survives in the
// filesystem, and then sized and memory-mapped through the fd (spec
// section 6, testable property 9).
type shmSegment struct {
	fd   int
	size int64
	data []byte
}

func createShmSegment(source *rng.Source, size int64) (*shmSegment, error) {
	suffix, err := source.RandomAlphaString(10)
	if err != nil {
		return nil, fmt.Errorf("overlay: generate shm name: %w", err)
	}
	path := "/dev/shm/kloak-" + suffix

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("overlay: open shm segment %s: %w", path, err)
	}
	// Unlink immediately; the fd keeps the memory alive for the life of
	// the pool without leaving a named path behind.
	if err := unix.Unlink(path); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("overlay: unlink shm segment %s: %w", path, err)
	}

	if err := unix.Ftruncate(fd, size); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("overlay: size shm segment: %w", err)
	}

	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("overlay: mmap shm segment: %w", err)
	}

	return &shmSegment{fd: fd, size: size, data: data}, nil
}

func (s *shmSegment) close() {
	if s == nil {
		return
	}
	if s.data != nil {
		_ = unix.Munmap(s.data)
	}
	if s.fd >= 0 {
		_ = unix.Close(s.fd)
	}
}
