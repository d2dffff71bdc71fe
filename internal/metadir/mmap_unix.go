//go:build unix

package metadir

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// mmapReaderAt is a read-only memory-mapped view of a file, used as
// the ReaderAt an opened MetaDirectory hands to scan stages and
// parsers so large artifacts don't need a read syscall per chunk.
type mmapReaderAt struct {
	data []byte
}

func (m *mmapReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(m.data)) {
		return 0, fmt.Errorf("metadir: offset %d out of range", off)
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *mmapReaderAt) Close() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	return err
}

// openReaderAt mmaps filePath read-only. An empty file cannot be
// mapped (mmap of a zero-length region is undefined), so that case
// falls back to a zero-byte in-memory view instead of touching mmap
// at all.
func openReaderAt(filePath string) (io.ReaderAt, io.Closer, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("metadir: open %s: %w", filePath, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, nil, fmt.Errorf("metadir: stat %s: %w", filePath, err)
	}
	if st.Size() == 0 {
		empty := &mmapReaderAt{data: []byte{}}
		return empty, closerFunc(func() error { return nil }), nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, fmt.Errorf("metadir: mmap %s: %w", filePath, err)
	}
	r := &mmapReaderAt{data: data}
	return r, r, nil
}
