//go:build !unix

package metadir

import (
	"fmt"
	"io"
	"os"
)

// openReaderAt falls back to a plain file handle on platforms without
// a POSIX mmap (windows, plan9, js). Still correct, just pays a read
// syscall per access instead of page faults against a shared mapping.
func openReaderAt(filePath string) (io.ReaderAt, io.Closer, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("metadir: open %s: %w", filePath, err)
	}
	return f, f, nil
}
