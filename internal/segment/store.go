package segment

import (
	"bufio"
	"io"
	"os"
	"sync"
)

const writerBufSize = 32 * 1024

// store wraps a segment's .log file with a buffered writer, batching
// syscalls behind a bufio.Writer and flushing it before any read.
type store struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
	size uint64
}

func newStore(f *os.File) (*store, error) {
	fi, err := os.Stat(f.Name())
	if err != nil {
		return nil, err
	}
	return &store{
		file: f,
		size: uint64(fi.Size()),
		buf:  bufio.NewWriterSize(f, writerBufSize),
	}, nil
}

// Append writes p to the buffered writer and returns the byte position it
// was written at. It does not reach the OS until Flush (or Sync) is
// called.
func (s *store) Append(p []byte) (pos uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos = s.size
	n, err := s.buf.Write(p)
	if err != nil {
		return 0, err
	}
	s.size += uint64(n)
	return pos, nil
}

// Flush drains the buffered writer to the OS.
func (s *store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Flush()
}

// Sync flushes and then fsyncs the underlying file.
func (s *store) Sync() error {
	if err := s.Flush(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Sync()
}

// ReadAt flushes any buffered bytes and then reads len(p) bytes starting
// at off.
func (s *store) ReadAt(p []byte, off int64) (int, error) {
	if err := s.Flush(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.ReadAt(p, off)
}

func (s *store) Size() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Truncate discards everything past size, used by recovery to cut off a
// torn trailing write.
func (s *store) Truncate(size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.buf.Flush(); err != nil {
		return err
	}
	if err := s.file.Truncate(size); err != nil {
		return err
	}
	if _, err := s.file.Seek(size, io.SeekStart); err != nil {
		return err
	}
	s.buf.Reset(s.file)
	s.size = uint64(size)
	return nil
}

func (s *store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.buf.Flush(); err != nil {
		return err
	}
	return s.file.Close()
}

func (s *store) Name() string {
	return s.file.Name()
}

// storeReaderAt adapts a store to io.Reader for sequential forward scans,
// matching log.go's originReader.
type storeReaderAt struct {
	s   *store
	off int64
}

func (r *storeReaderAt) Read(p []byte) (int, error) {
	n, err := r.s.ReadAt(p, r.off)
	r.off += int64(n)
	return n, err
}
