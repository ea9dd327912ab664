package tail

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Reader maintains a durable byte cursor over a growing detection log,
// yielding only fully terminated lines appended since the last poll.
// It tolerates the file not existing yet, being truncated, or being
// replaced; all three are recovered by rerunning the startup sequence.
type Reader struct {
	path     string
	file     *os.File
	cursor   int64
	header   []string
	waitTick time.Duration
	logger   *logrus.Logger
}

// NewReader creates a reader for the given file path. The reader owns
// no file handle until Open is called.
func NewReader(path string, logger *logrus.Logger) *Reader {
	return &Reader{
		path:     path,
		waitTick: 1 * time.Second,
		logger:   logger,
	}
}

// SetWaitTick overrides the poll interval used while waiting for the
// file to appear
func (r *Reader) SetWaitTick(d time.Duration) {
	r.waitTick = d
}

// Open blocks until the file exists, reads and discards the first line
// as a header, and positions the cursor at end-of-file. Only the
// context can abort the wait.
func (r *Reader) Open(ctx context.Context) error {
	for {
		if _, err := os.Stat(r.path); err == nil {
			break
		}
		r.logger.Infof("Waiting for detection log %s...", r.path)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.waitTick):
		}
	}

	file, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %v", r.path, err)
	}

	headerLine, err := bufio.NewReader(file).ReadString('\n')
	if err != nil && err != io.EOF {
		file.Close()
		return fmt.Errorf("failed to read header of %s: %v", r.path, err)
	}
	r.header = splitHeader(headerLine)

	end, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to seek %s: %v", r.path, err)
	}

	r.file = file
	r.cursor = end
	r.logger.Infof("Tailing %s from offset %d (header: %s)", r.path, r.cursor, strings.Join(r.header, ","))
	return nil
}

// Header returns the field names observed on the first line, lowercased
// and trimmed. Empty when the file carried no header yet.
func (r *Reader) Header() []string {
	return r.header
}

// Poll returns all complete lines appended since the last call and
// advances the cursor past them. A partial trailing line stays
// unconsumed until its newline arrives. The rotated flag reports that
// the file shrank or vanished and the reader reopened it; the header
// may have changed in that case.
func (r *Reader) Poll(ctx context.Context) (lines []string, rotated bool, err error) {
	if r.file == nil {
		return nil, false, fmt.Errorf("reader is not open")
	}

	info, err := os.Stat(r.path)
	if err != nil || info.Size() < r.cursor {
		// File shrank or was replaced: close and rerun the startup
		// sequence, which waits for the file and re-seeks to its end.
		r.logger.Warnf("Detection log %s rotated or truncated, reopening", r.path)
		r.file.Close()
		r.file = nil
		if err := r.Open(ctx); err != nil {
			return nil, true, err
		}
		return nil, true, nil
	}

	if info.Size() == r.cursor {
		return nil, false, nil
	}

	if _, err := r.file.Seek(r.cursor, io.SeekStart); err != nil {
		return nil, false, fmt.Errorf("failed to seek %s: %v", r.path, err)
	}

	buf := make([]byte, info.Size()-r.cursor)
	n, err := io.ReadFull(r.file, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, false, fmt.Errorf("failed to read %s: %v", r.path, err)
	}
	buf = buf[:n]

	// Consume only up to the last newline; an unterminated remainder is
	// a partial write still in flight.
	last := bytes.LastIndexByte(buf, '\n')
	if last < 0 {
		return nil, false, nil
	}
	consumed := buf[:last+1]
	r.cursor += int64(last + 1)

	for _, line := range strings.Split(string(consumed), "\n") {
		if line != "" {
			lines = append(lines, strings.TrimSuffix(line, "\r"))
		}
	}
	return lines, false, nil
}

// Close releases the file handle
func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func splitHeader(line string) []string {
	var fields []string
	for _, f := range strings.Split(strings.TrimRight(line, "\r\n"), ",") {
		fields = append(fields, strings.ToLower(strings.TrimSpace(f)))
	}
	return fields
}
