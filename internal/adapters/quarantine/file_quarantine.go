package quarantine

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ghalamif/AegisStream/internal/domain"
	"github.com/ghalamif/AegisStream/internal/ports"
)

// record layout: [8 id][8 unix micros][2 port][1 kind][4 len][len raw]
const recordHeaderLen = 23

// maxRecordLen bounds a single frame; anything larger is treated as corruption.
const maxRecordLen = 1 << 16

// FileQuarantine appends frames that failed checksum validation to
// <dir>/quarantine.log so they can be inspected later.
type FileQuarantine struct {
	mu        sync.Mutex
	path      string
	file      *os.File
	writer    *bufio.Writer
	nextID    ports.QuarantineID
	sizeBytes int64
	now       func() time.Time
}

func NewFileQuarantine(dir string) (*FileQuarantine, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "quarantine.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}

	q := &FileQuarantine{
		path: path,
		file: f,
		now:  time.Now,
	}
	if err := q.scanExisting(); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.Seek(q.sizeBytes, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, err
	}
	q.writer = bufio.NewWriter(f)
	return q, nil
}

// scanExisting recovers the last id and truncates a torn tail record.
func (q *FileQuarantine) scanExisting() error {
	var (
		offset int64
		lastID ports.QuarantineID
	)
	err := readRecords(q.file, func(f ports.QuarantinedFrame, size int64) error {
		offset += size
		lastID = f.ID
		return nil
	})
	if err != nil && !errors.Is(err, errTornRecord) {
		return err
	}
	if err := q.file.Truncate(offset); err != nil {
		return err
	}
	q.sizeBytes = offset
	q.nextID = lastID
	return nil
}

func (q *FileQuarantine) Append(ep domain.Endpoint, raw []byte) (ports.QuarantineID, error) {
	if len(raw) > maxRecordLen {
		return 0, fmt.Errorf("quarantine: frame of %d bytes exceeds limit", len(raw))
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	id := q.nextID + 1

	var hdr [recordHeaderLen]byte
	binary.BigEndian.PutUint64(hdr[0:8], uint64(id))
	binary.BigEndian.PutUint64(hdr[8:16], uint64(q.now().UnixMicro()))
	binary.BigEndian.PutUint16(hdr[16:18], uint16(ep.Port))
	hdr[18] = byte(ep.Kind)
	binary.BigEndian.PutUint32(hdr[19:23], uint32(len(raw)))

	if _, err := q.writer.Write(hdr[:]); err != nil {
		return 0, err
	}
	if _, err := q.writer.Write(raw); err != nil {
		return 0, err
	}
	if err := q.writer.Flush(); err != nil {
		return 0, err
	}

	q.nextID = id
	q.sizeBytes += int64(recordHeaderLen + len(raw))
	return id, nil
}

func (q *FileQuarantine) Iterate(from ports.QuarantineID, fn func(f ports.QuarantinedFrame) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.writer.Flush(); err != nil {
		return err
	}

	f, err := os.Open(q.path)
	if err != nil {
		return err
	}
	defer f.Close()

	err = readRecords(f, func(frame ports.QuarantinedFrame, _ int64) error {
		if frame.ID < from {
			return nil
		}
		return fn(frame)
	})
	if errors.Is(err, errTornRecord) {
		return fmt.Errorf("corrupt quarantine log: %w", err)
	}
	return err
}

func (q *FileQuarantine) Stats() ports.QuarantineStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return ports.QuarantineStats{
		Latest:    q.nextID,
		SizeBytes: q.sizeBytes,
	}
}

func (q *FileQuarantine) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.file == nil {
		return nil
	}
	err := errors.Join(q.writer.Flush(), q.file.Close())
	q.file = nil
	return err
}

var errTornRecord = errors.New("torn record")

func readRecords(r io.Reader, fn func(f ports.QuarantinedFrame, size int64) error) error {
	br := bufio.NewReader(r)
	for {
		var hdr [recordHeaderLen]byte
		if _, err := io.ReadFull(br, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return errTornRecord
			}
			return fmt.Errorf("quarantine read header: %w", err)
		}
		length := binary.BigEndian.Uint32(hdr[19:23])
		if length > maxRecordLen {
			return errTornRecord
		}
		raw := make([]byte, length)
		if _, err := io.ReadFull(br, raw); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return errTornRecord
			}
			return fmt.Errorf("quarantine read body: %w", err)
		}
		frame := ports.QuarantinedFrame{
			ID:   ports.QuarantineID(binary.BigEndian.Uint64(hdr[0:8])),
			At:   time.UnixMicro(int64(binary.BigEndian.Uint64(hdr[8:16]))),
			Port: int(binary.BigEndian.Uint16(hdr[16:18])),
			Kind: domain.Kind(hdr[18]),
			Raw:  raw,
		}
		if err := fn(frame, int64(recordHeaderLen)+int64(length)); err != nil {
			return err
		}
	}
}

var _ ports.Quarantine = (*FileQuarantine)(nil)
