package sink

import (
	"bufio"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ghalamif/AegisStream/internal/domain"
	"github.com/ghalamif/AegisStream/internal/ports"
)

// FileConfig controls the durable line file and its rotation.
type FileConfig struct {
	Path       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// LineSink writes one formatted line per packet and flushes after each batch.
type LineSink struct {
	name   string
	loc    *time.Location
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
}

func NewLineSink(name string, w io.Writer, loc *time.Location) *LineSink {
	s := &LineSink{name: name, loc: loc, w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok && w != os.Stdout && w != os.Stderr {
		s.closer = c
	}
	return s
}

// NewFileSink appends lines to a lumberjack-rotated file.
func NewFileSink(cfg FileConfig, loc *time.Location) *LineSink {
	return NewLineSink("file", &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}, loc)
}

// NewConsoleSink mirrors lines to stdout (or w when non-nil).
func NewConsoleSink(w io.Writer, loc *time.Location) *LineSink {
	if w == nil {
		w = os.Stdout
	}
	return NewLineSink("console", w, loc)
}

func (s *LineSink) Name() string { return s.name }

func (s *LineSink) WriteBatch(packets []domain.Packet) error {
	if len(packets) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range packets {
		if _, err := s.w.WriteString(FormatLine(p, s.loc)); err != nil {
			return err
		}
		if err := s.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return s.w.Flush()
}

func (s *LineSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.w.Flush()
	if s.closer != nil {
		err = errors.Join(err, s.closer.Close())
	}
	return err
}

var _ ports.Sink = (*LineSink)(nil)
