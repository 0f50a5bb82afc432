package ports

import (
	"time"

	"github.com/ghalamif/AegisStream/internal/domain"
)

type QuarantineID uint64

// QuarantinedFrame is a raw frame that failed checksum validation.
type QuarantinedFrame struct {
	ID   QuarantineID
	At   time.Time
	Port int
	Kind domain.Kind
	Raw  []byte
}

type Quarantine interface {
	Append(ep domain.Endpoint, raw []byte) (QuarantineID, error)
	Iterate(from QuarantineID, fn func(f QuarantinedFrame) error) error
	Stats() QuarantineStats
	Close() error
}

type QuarantineStats struct {
	Latest    QuarantineID
	SizeBytes int64
}
