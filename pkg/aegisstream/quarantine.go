package aegisstream

import (
	"github.com/ghalamif/AegisStream/internal/adapters/quarantine"
	"github.com/ghalamif/AegisStream/internal/app/session"
)

// OpenQuarantine opens (or creates) the corrupted-frame log in dir.
func OpenQuarantine(dir string) (Quarantine, error) {
	q, err := quarantine.NewFileQuarantine(dir)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// HexDump renders raw frame bytes the way the sessions log them.
func HexDump(b []byte) string {
	return session.HexDump(b)
}
