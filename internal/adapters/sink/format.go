package sink

import (
	"time"

	"github.com/ghalamif/AegisStream/internal/domain"
)

const lineTimeLayout = "2006-01-02 15:04:05"

// FormatLine renders "<YYYY-MM-DD HH:mm:ss> -> <summary>" in loc
// (time.Local when nil).
func FormatLine(p domain.Packet, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMicro(p.Micros()).In(loc).Format(lineTimeLayout) + " -> " + p.Summary()
}
