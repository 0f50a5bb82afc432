package sink

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/ghalamif/AegisStream/internal/domain"
	"github.com/ghalamif/AegisStream/internal/ports"
)

type TimescaleSink struct {
	db        *sql.DB
	tableName string
}

func NewTimescaleSink(db *sql.DB, table string) *TimescaleSink {
	return &TimescaleSink{db: db, tableName: table}
}

func (t *TimescaleSink) Name() string { return "timescaledb" }

func (t *TimescaleSink) WriteBatch(packets []domain.Packet) error {
	if len(packets) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(t.tableName)
	b.WriteString(" (kind, ts, temperature, pressure, x, y, z) VALUES ")

	const cols = 7
	args := make([]any, 0, len(packets)*cols)
	for i, p := range packets {
		if i > 0 {
			b.WriteString(",")
		}
		n := len(args)
		b.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7))

		row := []any{p.Kind().String(), domain.Time(p), nil, nil, nil, nil, nil}
		switch v := p.(type) {
		case domain.WeatherPacket:
			row[2], row[3] = float64(v.Temperature), int64(v.Pressure)
		case domain.VectorPacket:
			row[4], row[5], row[6] = int64(v.X), int64(v.Y), int64(v.Z)
		default:
			return fmt.Errorf("timescale sink: unsupported packet %T", p)
		}
		args = append(args, row...)
	}

	_, err := t.db.Exec(b.String(), args...)
	return err
}

// Close releases the underlying connection pool.
func (t *TimescaleSink) Close() error { return t.db.Close() }

var _ ports.Sink = (*TimescaleSink)(nil)
