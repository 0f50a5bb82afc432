package sink

import (
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ghalamif/AegisStream/internal/domain"
)

func TestTimescaleSinkWriteBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewTimescaleSink(db, "sensor_packets")
	ts := int64(1_670_000_000_000_000)

	packets := []domain.Packet{
		domain.WeatherPacket{Timestamp: ts, Temperature: 25.5, Pressure: 760},
		domain.VectorPacket{Timestamp: ts + 1, X: 1, Y: -2, Z: 3},
	}

	expectedQuery := regexp.QuoteMeta("INSERT INTO sensor_packets (kind, ts, temperature, pressure, x, y, z) VALUES ($1,$2,$3,$4,$5,$6,$7),($8,$9,$10,$11,$12,$13,$14)")
	mock.ExpectExec(expectedQuery).
		WithArgs(
			"weather", time.UnixMicro(ts).UTC(), float64(25.5), int64(760), nil, nil, nil,
			"vector", time.UnixMicro(ts+1).UTC(), nil, nil, int64(1), int64(-2), int64(3),
		).
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := sink.WriteBatch(packets); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimescaleSinkWriteBatchNoPackets(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	sink := NewTimescaleSink(db, "sensor_packets")
	if err := sink.WriteBatch(nil); err != nil {
		t.Fatalf("expected nil error for empty batch, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTimescaleSinkName(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	sink := NewTimescaleSink(db, "sensor_packets")
	if sink.Name() != "timescaledb" {
		t.Fatalf("expected sink name timescaledb, got %s", sink.Name())
	}
}
