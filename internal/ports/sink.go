package ports

import "github.com/ghalamif/AegisStream/internal/domain"

type Sink interface {
	WriteBatch(packets []domain.Packet) error
	Name() string
}
