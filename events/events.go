package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Типы событий реестра
const (
	TransferCompleted = "transfer.completed"
)

// Event - конверт события в потоке Redis
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// TransferCompletedEvent публикуется после фиксации перевода
type TransferCompletedEvent struct {
	TransferID    uint            `json:"transferId"`
	FromAccountID uint            `json:"fromAccountId"`
	ToAccountID   uint            `json:"toAccountId"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedAt     time.Time       `json:"createdAt"`
}
