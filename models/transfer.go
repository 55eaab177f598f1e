package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transfer - неизменяемая запись о выполненном переводе
type Transfer struct {
	ID            uint            `gorm:"primaryKey;autoIncrement"`
	FromAccountID uint            `gorm:"column:from_account_id;not null;index"`
	FromAccount   Account         `gorm:"foreignKey:FromAccountID;references:ID"`
	ToAccountID   uint            `gorm:"column:to_account_id;not null;index"`
	ToAccount     Account         `gorm:"foreignKey:ToAccountID;references:ID"`
	Amount        decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;not null;index"`
}

func (Transfer) TableName() string {
	return "transfers"
}
