package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account представляет счет клиента. Баланс меняется только движком переводов.
type Account struct {
	ID         uint            `gorm:"primaryKey;autoIncrement"`
	CustomerID uint            `gorm:"column:customer_id;not null;index"`
	Customer   Customer        `gorm:"foreignKey:CustomerID;references:ID"`
	Balance    decimal.Decimal `gorm:"column:balance;type:decimal(20,2);not null;default:0"`
	CreatedAt  time.Time       `gorm:"column:created_at;not null"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;not null"`
}

func (Account) TableName() string {
	return "accounts"
}
