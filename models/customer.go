package models

import (
	"time"
)

// Customer представляет клиента банка
type Customer struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;not null;size:100"`
	Email     string    `gorm:"column:email;size:100"`
	Accounts  []Account `gorm:"foreignKey:CustomerID"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (Customer) TableName() string {
	return "customers"
}
