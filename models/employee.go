package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Роли сотрудников
const (
	RoleAdmin  = "admin"
	RoleTeller = "teller"
)

type Employee struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	Username     string    `gorm:"column:username;unique;not null;size:50;index"`
	PasswordHash string    `gorm:"column:password_hash;not null;size:100"`
	Name         string    `gorm:"column:name;not null;size:100"`
	Role         string    `gorm:"column:role;not null;size:20"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null"`
}

func (Employee) TableName() string {
	return "employees"
}

// BeforeCreate хук для валидации перед созданием
func (e *Employee) BeforeCreate(tx *gorm.DB) error {
	if len(e.Username) < 3 || len(e.Username) > 50 {
		return errors.New("username must be between 3 and 50 characters")
	}
	if len(e.Name) < 2 || len(e.Name) > 100 {
		return errors.New("name must be between 2 and 100 characters")
	}
	if e.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if e.Role != RoleAdmin && e.Role != RoleTeller {
		return errors.New("role must be admin or teller")
	}
	return nil
}
