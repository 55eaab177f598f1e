package services

import (
	"bankledger/config"
	"bankledger/database"
	"bankledger/models"
	"bankledger/utils"
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newTestDB(t *testing.T) *database.Database {
	t.Helper()

	cfg := &config.Config{}
	cfg.DB.Driver = "sqlite"
	cfg.DB.DBName = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	cfg.DB.LogLevel = "silent"

	db, err := database.NewDatabase(cfg)
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestCustomer(t *testing.T, db *database.Database, name string) *models.Customer {
	t.Helper()
	customer := &models.Customer{Name: name}
	if err := db.CreateCustomer(context.Background(), customer); err != nil {
		t.Fatalf("CreateCustomer() error = %v", err)
	}
	return customer
}

// newTestAccount пишет счет напрямую, чтобы можно было получить нулевой баланс
func newTestAccount(t *testing.T, db *database.Database, customerID uint, balance string) *models.Account {
	t.Helper()
	account := &models.Account{CustomerID: customerID, Balance: decimal.RequireFromString(balance)}
	if err := db.DB.Omit("Customer").Create(account).Error; err != nil {
		t.Fatalf("create account: %v", err)
	}
	return account
}

func newTestTransferService(db *database.Database) *TransferService {
	return NewTransferService(db, utils.NewMetrics(), TransferOptions{MaxRetries: 3})
}

func balanceOf(t *testing.T, db *database.Database, accountID uint) decimal.Decimal {
	t.Helper()
	var account models.Account
	if err := db.DB.First(&account, accountID).Error; err != nil {
		t.Fatalf("load account %d: %v", accountID, err)
	}
	return account.Balance
}

func countTransfers(t *testing.T, db *database.Database) int64 {
	t.Helper()
	var count int64
	if err := db.DB.Model(&models.Transfer{}).Count(&count).Error; err != nil {
		t.Fatalf("count transfers: %v", err)
	}
	return count
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
