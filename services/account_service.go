package services

import (
	"bankledger/database"
	"bankledger/models"
	"bankledger/utils"
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CustomerDTO представляет клиента в ответах API
type CustomerDTO struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// AccountDTO представляет счет в ответах API
type AccountDTO struct {
	ID           uint            `json:"id"`
	CustomerID   uint            `json:"customerId"`
	CustomerName string          `json:"customerName,omitempty"`
	Balance      decimal.Decimal `json:"balance"`
	CreatedAt    string          `json:"createdAt"`
	UpdatedAt    string          `json:"updatedAt"`
}

// BalanceDTO представляет баланс счета
type BalanceDTO struct {
	AccountID uint            `json:"accountId"`
	Balance   decimal.Decimal `json:"balance"`
}

// AccountService предоставляет методы для работы со счетами
type AccountService struct {
	db      *database.Database
	metrics *utils.Metrics
}

// NewAccountService создает новый экземпляр AccountService
func NewAccountService(db *database.Database, metrics *utils.Metrics) *AccountService {
	return &AccountService{
		db:      db,
		metrics: metrics,
	}
}

// CreateAccount открывает счет существующему клиенту с положительным начальным взносом
func (s *AccountService) CreateAccount(ctx context.Context, customerID uint, initialDeposit decimal.Decimal) (dto *AccountDTO, err error) {
	start := time.Now()
	defer func() { utils.LogOperation("CreateAccount", start, err) }()

	if err := checkMoney(initialDeposit, ErrDepositNotPositive, ErrDepositPrecision, ErrDepositTooLarge); err != nil {
		return nil, err
	}

	var account models.Account
	err = s.db.Transaction(ctx, func(tx *gorm.DB) error {
		var customer models.Customer
		if err := tx.First(&customer, customerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCustomerNotFound
			}
			return err
		}

		account = models.Account{
			CustomerID: customer.ID,
			Customer:   customer,
			Balance:    initialDeposit,
		}
		return tx.Omit("Customer").Create(&account).Error
	})
	if err != nil {
		return nil, wrapStoreError("failed to create account", err)
	}

	s.metrics.RecordAccountCreated()
	return toAccountDTO(&account), nil
}

// GetBalance возвращает текущий баланс счета без блокировок
func (s *AccountService) GetBalance(ctx context.Context, accountID uint) (*BalanceDTO, error) {
	var account models.Account
	if err := s.db.DB.WithContext(ctx).Select("id", "balance").First(&account, accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, wrapStoreError("failed to read balance", err)
	}

	return &BalanceDTO{
		AccountID: account.ID,
		Balance:   account.Balance,
	}, nil
}

// GetAccount возвращает счет вместе с именем владельца
func (s *AccountService) GetAccount(ctx context.Context, accountID uint) (*AccountDTO, error) {
	account, err := s.db.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, wrapStoreError("failed to read account", err)
	}
	return toAccountDTO(account), nil
}

// ListCustomers возвращает всех клиентов
func (s *AccountService) ListCustomers(ctx context.Context) ([]CustomerDTO, error) {
	customers, err := s.db.ListCustomers(ctx)
	if err != nil {
		return nil, wrapStoreError("failed to list customers", err)
	}

	result := make([]CustomerDTO, 0, len(customers))
	for _, c := range customers {
		result = append(result, CustomerDTO{
			ID:        c.ID,
			Name:      c.Name,
			CreatedAt: c.CreatedAt.Format(time.RFC3339),
			UpdatedAt: c.UpdatedAt.Format(time.RFC3339),
		})
	}
	return result, nil
}

// ListCustomerAccounts возвращает счета клиента
func (s *AccountService) ListCustomerAccounts(ctx context.Context, customerID uint) ([]AccountDTO, error) {
	if _, err := s.db.GetCustomerByID(ctx, customerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, wrapStoreError("failed to read customer", err)
	}

	accounts, err := s.db.ListAccountsByCustomerID(ctx, customerID)
	if err != nil {
		return nil, wrapStoreError("failed to list accounts", err)
	}

	result := make([]AccountDTO, 0, len(accounts))
	for i := range accounts {
		result = append(result, *toAccountDTO(&accounts[i]))
	}
	return result, nil
}

// toAccountDTO конвертирует модель Account в DTO
func toAccountDTO(account *models.Account) *AccountDTO {
	return &AccountDTO{
		ID:           account.ID,
		CustomerID:   account.CustomerID,
		CustomerName: account.Customer.Name,
		Balance:      account.Balance,
		CreatedAt:    account.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    account.UpdatedAt.Format(time.RFC3339),
	}
}

// wrapStoreError сохраняет ошибки сервиса как есть, а ошибки хранилища делает Unavailable или Internal
func wrapStoreError(message string, err error) error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return UnavailableError(message, err)
	}
	return InternalError(message, err)
}
