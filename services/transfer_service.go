package services

import (
	"bankledger/config"
	"bankledger/database"
	"bankledger/events"
	"bankledger/models"
	"bankledger/utils"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLSTATE конфликтов, после которых транзакцию перевода можно повторить
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// TransferDTO представляет выполненный перевод
type TransferDTO struct {
	ID            uint            `json:"id"`
	FromAccountID uint            `json:"fromAccountId"`
	ToAccountID   uint            `json:"toAccountId"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// TransferResult - перевод и состояние обоих счетов после него
type TransferResult struct {
	Transfer    TransferDTO `json:"transfer"`
	FromAccount AccountDTO  `json:"fromAccount"`
	ToAccount   AccountDTO  `json:"toAccount"`
}

// TransferParty - сторона перевода в истории
type TransferParty struct {
	AccountID    uint   `json:"accountId"`
	CustomerName string `json:"customerName"`
}

// TransferHistoryItem - строка истории переводов счета
type TransferHistoryItem struct {
	ID        uint            `json:"id"`
	Direction string          `json:"direction"`
	From      TransferParty   `json:"from"`
	To        TransferParty   `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"createdAt"`
}

// EventPublisher публикует события после фиксации перевода
type EventPublisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// TransferNotifier уведомляет клиентов о движении средств
type TransferNotifier interface {
	SendTransferNotification(to, customerName string, accountID uint, amount decimal.Decimal, direction string) error
}

// TransferOptions настраивает повторы, таймаут и побочные эффекты после фиксации
type TransferOptions struct {
	MaxRetries   int
	RetryBackoff time.Duration
	Timeout      time.Duration

	Publisher EventPublisher
	Stream    string
	Notifier  TransferNotifier
}

// TransferOptionsFromConfig берет параметры повторов и таймаута из конфигурации
func TransferOptionsFromConfig(cfg *config.Config) TransferOptions {
	return TransferOptions{
		MaxRetries:   cfg.Transfer.MaxRetries,
		RetryBackoff: cfg.Transfer.RetryBackoff,
		Timeout:      cfg.Transfer.Timeout,
		Stream:       cfg.Redis.Stream,
	}
}

// TransferService выполняет переводы между счетами и строит историю переводов
type TransferService struct {
	db      *database.Database
	metrics *utils.Metrics
	opts    TransferOptions

	// pending учитывает незавершенные afterCommit
	pending sync.WaitGroup
}

// NewTransferService создает новый экземпляр TransferService
func NewTransferService(db *database.Database, metrics *utils.Metrics, opts TransferOptions) *TransferService {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	return &TransferService{
		db:      db,
		metrics: metrics,
		opts:    opts,
	}
}

// committedTransfer - строки, записанные одной транзакцией перевода
type committedTransfer struct {
	transfer models.Transfer
	from     models.Account
	to       models.Account
}

// Transfer атомарно переводит amount со счета fromID на счет toID.
// Проверки: сумма > 0 и помещается в numeric(20,2), разные счета,
// затем внутри транзакции: источник, получатель, достаточность средств, предел баланса получателя.
func (s *TransferService) Transfer(ctx context.Context, fromID, toID uint, amount decimal.Decimal) (result *TransferResult, err error) {
	start := time.Now()
	operation := fmt.Sprintf("Transfer %d->%d", fromID, toID)
	defer func() {
		if err != nil {
			s.metrics.RecordTransfer(MessageOf(err))
		} else {
			s.metrics.RecordTransfer("")
		}
		utils.LogOperation(operation, start, err)
	}()

	if err := checkMoney(amount, ErrAmountNotPositive, ErrAmountPrecision, ErrAmountTooLarge); err != nil {
		return nil, err
	}
	// Сумму пишем в лог только после проверки величины
	operation += " " + amount.StringFixed(moneyScale)

	if fromID == toID {
		return nil, ErrSameAccount
	}

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	var committed *committedTransfer
	err = s.withRetry(ctx, func() error {
		c, err := s.transferOnce(ctx, fromID, toID, amount)
		if err != nil {
			return err
		}
		committed = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.pending.Add(1)
	go func(c committedTransfer) {
		defer s.pending.Done()
		s.afterCommit(c)
	}(*committed)

	return &TransferResult{
		Transfer:    toTransferDTO(&committed.transfer),
		FromAccount: *toAccountDTO(&committed.from),
		ToAccount:   *toAccountDTO(&committed.to),
	}, nil
}

// transferOnce - одна попытка перевода в одной транзакции хранилища
func (s *TransferService) transferOnce(ctx context.Context, fromID, toID uint, amount decimal.Decimal) (*committedTransfer, error) {
	var committed committedTransfer

	err := s.db.Transaction(ctx, func(tx *gorm.DB) error {
		// Блокируем обе строки в порядке id, чтобы встречные переводы не ждали друг друга по кругу
		var locked []models.Account
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ?", []uint{fromID, toID}).
			Order("id").
			Find(&locked).Error; err != nil {
			return err
		}

		source := findAccount(locked, fromID)
		if source == nil {
			return ErrSourceNotFound
		}
		destination := findAccount(locked, toID)
		if destination == nil {
			return ErrDestinationNotFound
		}
		if source.Balance.LessThan(amount) {
			return ErrInsufficientFunds
		}
		if destination.Balance.Add(amount).GreaterThan(MaxMoney) {
			return ErrBalanceLimit
		}

		now := tx.NowFunc()

		// Условное списание: баланс не может уйти в минус даже без блокировки строки
		debit := tx.Model(&models.Account{}).
			Where("id = ? AND balance >= ?", fromID, amount).
			Updates(map[string]interface{}{
				"balance":    gorm.Expr("balance - ?", amount),
				"updated_at": now,
			})
		if debit.Error != nil {
			return debit.Error
		}
		if debit.RowsAffected == 0 {
			return ErrInsufficientFunds
		}

		credit := tx.Model(&models.Account{}).
			Where("id = ?", toID).
			Updates(map[string]interface{}{
				"balance":    gorm.Expr("balance + ?", amount),
				"updated_at": now,
			})
		if credit.Error != nil {
			return credit.Error
		}
		if credit.RowsAffected == 0 {
			return ErrDestinationNotFound
		}

		committed.transfer = models.Transfer{
			FromAccountID: fromID,
			ToAccountID:   toID,
			Amount:        amount,
			CreatedAt:     now,
		}
		if err := tx.Omit(clause.Associations).Create(&committed.transfer).Error; err != nil {
			return err
		}

		if err := tx.Preload("Customer").First(&committed.from, fromID).Error; err != nil {
			return err
		}
		return tx.Preload("Customer").First(&committed.to, toID).Error
	})
	if err != nil {
		return nil, err
	}

	return &committed, nil
}

// withRetry повторяет fn при конфликтах сериализации и взаимоблокировках
func (s *TransferService) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return wrapStoreError("failed to execute transfer", err)
		}
		lastErr = err
		if attempt == s.opts.MaxRetries {
			break
		}

		s.metrics.RecordTransferRetry()
		utils.LogDebug("transfer conflict, attempt %d of %d: %v", attempt, s.opts.MaxRetries, err)

		select {
		case <-ctx.Done():
			return UnavailableError("transfer was interrupted, retry later", ctx.Err())
		case <-time.After(time.Duration(attempt) * s.opts.RetryBackoff):
		}
	}
	return UnavailableError("transfer could not be completed, retry later", lastErr)
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return false
}

// Drain ждет завершения публикаций и уведомлений по уже выполненным переводам
func (s *TransferService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("не дождались уведомлений о переводах: %w", ctx.Err())
	}
}

// afterCommit публикует событие и рассылает уведомления; ошибки только логируются
func (s *TransferService) afterCommit(c committedTransfer) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.opts.Publisher != nil {
		event := events.TransferCompletedEvent{
			TransferID:    c.transfer.ID,
			FromAccountID: c.transfer.FromAccountID,
			ToAccountID:   c.transfer.ToAccountID,
			Amount:        c.transfer.Amount,
			CreatedAt:     c.transfer.CreatedAt,
		}
		if err := s.opts.Publisher.Publish(ctx, s.opts.Stream, events.TransferCompleted, event); err != nil {
			s.metrics.RecordNotificationFailure()
			utils.LogError("Failed to publish %s event for transfer %d: %v", events.TransferCompleted, c.transfer.ID, err)
		}
	}

	if s.opts.Notifier == nil {
		return
	}
	notify := func(account models.Account, direction string) {
		if account.Customer.Email == "" {
			return
		}
		if err := s.opts.Notifier.SendTransferNotification(account.Customer.Email, account.Customer.Name, account.ID, c.transfer.Amount, direction); err != nil {
			s.metrics.RecordNotificationFailure()
			utils.LogError("Ошибка отправки уведомления по счету %d: %v", account.ID, err)
		}
	}
	notify(c.from, DirectionSent)
	notify(c.to, DirectionReceived)
}

// GetTransferHistory возвращает переводы счета, от новых к старым
func (s *TransferService) GetTransferHistory(ctx context.Context, accountID uint) ([]TransferHistoryItem, error) {
	var account models.Account
	if err := s.db.DB.WithContext(ctx).Select("id").First(&account, accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, wrapStoreError("failed to read account", err)
	}

	items, err := transferHistory(s.db.DB.WithContext(ctx), accountID)
	if err != nil {
		return nil, wrapStoreError("failed to read transfer history", err)
	}
	return items, nil
}

// GetStatement читает счет и его историю из одного снимка, чтобы баланс сходился с переводами
func (s *TransferService) GetStatement(ctx context.Context, accountID uint) (*AccountDTO, []TransferHistoryItem, error) {
	var (
		account models.Account
		items   []TransferHistoryItem
	)
	err := s.db.ReadTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Preload("Customer").First(&account, accountID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		var err error
		items, err = transferHistory(tx, accountID)
		return err
	})
	if err != nil {
		return nil, nil, wrapStoreError("failed to read statement", err)
	}
	return toAccountDTO(&account), items, nil
}

func transferHistory(db *gorm.DB, accountID uint) ([]TransferHistoryItem, error) {
	var transfers []models.Transfer
	if err := db.
		Where("from_account_id = ? OR to_account_id = ?", accountID, accountID).
		Preload("FromAccount.Customer").
		Preload("ToAccount.Customer").
		Order("created_at DESC").
		Order("id DESC").
		Find(&transfers).Error; err != nil {
		return nil, err
	}

	items := make([]TransferHistoryItem, 0, len(transfers))
	for _, t := range transfers {
		direction := DirectionReceived
		if t.FromAccountID == accountID {
			direction = DirectionSent
		}
		items = append(items, TransferHistoryItem{
			ID:        t.ID,
			Direction: direction,
			From: TransferParty{
				AccountID:    t.FromAccountID,
				CustomerName: t.FromAccount.Customer.Name,
			},
			To: TransferParty{
				AccountID:    t.ToAccountID,
				CustomerName: t.ToAccount.Customer.Name,
			},
			Amount:    t.Amount,
			CreatedAt: t.CreatedAt,
		})
	}
	return items, nil
}

func findAccount(accounts []models.Account, id uint) *models.Account {
	for i := range accounts {
		if accounts[i].ID == id {
			return &accounts[i]
		}
	}
	return nil
}

// toTransferDTO конвертирует модель Transfer в DTO
func toTransferDTO(t *models.Transfer) TransferDTO {
	return TransferDTO{
		ID:            t.ID,
		FromAccountID: t.FromAccountID,
		ToAccountID:   t.ToAccountID,
		Amount:        t.Amount,
		CreatedAt:     t.CreatedAt,
	}
}
