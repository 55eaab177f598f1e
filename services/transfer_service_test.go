package services

import (
	"bankledger/events"
	"bankledger/utils"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestTransferScenario(t *testing.T) {
	db := newTestDB(t)
	accounts := NewAccountService(db, utils.NewMetrics())
	transfers := newTestTransferService(db)
	ctx := context.Background()

	alice := newTestCustomer(t, db, "Arisha Barron")
	bob := newTestCustomer(t, db, "Branden Gibson")

	first, err := accounts.CreateAccount(ctx, alice.ID, dec("1000.50"))
	if err != nil {
		t.Fatal(err)
	}
	if !first.Balance.Equal(dec("1000.50")) {
		t.Fatalf("balance = %s, want 1000.50", first.Balance)
	}
	second := newTestAccount(t, db, bob.ID, "0")

	result, err := transfers.Transfer(ctx, first.ID, second.ID, dec("250"))
	if err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	if !result.FromAccount.Balance.Equal(dec("750.50")) || !result.ToAccount.Balance.Equal(dec("250")) {
		t.Errorf("post-transfer balances = %s / %s, want 750.50 / 250", result.FromAccount.Balance, result.ToAccount.Balance)
	}
	if !result.Transfer.Amount.Equal(dec("250")) || result.Transfer.FromAccountID != first.ID || result.Transfer.ToAccountID != second.ID {
		t.Errorf("unexpected transfer: %+v", result.Transfer)
	}
	if result.FromAccount.CustomerName != "Arisha Barron" || result.ToAccount.CustomerName != "Branden Gibson" {
		t.Errorf("unexpected owners: %q / %q", result.FromAccount.CustomerName, result.ToAccount.CustomerName)
	}
	if n := countTransfers(t, db); n != 1 {
		t.Fatalf("transfers = %d, want 1", n)
	}

	if _, err := transfers.Transfer(ctx, first.ID, second.ID, dec("1000")); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := balanceOf(t, db, first.ID); !got.Equal(dec("750.50")) {
		t.Errorf("source balance = %s, want 750.50", got)
	}
	if got := balanceOf(t, db, second.ID); !got.Equal(dec("250")) {
		t.Errorf("destination balance = %s, want 250", got)
	}

	if _, err := transfers.Transfer(ctx, first.ID, first.ID, dec("10")); !errors.Is(err, ErrSameAccount) {
		t.Fatalf("expected ErrSameAccount, got %v", err)
	}
	if n := countTransfers(t, db); n != 1 {
		t.Errorf("transfers = %d, want 1", n)
	}
}

func TestTransferValidationOrder(t *testing.T) {
	db := newTestDB(t)
	transfers := newTestTransferService(db)
	customer := newTestCustomer(t, db, "Rhonda Church")
	rich := newTestAccount(t, db, customer.ID, "100")
	poor := newTestAccount(t, db, customer.ID, "5")
	const missing = 9999

	tests := []struct {
		name     string
		from, to uint
		amount   string
		wantErr  error
		wantKind ErrorKind
	}{
		{"нулевая сумма раньше поиска счетов", missing, missing + 1, "0", ErrAmountNotPositive, KindInvalidArgument},
		{"отрицательная сумма", rich.ID, poor.ID, "-1", ErrAmountNotPositive, KindInvalidArgument},
		{"тот же счет без поиска", missing, missing, "10", ErrSameAccount, KindInvalidArgument},
		{"тот же счет с достаточным балансом", rich.ID, rich.ID, "1", ErrSameAccount, KindInvalidArgument},
		{"нет источника и получателя", missing, missing + 1, "10", ErrSourceNotFound, KindNotFound},
		{"нет источника", missing, rich.ID, "10", ErrSourceNotFound, KindNotFound},
		{"нет получателя", rich.ID, missing, "10", ErrDestinationNotFound, KindNotFound},
		{"нет получателя при нехватке средств", poor.ID, missing, "10", ErrDestinationNotFound, KindNotFound},
		{"недостаточно средств", poor.ID, rich.ID, "5.01", ErrInsufficientFunds, KindInvalidArgument},
		{"доли копейки", rich.ID, poor.ID, "0.005", ErrAmountPrecision, KindInvalidArgument},
		{"доли копейки раньше сравнения счетов", missing, missing, "0.004", ErrAmountPrecision, KindInvalidArgument},
		{"сумма шире numeric(20,2)", rich.ID, poor.ID, "1000000000000000000", ErrAmountTooLarge, KindInvalidArgument},
		{"огромная экспонента без поиска счетов", missing, missing, "1e300000000", ErrAmountTooLarge, KindInvalidArgument},
		{"огромная дробная часть", rich.ID, poor.ID, "1e-300000000", ErrAmountPrecision, KindInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := transfers.Transfer(context.Background(), tt.from, tt.to, dec(tt.amount))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if KindOf(err) != tt.wantKind {
				t.Errorf("kind = %v, want %v", KindOf(err), tt.wantKind)
			}
		})
	}

	if got := balanceOf(t, db, rich.ID); !got.Equal(dec("100")) {
		t.Errorf("rich balance = %s, want 100", got)
	}
	if got := balanceOf(t, db, poor.ID); !got.Equal(dec("5")) {
		t.Errorf("poor balance = %s, want 5", got)
	}
	if n := countTransfers(t, db); n != 0 {
		t.Errorf("transfers = %d, want 0", n)
	}
}

func TestTransferMoneyBounds(t *testing.T) {
	db := newTestDB(t)
	transfers := newTestTransferService(db)
	customer := newTestCustomer(t, db, "Rhonda Church")
	source := newTestAccount(t, db, customer.ID, "10")
	full := newTestAccount(t, db, customer.ID, "999999999999999999")
	plain := newTestAccount(t, db, customer.ID, "0")

	t.Run("нули после копеек допустимы", func(t *testing.T) {
		result, err := transfers.Transfer(context.Background(), source.ID, plain.ID, dec("1.000"))
		if err != nil {
			t.Fatalf("Transfer() error = %v", err)
		}
		if !result.Transfer.Amount.Equal(dec("1")) || !result.FromAccount.Balance.Equal(dec("9")) {
			t.Errorf("unexpected result: %+v", result)
		}
	})

	t.Run("переполнение баланса получателя", func(t *testing.T) {
		_, err := transfers.Transfer(context.Background(), source.ID, full.ID, dec("1"))
		if !errors.Is(err, ErrBalanceLimit) || KindOf(err) != KindInvalidArgument {
			t.Fatalf("error = %v, want ErrBalanceLimit", err)
		}
		if got := balanceOf(t, db, source.ID); !got.Equal(dec("9")) {
			t.Errorf("source balance = %s, want 9", got)
		}
		if got := balanceOf(t, db, full.ID); !got.Equal(dec("999999999999999999")) {
			t.Errorf("destination balance = %s", got)
		}
	})

	if n := countTransfers(t, db); n != 1 {
		t.Errorf("transfers = %d, want 1", n)
	}
}

// Баланс источника меняется между блокирующим чтением и списанием:
// условное списание не находит строку, и вся транзакция откатывается.
func TestTransferGuardedDebit(t *testing.T) {
	db := newTestDB(t)
	transfers := newTestTransferService(db)
	customer := newTestCustomer(t, db, "Georgina Hazel")
	source := newTestAccount(t, db, customer.ID, "100")
	destination := newTestAccount(t, db, customer.ID, "0")

	var once sync.Once
	err := db.DB.Callback().Update().Before("gorm:update").Register("test:drain_source", func(tx *gorm.DB) {
		if tx.Statement.Table != "accounts" {
			return
		}
		once.Do(func() {
			// Тот же пул соединений, то есть та же транзакция
			if err := tx.Session(&gorm.Session{NewDB: true}).
				Exec("UPDATE accounts SET balance = ? WHERE id = ?", 10, source.ID).Error; err != nil {
				t.Errorf("drain source: %v", err)
			}
		})
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	_, err = transfers.Transfer(context.Background(), source.ID, destination.ID, dec("60"))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("error = %v, want ErrInsufficientFunds", err)
	}

	if got := balanceOf(t, db, source.ID); !got.Equal(dec("100")) {
		t.Errorf("source balance = %s, want 100 after rollback", got)
	}
	if got := balanceOf(t, db, destination.ID); !got.IsZero() {
		t.Errorf("destination balance = %s, want 0", got)
	}
	if n := countTransfers(t, db); n != 0 {
		t.Errorf("transfers = %d, want 0", n)
	}
}

func TestTransferConservesFunds(t *testing.T) {
	db := newTestDB(t)
	transfers := newTestTransferService(db)
	customer := newTestCustomer(t, db, "Georgina Hazel")
	a := newTestAccount(t, db, customer.ID, "500")
	b := newTestAccount(t, db, customer.ID, "20.25")

	// Нечетные шаги идут со счета b обратно на a
	amounts := []string{"100", "20.25", "0.5", "100.5", "120.75"}
	total := dec("520.25")
	for i, amount := range amounts {
		from, to := a.ID, b.ID
		if i%2 == 1 {
			from, to = b.ID, a.ID
		}
		before := balanceOf(t, db, from)
		result, err := transfers.Transfer(context.Background(), from, to, dec(amount))
		if err != nil {
			t.Fatalf("transfer %d (%s): %v", i, amount, err)
		}
		if !result.FromAccount.Balance.Equal(before.Sub(dec(amount))) {
			t.Errorf("transfer %d: source = %s, want %s", i, result.FromAccount.Balance, before.Sub(dec(amount)))
		}
		sum := result.FromAccount.Balance.Add(result.ToAccount.Balance)
		if !sum.Equal(total) {
			t.Errorf("transfer %d: sum = %s, want %s", i, sum, total)
		}
	}

	// Перевод всего остатка допустим и оставляет ноль
	rest := balanceOf(t, db, a.ID)
	if _, err := transfers.Transfer(context.Background(), a.ID, b.ID, rest); err != nil {
		t.Fatalf("transfer of the full balance: %v", err)
	}
	if got := balanceOf(t, db, a.ID); !got.IsZero() {
		t.Errorf("balance = %s, want 0", got)
	}
}

func TestConcurrentTransfersDoNotOverdraw(t *testing.T) {
	db := newTestDB(t)
	transfers := newTestTransferService(db)
	customer := newTestCustomer(t, db, "Arisha Barron")
	source := newTestAccount(t, db, customer.ID, "100")
	destA := newTestAccount(t, db, customer.ID, "0")
	destB := newTestAccount(t, db, customer.ID, "0")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, dest := range []uint{destA.ID, destB.ID} {
		wg.Add(1)
		go func(i int, dest uint) {
			defer wg.Done()
			_, errs[i] = transfers.Transfer(context.Background(), source.ID, dest, dec("60"))
		}(i, dest)
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientFunds):
			insufficient++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || insufficient != 1 {
		t.Fatalf("successes = %d, insufficient = %d; want 1 and 1", ok, insufficient)
	}
	if got := balanceOf(t, db, source.ID); !got.Equal(dec("40")) {
		t.Errorf("source balance = %s, want 40", got)
	}
	received := balanceOf(t, db, destA.ID).Add(balanceOf(t, db, destB.ID))
	if !received.Equal(dec("60")) {
		t.Errorf("received = %s, want 60", received)
	}
	if n := countTransfers(t, db); n != 1 {
		t.Errorf("transfers = %d, want 1", n)
	}
}

func TestConcurrentOppositeTransfers(t *testing.T) {
	db := newTestDB(t)
	transfers := newTestTransferService(db)
	customer := newTestCustomer(t, db, "Branden Gibson")
	a := newTestAccount(t, db, customer.ID, "1000")
	b := newTestAccount(t, db, customer.ID, "1000")

	var wg sync.WaitGroup
	var mu sync.Mutex
	var failures []error
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := a.ID, b.ID
			if i%2 == 1 {
				from, to = b.ID, a.ID
			}
			if _, err := transfers.Transfer(context.Background(), from, to, dec("10")); err != nil {
				mu.Lock()
				failures = append(failures, err)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	sum := balanceOf(t, db, a.ID).Add(balanceOf(t, db, b.ID))
	if !sum.Equal(dec("2000")) {
		t.Errorf("sum = %s, want 2000", sum)
	}
	if n := countTransfers(t, db); n != 20 {
		t.Errorf("transfers = %d, want 20", n)
	}
}

func TestGetTransferHistory(t *testing.T) {
	db := newTestDB(t)
	transfers := newTestTransferService(db)
	ctx := context.Background()
	alice := newTestCustomer(t, db, "Arisha Barron")
	bob := newTestCustomer(t, db, "Branden Gibson")
	carol := newTestCustomer(t, db, "Rhonda Church")
	a := newTestAccount(t, db, alice.ID, "1000")
	b := newTestAccount(t, db, bob.ID, "1000")
	c := newTestAccount(t, db, carol.ID, "1000")

	// a: отправил 2, получил 1; перевод b -> c не касается a
	steps := []struct {
		from, to uint
		amount   string
	}{
		{a.ID, b.ID, "10"},
		{b.ID, a.ID, "20"},
		{b.ID, c.ID, "30"},
		{a.ID, c.ID, "40"},
	}
	var ids []uint
	for _, s := range steps {
		r, err := transfers.Transfer(ctx, s.from, s.to, dec(s.amount))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, r.Transfer.ID)
	}

	history, err := transfers.GetTransferHistory(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetTransferHistory() error = %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("len(history) = %d, want 3", len(history))
	}

	wantIDs := []uint{ids[3], ids[1], ids[0]}
	wantDirections := []string{DirectionSent, DirectionReceived, DirectionSent}
	for i, item := range history {
		if item.ID != wantIDs[i] {
			t.Errorf("history[%d].ID = %d, want %d", i, item.ID, wantIDs[i])
		}
		if item.Direction != wantDirections[i] {
			t.Errorf("history[%d].Direction = %s, want %s", i, item.Direction, wantDirections[i])
		}
		if i > 0 && item.CreatedAt.After(history[i-1].CreatedAt) {
			t.Errorf("history[%d] is newer than history[%d]", i, i-1)
		}
	}

	newest := history[0]
	if newest.From.AccountID != a.ID || newest.From.CustomerName != "Arisha Barron" {
		t.Errorf("newest.From = %+v", newest.From)
	}
	if newest.To.AccountID != c.ID || newest.To.CustomerName != "Rhonda Church" {
		t.Errorf("newest.To = %+v", newest.To)
	}
	if !newest.Amount.Equal(dec("40")) {
		t.Errorf("newest.Amount = %s, want 40", newest.Amount)
	}
	if history[1].From.CustomerName != "Branden Gibson" {
		t.Errorf("history[1].From = %+v", history[1].From)
	}

	empty := newTestAccount(t, db, alice.ID, "1")
	items, err := transfers.GetTransferHistory(ctx, empty.ID)
	if err != nil || len(items) != 0 {
		t.Errorf("history of untouched account = %v, %v", items, err)
	}

	if _, err := transfers.GetTransferHistory(ctx, 9999); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestGetStatement(t *testing.T) {
	db := newTestDB(t)
	transfers := newTestTransferService(db)
	ctx := context.Background()
	alice := newTestCustomer(t, db, "Arisha Barron")
	bob := newTestCustomer(t, db, "Branden Gibson")
	a := newTestAccount(t, db, alice.ID, "300")
	b := newTestAccount(t, db, bob.ID, "0")

	for _, amount := range []string{"100", "50.25"} {
		if _, err := transfers.Transfer(ctx, a.ID, b.ID, dec(amount)); err != nil {
			t.Fatal(err)
		}
	}

	account, items, err := transfers.GetStatement(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetStatement() error = %v", err)
	}
	if account.ID != a.ID || account.CustomerName != "Arisha Barron" {
		t.Errorf("account = %+v", account)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	// Баланс выписки сходится с ее же переводами
	spent := decimal.Zero
	for _, item := range items {
		if item.Direction != DirectionSent {
			t.Errorf("direction = %s, want %s", item.Direction, DirectionSent)
		}
		spent = spent.Add(item.Amount)
	}
	if !account.Balance.Add(spent).Equal(dec("300")) {
		t.Errorf("balance %s + sent %s != 300", account.Balance, spent)
	}

	if _, _, err := transfers.GetStatement(ctx, 9999); !errors.Is(err, ErrAccountNotFound) || KindOf(err) != KindNotFound {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestWithRetry(t *testing.T) {
	conflict := &pgconn.PgError{Code: pgSerializationFailure}
	deadlock := &pgconn.PgError{Code: pgDeadlockDetected}

	t.Run("повтор после конфликта", func(t *testing.T) {
		metrics := utils.NewMetrics()
		svc := NewTransferService(nil, metrics, TransferOptions{MaxRetries: 3, RetryBackoff: time.Millisecond})
		calls := 0
		err := svc.withRetry(context.Background(), func() error {
			calls++
			if calls == 1 {
				return conflict
			}
			if calls == 2 {
				return deadlock
			}
			return nil
		})
		if err != nil || calls != 3 {
			t.Fatalf("err = %v, calls = %d; want nil, 3", err, calls)
		}
		if metrics.TransferRetries != 2 {
			t.Errorf("TransferRetries = %d, want 2", metrics.TransferRetries)
		}
	})

	t.Run("исчерпание попыток", func(t *testing.T) {
		svc := NewTransferService(nil, utils.NewMetrics(), TransferOptions{MaxRetries: 2, RetryBackoff: time.Millisecond})
		calls := 0
		err := svc.withRetry(context.Background(), func() error {
			calls++
			return conflict
		})
		if KindOf(err) != KindUnavailable {
			t.Fatalf("kind = %v, want Unavailable (err = %v)", KindOf(err), err)
		}
		if calls != 2 {
			t.Errorf("calls = %d, want 2", calls)
		}
	})

	t.Run("ошибка предметной области не повторяется", func(t *testing.T) {
		svc := NewTransferService(nil, utils.NewMetrics(), TransferOptions{MaxRetries: 5})
		calls := 0
		err := svc.withRetry(context.Background(), func() error {
			calls++
			return ErrInsufficientFunds
		})
		if !errors.Is(err, ErrInsufficientFunds) || calls != 1 {
			t.Errorf("err = %v, calls = %d", err, calls)
		}
	})

	t.Run("прочие ошибки хранилища", func(t *testing.T) {
		svc := NewTransferService(nil, utils.NewMetrics(), TransferOptions{MaxRetries: 5})
		err := svc.withRetry(context.Background(), func() error {
			return context.DeadlineExceeded
		})
		if KindOf(err) != KindUnavailable {
			t.Errorf("deadline kind = %v, want Unavailable", KindOf(err))
		}
		err = svc.withRetry(context.Background(), func() error {
			return errors.New("disk full")
		})
		if KindOf(err) != KindInternal {
			t.Errorf("kind = %v, want Internal", KindOf(err))
		}
	})
}

type fakePublisher struct {
	published chan events.TransferCompletedEvent
	stream    string
	mu        sync.Mutex
}

func (p *fakePublisher) Publish(ctx context.Context, stream, eventType string, data any) error {
	p.mu.Lock()
	p.stream = stream
	p.mu.Unlock()
	p.published <- data.(events.TransferCompletedEvent)
	return nil
}

type notification struct {
	to, name  string
	accountID uint
	amount    decimal.Decimal
	direction string
}

type fakeNotifier struct {
	sent chan notification
}

func (n *fakeNotifier) SendTransferNotification(to, customerName string, accountID uint, amount decimal.Decimal, direction string) error {
	n.sent <- notification{to, customerName, accountID, amount, direction}
	return nil
}

func TestTransferPublishesAndNotifiesAfterCommit(t *testing.T) {
	db := newTestDB(t)
	publisher := &fakePublisher{published: make(chan events.TransferCompletedEvent, 1)}
	notifier := &fakeNotifier{sent: make(chan notification, 2)}
	transfers := NewTransferService(db, utils.NewMetrics(), TransferOptions{
		MaxRetries: 1,
		Publisher:  publisher,
		Stream:     "transfer-events",
		Notifier:   notifier,
	})

	withEmail := newTestCustomer(t, db, "Arisha Barron")
	if err := db.DB.Model(withEmail).Update("email", "arisha@example.com").Error; err != nil {
		t.Fatal(err)
	}
	withoutEmail := newTestCustomer(t, db, "Branden Gibson")
	from := newTestAccount(t, db, withEmail.ID, "100")
	to := newTestAccount(t, db, withoutEmail.ID, "0")

	result, err := transfers.Transfer(context.Background(), from.ID, to.ID, dec("30"))
	if err != nil {
		t.Fatal(err)
	}

	select {
	case event := <-publisher.published:
		if event.TransferID != result.Transfer.ID || !event.Amount.Equal(dec("30")) {
			t.Errorf("unexpected event: %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event was not published")
	}
	publisher.mu.Lock()
	if publisher.stream != "transfer-events" {
		t.Errorf("stream = %q", publisher.stream)
	}
	publisher.mu.Unlock()

	select {
	case n := <-notifier.sent:
		if n.to != "arisha@example.com" || n.direction != DirectionSent || n.accountID != from.ID {
			t.Errorf("unexpected notification: %+v", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not sent")
	}

	select {
	case n := <-notifier.sent:
		t.Errorf("customer without e-mail must be skipped, got %+v", n)
	case <-time.After(50 * time.Millisecond):
	}
}

type blockingNotifier struct {
	release chan struct{}
}

func (n *blockingNotifier) SendTransferNotification(to, customerName string, accountID uint, amount decimal.Decimal, direction string) error {
	<-n.release
	return nil
}

func TestDrainWaitsForNotifications(t *testing.T) {
	db := newTestDB(t)
	notifier := &blockingNotifier{release: make(chan struct{})}
	transfers := NewTransferService(db, utils.NewMetrics(), TransferOptions{MaxRetries: 1, Notifier: notifier})

	customer := newTestCustomer(t, db, "Arisha Barron")
	if err := db.DB.Model(customer).Update("email", "arisha@example.com").Error; err != nil {
		t.Fatal(err)
	}
	from := newTestAccount(t, db, customer.ID, "100")
	to := newTestAccount(t, db, customer.ID, "0")

	if _, err := transfers.Transfer(context.Background(), from.ID, to.ID, dec("10")); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := transfers.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Drain() with a stuck notifier = %v, want deadline exceeded", err)
	}

	close(notifier.release)
	ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := transfers.Drain(ctx); err != nil {
		t.Errorf("Drain() after release = %v", err)
	}
}
