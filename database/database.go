package database

import (
	"bankledger/config"
	"bankledger/models"
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Database представляет подключение к базе данных
type Database struct {
	DB *gorm.DB
}

// New оборачивает готовое подключение GORM
func New(db *gorm.DB) *Database {
	return &Database{DB: db}
}

// NewDatabase создает новое подключение к базе данных и подготавливает схему
func NewDatabase(cfg *config.Config) (*Database, error) {
	// Настраиваем логгер
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  parseLogLevel(cfg.DB.LogLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	gormCfg := &gorm.Config{
		Logger:  newLogger,
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	switch cfg.DB.Driver {
	case "sqlite":
		return openSQLite(cfg, gormCfg)
	case "postgres":
		return openPostgres(cfg, gormCfg)
	default:
		return nil, fmt.Errorf("неизвестный драйвер базы данных: %q", cfg.DB.Driver)
	}
}

func openPostgres(cfg *config.Config, gormCfg *gorm.Config) (*Database, error) {
	// Выполняем SQL миграции до открытия пула
	if cfg.DB.Migrate {
		if err := runMigrations(cfg); err != nil {
			return nil, fmt.Errorf("ошибка выполнения SQL миграций: %w", err)
		}
	}

	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN()), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	// Настраиваем пул соединений
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пула соединений: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	return &Database{DB: db}, nil
}

// openSQLite используется для локального запуска и тестов.
// SQLite допускает одного писателя, поэтому пул ограничен одним соединением.
func openSQLite(cfg *config.Config, gormCfg *gorm.Config) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(cfg.DB.DBName), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пула соединений: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	return &Database{DB: db}, nil
}

// runMigrations выполняет SQL миграции из встроенной директории migrations
func runMigrations(cfg *config.Config) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ошибка чтения миграций: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, cfg.PostgresURL())
	if err != nil {
		return fmt.Errorf("ошибка создания миграции: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("ошибка выполнения миграций: %w", err)
	}

	return nil
}

// AutoMigrate выполняет автоматическую миграцию моделей
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Customer{},
		&models.Account{},
		&models.Transfer{},
		&models.Employee{},
	)
	if err != nil {
		return fmt.Errorf("ошибка автоматической миграции: %w", err)
	}

	return nil
}

func parseLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// GetDB возвращает экземпляр GORM
func (d *Database) GetDB() *gorm.DB {
	return d.DB
}

// Close закрывает подключение к базе данных
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping проверяет доступность базы данных
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Transaction выполняет fn в одной транзакции: commit при nil, rollback при ошибке или панике
func (d *Database) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return d.DB.WithContext(ctx).Transaction(fn)
}

// ReadTransaction выполняет чтения fn в одном снимке данных.
// В postgres это REPEATABLE READ READ ONLY; в sqlite транзакция и так сериализуема.
func (d *Database) ReadTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if d.DB.Dialector.Name() == "postgres" {
		return d.DB.WithContext(ctx).Transaction(fn, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	}
	return d.DB.WithContext(ctx).Transaction(fn)
}

// Методы для работы с клиентами
func (d *Database) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	return d.DB.WithContext(ctx).Create(customer).Error
}

func (d *Database) GetCustomerByID(ctx context.Context, id uint) (*models.Customer, error) {
	var customer models.Customer
	if err := d.DB.WithContext(ctx).First(&customer, id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (d *Database) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	var customers []models.Customer
	err := d.DB.WithContext(ctx).Order("id").Find(&customers).Error
	return customers, err
}

func (d *Database) CountCustomers(ctx context.Context) (int64, error) {
	var count int64
	err := d.DB.WithContext(ctx).Model(&models.Customer{}).Count(&count).Error
	return count, err
}

// Методы для работы со счетами
func (d *Database) GetAccountByID(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	if err := d.DB.WithContext(ctx).Preload("Customer").First(&account, id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (d *Database) ListAccountsByCustomerID(ctx context.Context, customerID uint) ([]models.Account, error) {
	var accounts []models.Account
	err := d.DB.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Preload("Customer").
		Order("id").
		Find(&accounts).Error
	return accounts, err
}

// Методы для работы с сотрудниками
func (d *Database) CreateEmployee(ctx context.Context, employee *models.Employee) error {
	return d.DB.WithContext(ctx).Create(employee).Error
}

func (d *Database) GetEmployeeByUsername(ctx context.Context, username string) (*models.Employee, error) {
	var employee models.Employee
	if err := d.DB.WithContext(ctx).Where("username = ?", username).First(&employee).Error; err != nil {
		return nil, err
	}
	return &employee, nil
}
