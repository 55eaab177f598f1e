package main

import (
	"bankledger/config"
	"bankledger/controllers"
	"bankledger/database"
	"bankledger/events"
	"bankledger/services"
	"bankledger/utils"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

// application - собранные обработчики публичного API и служебного сервера
type application struct {
	api       http.Handler
	ops       http.Handler
	transfers *services.TransferService
}

func newApplication(cfg *config.Config, db *database.Database, opts services.TransferOptions) *application {
	metrics := utils.GetMetrics()

	employees := services.NewEmployeeService(db)
	accounts := services.NewAccountService(db, metrics)
	transfers := services.NewTransferService(db, metrics, opts)

	authController := controllers.NewAuthController(employees, cfg)
	accountController := controllers.NewAccountController(accounts)
	transferController := controllers.NewTransferController(transfers)
	opsController := controllers.NewOpsController(db, metrics)

	return &application{
		// 10 попыток входа в минуту с одного IP
		api:       controllers.NewRouter(authController, accountController, transferController, utils.NewRateLimiter(10, time.Minute)),
		ops:       controllers.NewOpsRouter(opsController, authController.GetJWTKey(), utils.NewRateLimiter(100, time.Minute)),
		transfers: transfers,
	}
}

// transferOptions подключает публикацию событий и уведомления, если они настроены
func transferOptions(cfg *config.Config) services.TransferOptions {
	opts := services.TransferOptionsFromConfig(cfg)

	if cfg.Redis.Addr != "" {
		client, err := events.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			utils.LogError("Redis недоступен, события переводов отключены: %v", err)
		} else {
			opts.Publisher = events.NewPublisher(client)
		}
	}

	if emailService := services.NewEmailService(cfg); emailService != nil {
		opts.Notifier = emailService
	}

	return opts
}

func main() {
	// Инициализируем конфигурацию
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	if cfg.Log.Dir != "" {
		if err := utils.SetupFileLogging(cfg.Log.Dir); err != nil {
			log.Fatalf("Ошибка настройки логирования: %v", err)
		}
	}

	// Инициализируем подключение к базе данных
	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("Ошибка подключения к базе данных: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Seed.Enabled {
		if err := services.Seed(ctx, db, services.NewEmployeeService(db), cfg.Seed.AdminUsername, cfg.Seed.AdminPassword); err != nil {
			log.Fatalf("Ошибка начального заполнения базы: %v", err)
		}
	}

	app := newApplication(cfg, db, transferOptions(cfg))

	servers := []*http.Server{{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           app.api,
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if cfg.Ops.Enabled {
		gin.SetMode(gin.ReleaseMode)
		servers = append(servers, &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Ops.Port),
			Handler:           app.ops,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	// Запускаем серверы
	for _, srv := range servers {
		go func(srv *http.Server) {
			utils.LogInfo("Сервер запущен на %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("Ошибка запуска сервера %s: %v", srv.Addr, err)
			}
		}(srv)
	}

	<-ctx.Done()
	utils.LogInfo("Останавливаем серверы")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			utils.LogError("Ошибка остановки сервера %s: %v", srv.Addr, err)
		}
	}

	// Новых переводов больше нет, дожидаемся событий и писем по завершенным
	if err := app.transfers.Drain(shutdownCtx); err != nil {
		utils.LogError("%v", err)
	}
}
