package controllers

import (
	"bankledger/middleware"
	"bankledger/utils"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/mux"
)

// NewRouter собирает маршруты публичного API
func NewRouter(auth *AuthController, accounts *AccountController, transfers *TransferController, signInLimiter *utils.RateLimiter) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Публичный маршрут для аутентификации
	router.Handle("/api/auth/signIn", middleware.RateLimitMiddleware(signInLimiter)(http.HandlerFunc(auth.SignIn))).Methods(http.MethodPost)

	// Защищенные маршруты
	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(middleware.AuthMiddleware(auth.GetJWTKey()))

	protected.HandleFunc("/customers", accounts.ListCustomers).Methods(http.MethodGet)
	protected.HandleFunc("/customers/{id}/accounts", accounts.ListCustomerAccounts).Methods(http.MethodGet)
	protected.HandleFunc("/accounts", accounts.CreateAccount).Methods(http.MethodPost)
	protected.HandleFunc("/accounts/{id}/balance", accounts.GetBalance).Methods(http.MethodGet)
	protected.HandleFunc("/accounts/{id}/transfers", transfers.GetHistory).Methods(http.MethodGet)
	protected.HandleFunc("/accounts/{id}/statement", transfers.GetStatement).Methods(http.MethodGet)
	protected.HandleFunc("/transfers", transfers.Transfer).Methods(http.MethodPost)

	return router
}

// NewOpsRouter собирает служебный gin сервер: /health открыт, /metrics требует токен
func NewOpsRouter(ops *OpsController, jwtKey []byte, limiter *utils.RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Recovery(), middleware.Logger(), middleware.CORSMiddleware(), middleware.RateLimit(limiter))

	router.GET("/health", ops.Health)
	router.GET("/metrics", middleware.Auth(jwtKey), ops.Metrics)

	return router
}
