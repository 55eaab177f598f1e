package controllers

import (
	"bankledger/config"
	"bankledger/middleware"
	"bankledger/services"
	"bankledger/utils"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// неудачных попыток входа на один логин до блокировки
const (
	signInAttempts = 5
	signInLockout  = 15 * time.Minute
)

type AuthController struct {
	employees *services.EmployeeService
	failures  *utils.RateLimiter
	validate  *validator.Validate
	jwtKey    []byte
	tokenTTL  time.Duration
}

type SignInRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type SignInResponse struct {
	Token     string               `json:"token"`
	ExpiresAt time.Time            `json:"expiresAt"`
	Employee  services.EmployeeDTO `json:"employee"`
}

func NewAuthController(employees *services.EmployeeService, cfg *config.Config) *AuthController {
	return &AuthController{
		employees: employees,
		failures:  utils.NewRateLimiter(signInAttempts, signInLockout),
		validate:  validator.New(),
		jwtKey:    []byte(cfg.JWT.SecretKey),
		tokenTTL:  time.Duration(cfg.JWT.ExpiresIn) * time.Hour,
	}
}

// SignIn обрабатывает вход сотрудника и выдает JWT токен
func (c *AuthController) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := decodeBody(r, c.validate, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	if c.failures.Blocked(req.Username) {
		w.Header().Set("Retry-After", strconv.Itoa(int(c.failures.RetryAfter(req.Username).Seconds())))
		writeMessage(w, http.StatusTooManyRequests, "too many failed sign-in attempts")
		return
	}

	employee, err := c.employees.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if services.KindOf(err) == services.KindInvalidArgument {
			c.failures.Record(req.Username)
			writeMessage(w, http.StatusUnauthorized, services.MessageOf(err))
			return
		}
		writeError(w, err)
		return
	}

	c.failures.Reset(req.Username)

	token, expiresAt, err := middleware.NewToken(c.jwtKey, employee, c.tokenTTL)
	if err != nil {
		writeError(w, services.InternalError("failed to generate token", err))
		return
	}

	writeJSON(w, http.StatusOK, SignInResponse{
		Token:     token,
		ExpiresAt: expiresAt.UTC(),
		Employee:  services.ToEmployeeDTO(employee),
	})
}

// GetJWTKey возвращает ключ для JWT
func (c *AuthController) GetJWTKey() []byte {
	return c.jwtKey
}
