package services

import (
	"bankledger/database"
	"bankledger/models"
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type EmployeeService struct {
	db        *database.Database
	validator *validator.Validate
}

type EmployeeDTO struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type CreateEmployeeRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50,alphanum"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=admin teller"`
}

func NewEmployeeService(db *database.Database) *EmployeeService {
	return &EmployeeService{
		db:        db,
		validator: validator.New(),
	}
}

// CreateEmployee создает нового сотрудника с захешированным паролем
func (s *EmployeeService) CreateEmployee(ctx context.Context, req CreateEmployeeRequest) (*models.Employee, error) {
	if err := s.validator.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return nil, InternalError("failed to validate employee", err)
		}
		var errorMessages []string
		for _, e := range validationErrors {
			errorMessages = append(errorMessages, "field "+e.Field()+" failed on "+e.Tag())
		}
		return nil, InvalidArgumentError(strings.Join(errorMessages, "; "))
	}

	// Проверяем, существует ли сотрудник с таким логином
	if _, err := s.db.GetEmployeeByUsername(ctx, req.Username); err == nil {
		return nil, InvalidArgumentError("employee with this username already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, wrapStoreError("failed to read employee", err)
	}

	// Хешируем пароль
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, InternalError("failed to hash password", err)
	}

	employee := &models.Employee{
		Username:     req.Username,
		Name:         req.Name,
		Role:         req.Role,
		PasswordHash: string(hashedPassword),
	}
	if err := s.db.CreateEmployee(ctx, employee); err != nil {
		return nil, wrapStoreError("failed to create employee", err)
	}

	return employee, nil
}

// Authenticate проверяет логин и пароль. Не сообщает, что именно неверно.
func (s *EmployeeService) Authenticate(ctx context.Context, username, password string) (*models.Employee, error) {
	employee, err := s.db.GetEmployeeByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, wrapStoreError("failed to read employee", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(employee.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return employee, nil
}

func ToEmployeeDTO(e *models.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:       e.ID,
		Username: e.Username,
		Name:     e.Name,
		Role:     e.Role,
	}
}
