package controllers

import (
	"bankledger/services"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// AccountController обрабатывает запросы по клиентам и счетам
type AccountController struct {
	accounts  *services.AccountService
	validator *validator.Validate
}

// CreateAccountRequest - тело POST /api/accounts
type CreateAccountRequest struct {
	CustomerID     uint            `json:"customerId" validate:"required,gt=0"`
	InitialDeposit decimal.Decimal `json:"initialDeposit"`
}

func NewAccountController(accounts *services.AccountService) *AccountController {
	return &AccountController{
		accounts:  accounts,
		validator: validator.New(),
	}
}

// ListCustomers возвращает всех клиентов банка
func (c *AccountController) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := c.accounts.ListCustomers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, customers)
}

// ListCustomerAccounts возвращает счета клиента
func (c *AccountController) ListCustomerAccounts(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathID(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	accounts, err := c.accounts.ListCustomerAccounts(r.Context(), customerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// CreateAccount открывает счет клиенту с начальным взносом
func (c *AccountController) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := decodeBody(r, c.validator, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	account, err := c.accounts.CreateAccount(r.Context(), req.CustomerID, req.InitialDeposit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// GetBalance возвращает текущий баланс счета
func (c *AccountController) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	balance, err := c.accounts.GetBalance(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}
