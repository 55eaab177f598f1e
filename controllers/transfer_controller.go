package controllers

import (
	"bankledger/services"
	"bankledger/statement"
	"bankledger/utils"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// TransferController обрабатывает переводы, историю и выписки
type TransferController struct {
	transfers *services.TransferService
	validator *validator.Validate
}

// TransferRequest - тело POST /api/transfers
type TransferRequest struct {
	FromAccountID uint            `json:"fromAccountId" validate:"required,gt=0"`
	ToAccountID   uint            `json:"toAccountId" validate:"required,gt=0"`
	Amount        decimal.Decimal `json:"amount"`
}

func NewTransferController(transfers *services.TransferService) *TransferController {
	return &TransferController{
		transfers: transfers,
		validator: validator.New(),
	}
}

// Transfer выполняет перевод между счетами
func (c *TransferController) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := decodeBody(r, c.validator, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := c.transfers.Transfer(r.Context(), req.FromAccountID, req.ToAccountID, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// GetHistory возвращает историю переводов счета
func (c *TransferController) GetHistory(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	history, err := c.transfers.GetTransferHistory(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// GetStatement отдает выписку по счету в XML
func (c *TransferController) GetStatement(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "id")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	account, history, err := c.transfers.GetStatement(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}

	data, err := statement.Build(account, history, time.Now())
	if err != nil {
		writeError(w, services.InternalError("failed to build statement", err))
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="statement-%d.xml"`, accountID))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		utils.LogError("Failed to write statement: %v", err)
	}
}
