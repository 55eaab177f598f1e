package controllers

import (
	"bankledger/services"
	"bankledger/utils"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

// ErrorResponse - тело любого ответа с ошибкой
type ErrorResponse struct {
	ErrorMessage string `json:"errorMessage"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		utils.LogError("Failed to encode response: %v", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{ErrorMessage: message})
}

// writeError отображает вид ошибки сервиса в HTTP статус
func writeError(w http.ResponseWriter, err error) {
	status := statusOf(services.KindOf(err))
	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		utils.LogError("Request failed: %v", err)
		utils.GetMetrics().RecordError(services.KindOf(err).String())
	}
	writeMessage(w, status, services.MessageOf(err))
}

func statusOf(kind services.ErrorKind) int {
	switch kind {
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindInvalidArgument:
		return http.StatusBadRequest
	case services.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// pathID разбирает положительный целый идентификатор из пути
func pathID(r *http.Request, name string) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)[name], 10, strconv.IntSize)
	if err != nil || id == 0 {
		return 0, errors.New("invalid " + name + ": must be a positive integer")
	}
	return uint(id), nil
}

// maxBodyBytes ограничивает размер JSON тела запроса
const maxBodyBytes = 64 << 10

// decodeBody декодирует JSON тело запроса и валидирует его
func decodeBody(r *http.Request, validate *validator.Validate, dst interface{}) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return errors.New("invalid request body")
	}
	return validateRequest(validate, dst)
}

// validateRequest валидирует DTO и возвращает ошибки валидации
func validateRequest(validate *validator.Validate, dto interface{}) error {
	err := validate.Struct(dto)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return errors.New("invalid request body")
	}

	var errorMessages []string
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			errorMessages = append(errorMessages, "field "+e.Field()+" is required")
		case "gt":
			errorMessages = append(errorMessages, "field "+e.Field()+" must be greater than "+e.Param())
		default:
			errorMessages = append(errorMessages, "field "+e.Field()+" is invalid")
		}
	}
	return errors.New(strings.Join(errorMessages, "; "))
}
