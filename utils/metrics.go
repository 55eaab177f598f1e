package utils

import (
	"sync"
	"time"
)

// Metrics содержит метрики приложения
type Metrics struct {
	mu sync.RWMutex

	// Метрики запросов
	TotalRequests   int64
	FailedRequests  int64
	RequestLatency  time.Duration
	AverageLatency  time.Duration
	LastRequestTime time.Time

	// Метрики реестра
	AccountsCreated   int64
	TransfersOK       int64
	TransfersFailed   int64
	TransferRetries   int64
	LastTransferTime  time.Time
	NotificationsLost int64

	// Метрики ошибок
	ErrorCount    int64
	LastErrorTime time.Time
	ErrorTypes    map[string]int64
}

var (
	metrics     *Metrics
	metricsOnce sync.Once
)

// NewMetrics создает пустой набор метрик
func NewMetrics() *Metrics {
	return &Metrics{
		ErrorTypes: make(map[string]int64),
	}
}

// GetMetrics возвращает общий экземпляр метрик
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetrics()
	})
	return metrics
}

// RecordRequest записывает метрики HTTP запроса. status >= 500 считается отказом.
func (m *Metrics) RecordRequest(duration time.Duration, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalRequests++
	m.RequestLatency += duration
	m.AverageLatency = m.RequestLatency / time.Duration(m.TotalRequests)
	m.LastRequestTime = time.Now()

	if status >= 500 {
		m.FailedRequests++
	}
}

// RecordAccountCreated учитывает открытие счета
func (m *Metrics) RecordAccountCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AccountsCreated++
}

// RecordTransfer записывает результат перевода
func (m *Metrics) RecordTransfer(errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastTransferTime = time.Now()
	if errorType == "" {
		m.TransfersOK++
		return
	}
	m.TransfersFailed++
	m.recordErrorLocked(errorType)
}

// RecordTransferRetry учитывает повтор транзакции перевода после конфликта
func (m *Metrics) RecordTransferRetry() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TransferRetries++
}

// RecordNotificationFailure учитывает неотправленное уведомление или событие
func (m *Metrics) RecordNotificationFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NotificationsLost++
}

// RecordError записывает метрики ошибки
func (m *Metrics) RecordError(errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordErrorLocked(errorType)
}

func (m *Metrics) recordErrorLocked(errorType string) {
	if errorType == "" {
		errorType = "unknown"
	}
	m.ErrorCount++
	m.LastErrorTime = time.Now()
	m.ErrorTypes[errorType]++
}

// GetMetricsSnapshot возвращает снимок текущих метрик
func (m *Metrics) GetMetricsSnapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	errorTypes := make(map[string]int64, len(m.ErrorTypes))
	for k, v := range m.ErrorTypes {
		errorTypes[k] = v
	}

	return map[string]interface{}{
		"total_requests":     m.TotalRequests,
		"failed_requests":    m.FailedRequests,
		"average_latency_ms": m.AverageLatency.Milliseconds(),
		"accounts_created":   m.AccountsCreated,
		"transfers_ok":       m.TransfersOK,
		"transfers_failed":   m.TransfersFailed,
		"transfer_retries":   m.TransferRetries,
		"notifications_lost": m.NotificationsLost,
		"error_count":        m.ErrorCount,
		"last_error_time":    m.LastErrorTime,
		"error_types":        errorTypes,
	}
}

// ResetMetrics сбрасывает все метрики
func (m *Metrics) ResetMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalRequests = 0
	m.FailedRequests = 0
	m.RequestLatency = 0
	m.AverageLatency = 0
	m.AccountsCreated = 0
	m.TransfersOK = 0
	m.TransfersFailed = 0
	m.TransferRetries = 0
	m.NotificationsLost = 0
	m.ErrorCount = 0
	m.ErrorTypes = make(map[string]int64)
}
