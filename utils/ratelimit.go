package utils

import (
	"sync"
	"time"
)

// RateLimiter считает события по ключу в скользящем окне.
// Ключ - IP клиента для входящих запросов или логин сотрудника для неудачных входов.
type RateLimiter struct {
	mu     sync.Mutex
	events map[string][]time.Time
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter создает новый RateLimiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		events: make(map[string][]time.Time),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// recent отбрасывает события вне окна; пустые ключи удаляются, чтобы карта не росла
func (rl *RateLimiter) recent(key string, now time.Time) []time.Time {
	windowStart := now.Add(-rl.window)
	events := rl.events[key]
	i := 0
	for i < len(events) && !events[i].After(windowStart) {
		i++
	}
	events = events[i:]
	if len(events) == 0 {
		delete(rl.events, key)
		return nil
	}
	rl.events[key] = events
	return events
}

// Allow проверяет лимит и, если он не исчерпан, учитывает событие
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if len(rl.recent(key, now)) >= rl.limit {
		return false
	}
	rl.events[key] = append(rl.events[key], now)
	return true
}

// Record учитывает событие независимо от лимита (например, неудачный вход)
func (rl *RateLimiter) Record(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.recent(key, now)
	rl.events[key] = append(rl.events[key], now)
}

// Blocked сообщает, исчерпан ли лимит, не учитывая новое событие
func (rl *RateLimiter) Blocked(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.recent(key, rl.now())) >= rl.limit
}

// Reset сбрасывает счетчик для ключа
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.events, key)
}

// GetRemaining возвращает количество оставшихся событий в окне
func (rl *RateLimiter) GetRemaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	remaining := rl.limit - len(rl.recent(key, rl.now()))
	if remaining < 0 {
		return 0
	}
	return remaining
}

// GetResetTime возвращает момент, когда освободится самое старое событие
func (rl *RateLimiter) GetResetTime(key string) time.Time {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	events := rl.recent(key, now)
	if len(events) == 0 {
		return now
	}
	return events[0].Add(rl.window)
}

// RetryAfter - сколько ждать до следующего разрешенного события, с округлением вверх до секунды
func (rl *RateLimiter) RetryAfter(key string) time.Duration {
	wait := rl.GetResetTime(key).Sub(rl.now())
	if wait <= 0 {
		return 0
	}
	return wait.Truncate(time.Second) + time.Second
}

// Limit возвращает максимальное число событий в окне
func (rl *RateLimiter) Limit() int {
	return rl.limit
}

// Keys возвращает число отслеживаемых ключей
func (rl *RateLimiter) Keys() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.events)
}
