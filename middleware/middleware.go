package middleware

import (
	"net/http"
	"strconv"

	"bankledger/utils"

	"github.com/gin-gonic/gin"
)

// RateLimit middleware для ограничения частоты запросов
func RateLimit(limiter *utils.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Получаем IP-адрес клиента
		clientIP := c.ClientIP()

		// Проверяем лимит
		if !limiter.Allow(clientIP) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"errorMessage": "too many requests",
				"reset":        limiter.GetResetTime(clientIP),
			})
			return
		}

		// Добавляем заголовки с информацией о лимитах
		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.GetRemaining(clientIP)))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(limiter.GetResetTime(clientIP).Unix(), 10))

		c.Next()
	}
}

// Logger middleware для логирования запросов
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		utils.LogInfo("Ops request: %s %s - Status: %d",
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
		)

		for _, e := range c.Errors {
			utils.LogError("Error: %v", e)
		}
	}
}

// Recovery middleware для обработки паник
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				utils.LogError("Panic recovered: %v", err)
				utils.GetMetrics().RecordError("panic")

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"errorMessage": "internal server error",
				})
			}
		}()

		c.Next()
	}
}

// Auth middleware проверяет тот же JWT, что и основной API
func Auth(jwtKey []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := ParseToken(jwtKey, c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"errorMessage": err.Error(),
			})
			return
		}

		c.Set("employee", claims)
		c.Next()
	}
}

// CORSMiddleware middleware для CORS
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
