package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestLoggerRedactsTokenParameter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	original := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = original }()

	engine := gin.New()
	engine.Use(Logger())
	engine.GET("/ws", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws?token=eyJhbGciOiJIUzI1NiJ9.secret&v=1", nil)
	engine.ServeHTTP(w, req)

	logged := buf.String()
	assert.NotContains(t, logged, "eyJhbGciOiJIUzI1NiJ9.secret")
	assert.Contains(t, logged, "token=REDACTED")
	assert.Contains(t, logged, "v=1")
}

func TestRedactQueryLeavesOtherParams(t *testing.T) {
	assert.Equal(t, "page=2", redactQuery("page=2"))
	assert.Equal(t, "token=REDACTED", redactQuery("token=abc"))
}
