package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-ops-api/internal/models"
	"github.com/noah-isme/course-ops-api/internal/service"
	"github.com/noah-isme/course-ops-api/pkg/response"
)

func newAuthHandlerForTest() *AuthHandler {
	svc := service.NewAuthService(nil, nil, service.AuthConfig{
		Username:    "admin",
		Password:    "s3cret",
		TokenSecret: "test-secret",
		TokenExpiry: time.Hour,
	})
	return NewAuthHandler(svc)
}

func postLogin(t *testing.T, handler *AuthHandler, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	handler.Login(c)
	return w
}

func TestAuthHandlerLoginOK(t *testing.T) {
	handler := newAuthHandlerForTest()

	w := postLogin(t, handler, models.LoginRequest{Username: "admin", Password: "s3cret"})
	require.Equal(t, http.StatusOK, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, data["access_token"])
}

func TestAuthHandlerLoginRejected(t *testing.T) {
	handler := newAuthHandlerForTest()

	w := postLogin(t, handler, models.LoginRequest{Username: "admin", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerLoginBadPayload(t *testing.T) {
	handler := newAuthHandlerForTest()

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader([]byte(`not json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	handler.Login(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
