package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"watchparty/internal/core/services"
	"watchparty/internal/infrastructure/middleware"
	"watchparty/internal/infrastructure/repositories/memory"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type apiFixture struct {
	router *gin.Engine
	auth   *services.AuthService
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zap.NewNop().Sugar()
	auth := services.NewAuthService(memory.NewMemoryUserRepository(), "test-secret", time.Hour)
	rooms := services.NewRoomService(memory.NewMemoryRoomRepository(), memory.NewMemorySignalRepository(), log)
	chat := services.NewChatService(memory.NewMemoryChatRepository(), 10, 10, nil, log)

	router := gin.New()
	router.Use(middleware.ErrorHandlerMiddleware(log))
	NewAuthHandler(auth, time.Hour).SetupRoutes(router)
	NewRoomHandler(rooms, chat, auth).SetupRoutes(router)

	return &apiFixture{router: router, auth: auth}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) register(t *testing.T, email string) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email":        email,
		"display_name": "Alice",
		"password":     "secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func TestRegisterValidation(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name string
		body gin.H
	}{
		{"missing email", gin.H{"display_name": "Alice", "password": "secret123"}},
		{"bad email", gin.H{"email": "nope", "display_name": "Alice", "password": "secret123"}},
		{"short password", gin.H{"email": "a@b.com", "display_name": "Alice", "password": "abc"}},
		{"missing display name", gin.H{"email": "a@b.com", "password": "secret123"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/v1/auth/register", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	f := newAPIFixture(t)
	f.register(t, "alice@example.com")

	w := f.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email":        "alice@example.com",
		"display_name": "Other",
		"password":     "secret123",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLoginEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.register(t, "alice@example.com")

	w := f.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email":    "alice@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email":    "alice@example.com",
		"password": "wrongpass",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoomEndpointsRequireAuth(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/rooms", "", gin.H{"video_url": "dQw4w9WgXcQ"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/rooms/some-id", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateAndGetRoom(t *testing.T) {
	f := newAPIFixture(t)
	token := f.register(t, "alice@example.com")

	w := f.do(t, http.MethodPost, "/api/v1/rooms", token, gin.H{
		"video_url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var room struct {
		ID      string `json:"ID"`
		VideoID string `json:"VideoID"`
		Status  string `json:"Status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &room))
	assert.Equal(t, "dQw4w9WgXcQ", room.VideoID)
	assert.Equal(t, "pause", room.Status)

	w = f.do(t, http.MethodGet, "/api/v1/rooms/"+room.ID, token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetRoomNotFound(t *testing.T) {
	f := newAPIFixture(t)
	token := f.register(t, "alice@example.com")

	w := f.do(t, http.MethodGet, "/api/v1/rooms/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEndRoomHostOnly(t *testing.T) {
	f := newAPIFixture(t)
	hostToken := f.register(t, "host@example.com")
	guestToken := f.register(t, "guest@example.com")

	w := f.do(t, http.MethodPost, "/api/v1/rooms", hostToken, gin.H{"video_url": "dQw4w9WgXcQ"})
	require.Equal(t, http.StatusCreated, w.Code)
	var room struct {
		ID string `json:"ID"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &room))

	w = f.do(t, http.MethodDelete, "/api/v1/rooms/"+room.ID, guestToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodDelete, "/api/v1/rooms/"+room.ID, hostToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/rooms/"+room.ID, hostToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChatEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	token := f.register(t, "alice@example.com")

	w := f.do(t, http.MethodPost, "/api/v1/rooms", token, gin.H{"video_url": "dQw4w9WgXcQ"})
	require.Equal(t, http.StatusCreated, w.Code)
	var room struct {
		ID string `json:"ID"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &room))

	w = f.do(t, http.MethodPost, "/api/v1/rooms/"+room.ID+"/chat", token, gin.H{"message": "hello"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(t, http.MethodGet, "/api/v1/rooms/"+room.ID+"/chat", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		Messages []struct {
			Message string `json:"Message"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history.Messages, 1)
	assert.Equal(t, "hello", history.Messages[0].Message)
}
