package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Louaq/Awesome-poetize-open/internal/service"
	apperrors "github.com/Louaq/Awesome-poetize-open/pkg/errors"
	"github.com/Louaq/Awesome-poetize-open/pkg/jwt"
	"github.com/Louaq/Awesome-poetize-open/pkg/response"
)

type stubReadState struct {
	err      error
	lastUser int64
	lastType int
	lastChat int64
	count    int
}

func (s *stubReadState) record(userID int64, chatType int, chatID int64) error {
	s.lastUser = userID
	s.lastType = chatType
	s.lastChat = chatID
	return s.err
}

func (s *stubReadState) MarkRead(ctx context.Context, userID int64, chatType int, chatID int64) error {
	return s.record(userID, chatType, chatID)
}

func (s *stubReadState) Hide(ctx context.Context, userID int64, chatType int, chatID int64) error {
	return s.record(userID, chatType, chatID)
}

func (s *stubReadState) Unhide(ctx context.Context, userID int64, chatType int, chatID int64) error {
	return s.record(userID, chatType, chatID)
}

func (s *stubReadState) UnreadCount(ctx context.Context, userID int64, chatType int, chatID int64) (int, error) {
	return s.count, s.record(userID, chatType, chatID)
}

func (s *stubReadState) AllUnreadCounts(ctx context.Context, userID int64) (*service.UnreadSummary, error) {
	s.lastUser = userID
	return &service.UnreadSummary{
		Friend: map[int64]int{2: 3},
		Group:  map[int64]int{50: 1},
	}, s.err
}

func (s *stubReadState) ChatList(ctx context.Context, userID int64) (*service.ChatListSummary, error) {
	s.lastUser = userID
	return &service.ChatListSummary{Friend: []int64{2}, Group: []int64{50}}, s.err
}

func setupTestRouter(readState ReadState) (*gin.Engine, *jwt.Service) {
	gin.SetMode(gin.TestMode)

	jwtService := jwt.NewService("test-secret", time.Hour)
	handler := NewReadStateHandler(readState)

	r := gin.New()
	im := r.Group("/api/im")
	im.Use(JWTAuth(jwtService))
	{
		im.POST("/read", handler.MarkRead)
		im.POST("/hide", handler.Hide)
		im.POST("/unhide", handler.Unhide)
		im.GET("/unread", handler.UnreadCount)
		im.GET("/unread/all", handler.AllUnreadCounts)
		im.GET("/chats", handler.ChatList)
	}
	return r, jwtService
}

func authedRequest(t *testing.T, jwtService *jwt.Service, method, path string, body []byte) *http.Request {
	t.Helper()
	token, err := jwtService.Generate(1, "device-1", jwt.PlatformWeb)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) *response.Response {
	t.Helper()
	var resp response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return &resp
}

func TestMarkRead_RequiresToken(t *testing.T) {
	r, _ := setupTestRouter(&stubReadState{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/im/read", bytes.NewReader([]byte(`{"chatType":1,"chatId":2}`)))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestMarkRead_UsesTokenIdentity(t *testing.T) {
	readState := &stubReadState{}
	r, jwtService := setupTestRouter(readState)

	w := httptest.NewRecorder()
	req := authedRequest(t, jwtService, http.MethodPost, "/api/im/read", []byte(`{"chatType":1,"chatId":2}`))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	resp := decodeResponse(t, w)
	if resp.Code != apperrors.CodeSuccess {
		t.Errorf("Expected success code, got %d (%s)", resp.Code, resp.Message)
	}

	// 用户身份来自 token 而不是请求体
	if readState.lastUser != 1 || readState.lastType != 1 || readState.lastChat != 2 {
		t.Errorf("Unexpected call: user=%d type=%d chat=%d",
			readState.lastUser, readState.lastType, readState.lastChat)
	}
}

func TestMarkRead_BusinessErrorCode(t *testing.T) {
	readState := &stubReadState{err: apperrors.ErrNotFriend}
	r, jwtService := setupTestRouter(readState)

	w := httptest.NewRecorder()
	req := authedRequest(t, jwtService, http.MethodPost, "/api/im/read", []byte(`{"chatType":1,"chatId":2}`))
	r.ServeHTTP(w, req)

	// 业务错误统一走 HTTP 200 + 业务码
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	resp := decodeResponse(t, w)
	if resp.Code != apperrors.CodeNotFriend {
		t.Errorf("Expected code %d, got %d", apperrors.CodeNotFriend, resp.Code)
	}
}

func TestMarkRead_InvalidBody(t *testing.T) {
	r, jwtService := setupTestRouter(&stubReadState{})

	w := httptest.NewRecorder()
	req := authedRequest(t, jwtService, http.MethodPost, "/api/im/read", []byte(`{"chatType":"x"}`))
	r.ServeHTTP(w, req)

	resp := decodeResponse(t, w)
	if resp.Code != apperrors.CodeInvalidParams {
		t.Errorf("Expected code %d, got %d", apperrors.CodeInvalidParams, resp.Code)
	}
}

func TestUnreadCount_QueryParams(t *testing.T) {
	readState := &stubReadState{count: 5}
	r, jwtService := setupTestRouter(readState)

	w := httptest.NewRecorder()
	req := authedRequest(t, jwtService, http.MethodGet, "/api/im/unread?chatType=2&chatId=50", nil)
	r.ServeHTTP(w, req)

	resp := decodeResponse(t, w)
	if resp.Code != apperrors.CodeSuccess {
		t.Fatalf("Expected success, got %d (%s)", resp.Code, resp.Message)
	}
	if readState.lastType != 2 || readState.lastChat != 50 {
		t.Errorf("Unexpected call: type=%d chat=%d", readState.lastType, readState.lastChat)
	}

	data := resp.Data.(map[string]interface{})
	if int(data["count"].(float64)) != 5 {
		t.Errorf("Expected count 5, got %v", data["count"])
	}
}

func TestUnreadCount_MissingParams(t *testing.T) {
	r, jwtService := setupTestRouter(&stubReadState{})

	w := httptest.NewRecorder()
	req := authedRequest(t, jwtService, http.MethodGet, "/api/im/unread?chatType=2", nil)
	r.ServeHTTP(w, req)

	resp := decodeResponse(t, w)
	if resp.Code != apperrors.CodeInvalidParams {
		t.Errorf("Expected code %d, got %d", apperrors.CodeInvalidParams, resp.Code)
	}
}

func TestAllUnreadCountsAndChatList(t *testing.T) {
	readState := &stubReadState{}
	r, jwtService := setupTestRouter(readState)

	w := httptest.NewRecorder()
	req := authedRequest(t, jwtService, http.MethodGet, "/api/im/unread/all", nil)
	r.ServeHTTP(w, req)
	if resp := decodeResponse(t, w); resp.Code != apperrors.CodeSuccess {
		t.Errorf("Expected success, got %d", resp.Code)
	}

	w = httptest.NewRecorder()
	req = authedRequest(t, jwtService, http.MethodGet, "/api/im/chats", nil)
	r.ServeHTTP(w, req)
	if resp := decodeResponse(t, w); resp.Code != apperrors.CodeSuccess {
		t.Errorf("Expected success, got %d", resp.Code)
	}
	if readState.lastUser != 1 {
		t.Errorf("Expected user 1 from token, got %d", readState.lastUser)
	}
}
