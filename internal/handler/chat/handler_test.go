package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/cipherchat/backend/internal/cryptox"
	"github.com/zhouzirui/cipherchat/backend/internal/middleware"
	chatmodel "github.com/zhouzirui/cipherchat/backend/internal/model/chat"
	"github.com/zhouzirui/cipherchat/backend/internal/service/auth"
	"github.com/zhouzirui/cipherchat/backend/internal/store"
)

func newRouter(t *testing.T) (*chi.Mux, *store.Memory) {
	t.Helper()
	cipher, err := cryptox.New(make([]byte, cryptox.KeySize))
	if err != nil {
		t.Fatalf("cryptox.New err: %v", err)
	}
	st := store.NewMemory(cipher)

	r := chi.NewRouter()
	New(st).RegisterRoutes(r)
	return r, st
}

func asUser(r *http.Request, userID string) *http.Request {
	ctx := middleware.WithIdentity(r.Context(), auth.Identity{UserID: userID})
	return r.WithContext(ctx)
}

func TestListMessagesRequiresIdentity(t *testing.T) {
	router, _ := newRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d want 401", rec.Code)
	}
}

func TestListMessagesReturnsOwnLogInOrder(t *testing.T) {
	router, st := newRouter(t)
	ctx := context.Background()

	if _, err := st.Append(ctx, "user-a", "Hello", chatmodel.RoleUser); err != nil {
		t.Fatalf("Append err: %v", err)
	}
	if _, err := st.Append(ctx, "user-a", "Hi there!", chatmodel.RoleAssistant); err != nil {
		t.Fatalf("Append err: %v", err)
	}
	if _, err := st.Append(ctx, "user-b", "other user's secret", chatmodel.RoleUser); err != nil {
		t.Fatalf("Append err: %v", err)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/messages", nil), "user-a"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d want 200, body %s", rec.Code, rec.Body)
	}

	var body struct {
		Messages []chatmodel.Message `json:"messages"`
		Count    int                 `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	if body.Count != 2 || len(body.Messages) != 2 {
		t.Fatalf("expected 2 messages, got count=%d len=%d", body.Count, len(body.Messages))
	}
	if body.Messages[0].Content != "Hello" || body.Messages[0].Role != chatmodel.RoleUser {
		t.Fatalf("first message: %+v", body.Messages[0])
	}
	if body.Messages[1].Content != "Hi there!" || body.Messages[1].Role != chatmodel.RoleAssistant {
		t.Fatalf("second message: %+v", body.Messages[1])
	}
}

func TestSaveMessagePersistsUnderSessionIdentity(t *testing.T) {
	router, st := newRouter(t)

	payload := `{"content":"direct save","role":"user"}`
	req := asUser(httptest.NewRequest(http.MethodPost, "/saveMessage", strings.NewReader(payload)), "user-a")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["id"] == "" {
		t.Fatal("expected message id in response")
	}

	messages, err := st.List(context.Background(), "user-a")
	if err != nil {
		t.Fatalf("List err: %v", err)
	}
	if len(messages) != 1 || messages[0].Content != "direct save" {
		t.Fatalf("unexpected store contents: %+v", messages)
	}
}

func TestSaveMessageRejectsForeignUserID(t *testing.T) {
	router, st := newRouter(t)

	payload := `{"userId":"user-b","content":"smuggled","role":"user"}`
	req := asUser(httptest.NewRequest(http.MethodPost, "/saveMessage", strings.NewReader(payload)), "user-a")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status: got %d want 403", rec.Code)
	}

	for _, owner := range []string{"user-a", "user-b"} {
		messages, err := st.List(context.Background(), owner)
		if err != nil {
			t.Fatalf("List err: %v", err)
		}
		if len(messages) != 0 {
			t.Fatalf("no writes expected for %s, got %d", owner, len(messages))
		}
	}
}

func TestSaveMessageValidation(t *testing.T) {
	router, _ := newRouter(t)

	cases := map[string]string{
		"bad json":     `{"content":`,
		"empty body":   `{}`,
		"blank body":   `{"content":"   ","role":"user"}`,
		"system role":  `{"content":"x","role":"system"}`,
		"unknown role": `{"content":"x","role":"moderator"}`,
	}

	for name, payload := range cases {
		req := asUser(httptest.NewRequest(http.MethodPost, "/saveMessage", strings.NewReader(payload)), "user-a")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status got %d want 400", name, rec.Code)
		}
	}
}
