package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"gemchat/gemchat/config"
	"gemchat/gemchat/controllers"
	"gemchat/gemchat/services/genai"
	"gemchat/gemchat/sources/store"
	"gemchat/gemchat/sources/store/dao"
	"gemchat/gemchat/sources/store/models"
	"gemchat/gemchat/utils/logging"
	"gemchat/gemchat/utils/types"
)

type stubGenerator struct {
	reply   string
	err     error
	lastKey string
}

func (s *stubGenerator) GenerateContent(ctx context.Context, req genai.Request) (string, error) {
	s.lastKey = req.APIKey
	return s.reply, s.err
}

type noopTitles struct{}

func (noopTitles) Generate(ctx context.Context, sessionID, firstMessage, apiKey string) {}

func newTestServer(t *testing.T, gen *stubGenerator) (*httptest.Server, *dao.ConversationDAO) {
	t.Helper()
	logging.InitLogger(t.TempDir())
	backend, err := store.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	d := dao.NewConversationDAO(backend)
	ctrl := controllers.NewChatController(d, gen, noopTitles{}, config.GenAIConfig{DefaultModel: "default-model"})
	srv := httptest.NewServer(ChatRoutes(ctrl))
	t.Cleanup(srv.Close)
	return srv, d
}

func doJSON(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestCreateSessionEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/sessions", types.CreateSessionRequest{ID: "s1", Model: "m"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var sess models.Session
	decode(t, resp, &sess)
	if sess.ID != "s1" || sess.Model != "m" {
		t.Errorf("unexpected session: %+v", sess)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/sessions", types.CreateSessionRequest{ID: "s1"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for duplicate id, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestTurnEndpoint(t *testing.T) {
	gen := &stubGenerator{reply: "Hi there"}
	srv, d := newTestServer(t, gen)

	resp := doJSON(t, http.MethodPost, srv.URL+"/sessions", types.CreateSessionRequest{ID: "s1"})
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/", types.TurnRequest{SessionID: "s1", Message: "Hello"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var turn types.TurnResponse
	decode(t, resp, &turn)
	if turn.Reply != "Hi there" {
		t.Errorf("unexpected reply %q", turn.Reply)
	}

	msgs, err := d.ListMessages(context.Background(), "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 {
		t.Errorf("expected 2 persisted messages, got %d", len(msgs))
	}
}

func TestTurnEndpointForwardsAPIKeyHeader(t *testing.T) {
	gen := &stubGenerator{reply: "ok"}
	srv, _ := newTestServer(t, gen)

	resp := doJSON(t, http.MethodPost, srv.URL+"/sessions", types.CreateSessionRequest{ID: "s1"})
	resp.Body.Close()

	var buf bytes.Buffer
	json.NewEncoder(&buf).Encode(types.TurnRequest{SessionID: "s1", Message: "Hello"})
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/", &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("X-Api-Key", "caller-key")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if gen.lastKey != "caller-key" {
		t.Errorf("api key header not forwarded, got %q", gen.lastKey)
	}
}

func TestTurnEndpointErrors(t *testing.T) {
	gen := &stubGenerator{}
	srv, _ := newTestServer(t, gen)

	resp := doJSON(t, http.MethodPost, srv.URL+"/sessions", types.CreateSessionRequest{ID: "s1"})
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/", types.TurnRequest{SessionID: "s1", Message: "   "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty input: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/", types.TurnRequest{SessionID: "ghost", Message: "hi"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown session: expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	gen.err = &genai.Error{Kind: genai.KindAuth, Status: 401, Message: "invalid key"}
	resp = doJSON(t, http.MethodPost, srv.URL+"/", types.TurnRequest{SessionID: "s1", Message: "hi"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("auth failure: expected 401, got %d", resp.StatusCode)
	}
	var errResp types.ErrorResponse
	decode(t, resp, &errResp)
	if errResp.Kind != "auth_error" {
		t.Errorf("expected auth_error kind, got %q", errResp.Kind)
	}

	gen.err = &genai.Error{Kind: genai.KindOverloaded, Status: 503, Message: "try later"}
	resp = doJSON(t, http.MethodPost, srv.URL+"/", types.TurnRequest{SessionID: "s1", Message: "hi"})
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("overloaded: expected 502, got %d", resp.StatusCode)
	}
	decode(t, resp, &errResp)
	if errResp.Kind != "overloaded" {
		t.Errorf("expected overloaded kind, got %q", errResp.Kind)
	}
}

func TestListSessionsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &stubGenerator{reply: "ok"})

	for _, id := range []string{"a", "b", "c"} {
		resp := doJSON(t, http.MethodPost, srv.URL+"/sessions", types.CreateSessionRequest{ID: id})
		resp.Body.Close()
	}
	// Activity on "a" moves it to the front.
	resp := doJSON(t, http.MethodPost, srv.URL+"/", types.TurnRequest{SessionID: "a", Message: "hi"})
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/sessions", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var sessions []models.Session
	decode(t, resp, &sessions)
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != "a" {
		t.Errorf("expected most recently active first, got %q", sessions[0].ID)
	}
}

func TestGetAndDeleteSessionEndpoints(t *testing.T) {
	srv, d := newTestServer(t, &stubGenerator{reply: "ok"})

	resp := doJSON(t, http.MethodPost, srv.URL+"/sessions", types.CreateSessionRequest{ID: "s1"})
	resp.Body.Close()
	resp = doJSON(t, http.MethodPost, srv.URL+"/", types.TurnRequest{SessionID: "s1", Message: "hi"})
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/sessions/s1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("get session: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/sessions/s1/messages", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get messages: expected 200, got %d", resp.StatusCode)
	}
	var msgs []models.Message
	decode(t, resp, &msgs)
	if len(msgs) != 2 {
		t.Errorf("expected 2 messages, got %d", len(msgs))
	}

	resp = doJSON(t, http.MethodDelete, srv.URL+"/sessions/s1", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	if _, err := d.GetSession(context.Background(), "s1"); err != store.ErrSessionNotFound {
		t.Errorf("session still present after delete: %v", err)
	}
	left, err := d.ListMessages(context.Background(), "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(left) != 0 {
		t.Errorf("messages survived session delete: %d", len(left))
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/sessions/s1/messages", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("messages of deleted session: expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestDeleteUntitledSessionsEndpoint(t *testing.T) {
	srv, d := newTestServer(t, &stubGenerator{})
	ctx := context.Background()

	for _, id := range []string{"titled", "untitled", "open"} {
		resp := doJSON(t, http.MethodPost, srv.URL+"/sessions", types.CreateSessionRequest{ID: id})
		resp.Body.Close()
	}
	if err := d.SetTitle(ctx, "titled", "Kept around"); err != nil {
		t.Fatalf("set title: %v", err)
	}

	resp := doJSON(t, http.MethodDelete, srv.URL+"/sessions/untitled?exclude=open", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	sessions, err := d.ListSessions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := map[string]bool{}
	for _, s := range sessions {
		got[s.ID] = true
	}
	for _, id := range []string{"titled", "open"} {
		if !got[id] {
			t.Errorf("session %q should have survived", id)
		}
	}
	if got["untitled"] {
		t.Error("untitled session should have been deleted")
	}
}

func TestDeleteAllSessionsEndpoint(t *testing.T) {
	srv, d := newTestServer(t, &stubGenerator{})

	for i := 0; i < 3; i++ {
		resp := doJSON(t, http.MethodPost, srv.URL+"/sessions", types.CreateSessionRequest{ID: fmt.Sprintf("s%d", i)})
		resp.Body.Close()
	}
	resp := doJSON(t, http.MethodDelete, srv.URL+"/sessions", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	sessions, err := d.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("expected empty store, got %d sessions", len(sessions))
	}
}
