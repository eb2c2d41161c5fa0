package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/civcon/ussd-engine/internal/engine"
	"github.com/civcon/ussd-engine/internal/model"
	"github.com/civcon/ussd-engine/internal/repo"
	"github.com/civcon/ussd-engine/internal/scheduler"
)

type fakeEngine struct {
	gotReq engine.Request
	reply  engine.Reply
}

var _ CallbackEngine = (*fakeEngine)(nil)

func (f *fakeEngine) Handle(ctx context.Context, req engine.Request) engine.Reply {
	f.gotReq = req
	return f.reply
}

type fakeRepo struct {
	gotLimit  int
	gotOffset int
	items     []model.Message
	err       error
}

var _ repo.MessageRepository = (*fakeRepo)(nil)

func (f *fakeRepo) Create(ctx context.Context, m model.Message) (*model.Message, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeRepo) ListSent(ctx context.Context, limit, offset int) ([]model.Message, error) {
	f.gotLimit = limit
	f.gotOffset = offset
	return f.items, f.err
}

func newTestServer(t *testing.T, eng CallbackEngine, r repo.MessageRepository) (map[string]*scheduler.Scheduler, http.Handler) {
	t.Helper()

	// Long interval so only the immediate tick happens (noop anyway).
	s, err := scheduler.New("sms-retry", time.Hour, func(context.Context) {})
	if err != nil {
		t.Fatalf("failed to create scheduler: %v", err)
	}
	scheds := map[string]*scheduler.Scheduler{"sms-retry": s}

	h := NewHandler(eng, r, scheds)
	return scheds, Router(h)
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var m map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &m); err != nil {
		t.Fatalf("failed to decode json: %v body=%q", err, rr.Body.String())
	}
	return m
}

func TestUssdCallback_FormEncoded(t *testing.T) {
	eng := &fakeEngine{reply: engine.Reply{Text: "Do you consent?"}}
	_, mux := newTestServer(t, eng, &fakeRepo{})

	form := url.Values{}
	form.Set("sessionId", "ATUid_1")
	form.Set("phoneNumber", "0784437652")
	form.Set("text", "1*1")

	req := httptest.NewRequest(http.MethodPost, "/ussd/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()

	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := rr.Body.String(); got != "CON Do you consent?" {
		t.Fatalf("expected CON-prefixed line, got %q", got)
	}
	if eng.gotReq.SessionID != "ATUid_1" || eng.gotReq.PhoneNumber != "0784437652" || eng.gotReq.Text != "1*1" {
		t.Fatalf("unexpected request passed to engine: %+v", eng.gotReq)
	}
}

func TestUssdCallback_JSON(t *testing.T) {
	eng := &fakeEngine{reply: engine.Reply{Text: "Thank you!", End: true}}
	_, mux := newTestServer(t, eng, &fakeRepo{})

	body := `{"sessionId":"s1","phoneNumber":"+256784437652","text":"1*1*Jane"}`
	req := httptest.NewRequest(http.MethodPost, "/ussd/callback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := rr.Body.String(); got != "END Thank you!" {
		t.Fatalf("expected END-prefixed line, got %q", got)
	}
}

func TestUssdCallback_MissingFields(t *testing.T) {
	eng := &fakeEngine{reply: engine.Reply{Text: "should not be used"}}
	_, mux := newTestServer(t, eng, &fakeRepo{})

	req := httptest.NewRequest(http.MethodPost, "/ussd/callback", strings.NewReader("text=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()

	mux.ServeHTTP(rr, req)

	// The gateway can only render plain text, so bad requests still get a
	// 200 with an END line.
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.HasPrefix(rr.Body.String(), "END ") {
		t.Fatalf("expected END line, got %q", rr.Body.String())
	}
	if eng.gotReq.SessionID != "" {
		t.Fatalf("engine must not be called for invalid payloads")
	}
}

func TestUssdCallback_BadJSON(t *testing.T) {
	eng := &fakeEngine{}
	_, mux := newTestServer(t, eng, &fakeRepo{})

	req := httptest.NewRequest(http.MethodPost, "/ussd/callback", strings.NewReader("{broken"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	mux.ServeHTTP(rr, req)

	if !strings.HasPrefix(rr.Body.String(), "END ") {
		t.Fatalf("expected END line, got %q", rr.Body.String())
	}
}

func TestHealth(t *testing.T) {
	scheds, mux := newTestServer(t, &fakeEngine{}, &fakeRepo{})
	defer func() {
		for _, s := range scheds {
			s.Stop()
		}
	}()

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rr := httptest.NewRecorder()

	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeJSON(t, rr)
	if body["ok"] != true {
		t.Fatalf("expected ok=true, got %v", body)
	}
}

func TestSchedulerEndpoints(t *testing.T) {
	_, mux := newTestServer(t, &fakeEngine{}, &fakeRepo{})

	status := func() map[string]any {
		req := httptest.NewRequest(http.MethodGet, "/v1/scheduler/status", nil)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		return decodeJSON(t, rr)
	}

	if got := status(); got["sms-retry"] != false {
		t.Fatalf("expected sms-retry not running, got %v", got)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/scheduler/start", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if body := decodeJSON(t, rr); body["sms-retry"] != true {
		t.Fatalf("expected sms-retry running after start, got %v", body)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/scheduler/stop", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if body := decodeJSON(t, rr); body["sms-retry"] != false {
		t.Fatalf("expected sms-retry stopped, got %v", body)
	}
}

func TestListSentMessages(t *testing.T) {
	fr := &fakeRepo{items: []model.Message{
		{ID: 1, Content: "Potholes on Main St", Topic: "Roads"},
	}}
	_, mux := newTestServer(t, &fakeEngine{}, fr)

	req := httptest.NewRequest(http.MethodGet, "/v1/messages/sent?limit=5&offset=10", nil)
	rr := httptest.NewRecorder()

	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if fr.gotLimit != 5 || fr.gotOffset != 10 {
		t.Fatalf("expected limit/offset forwarded, got %d/%d", fr.gotLimit, fr.gotOffset)
	}

	body := decodeJSON(t, rr)
	items, ok := body["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected one item, got %v", body)
	}
}

func TestListSentMessages_RepoError(t *testing.T) {
	fr := &fakeRepo{err: errors.New("db down")}
	_, mux := newTestServer(t, &fakeEngine{}, fr)

	req := httptest.NewRequest(http.MethodGet, "/v1/messages/sent", nil)
	rr := httptest.NewRecorder()

	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}
