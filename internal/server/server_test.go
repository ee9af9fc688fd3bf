package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/example/notification-fanout/internal/fanout"
	"github.com/example/notification-fanout/internal/models"
)

type stubEngine struct {
	sendFunc  func(ctx context.Context, req fanout.SendRequest) (*fanout.SendResult, error)
	getFunc   func(ctx context.Context, messageID string) (*fanout.SendResult, error)
	retryFunc func(ctx context.Context, messageID string) (*fanout.SendResult, error)
}

func (s *stubEngine) Send(ctx context.Context, req fanout.SendRequest) (*fanout.SendResult, error) {
	return s.sendFunc(ctx, req)
}

func (s *stubEngine) Get(ctx context.Context, messageID string) (*fanout.SendResult, error) {
	return s.getFunc(ctx, messageID)
}

func (s *stubEngine) RetryFailed(ctx context.Context, messageID string) (*fanout.SendResult, error) {
	return s.retryFunc(ctx, messageID)
}

func sampleResult() *fanout.SendResult {
	return &fanout.SendResult{
		Message: models.Message{ID: "m1", Subject: "s", Body: "b"},
		Recipients: []models.Recipient{
			{ID: "r1", MessageID: "m1", PersonnelID: "p1", Channel: models.ChannelEmail, Status: models.StatusSent},
		},
	}
}

func TestHandleSendCreated(t *testing.T) {
	var captured fanout.SendRequest
	eng := &stubEngine{
		sendFunc: func(_ context.Context, req fanout.SendRequest) (*fanout.SendResult, error) {
			captured = req
			return sampleResult(), nil
		},
	}
	srv := httptest.NewServer(New(eng, zerolog.Nop()).Router())
	defer srv.Close()

	body := `{"subject":"s","body":"b","personnel_ids":["p1","p2"],"channels":["email","sms"]}`
	resp, err := http.Post(srv.URL+"/messages", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /messages: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	if len(captured.PersonnelIDs) != 2 || len(captured.Channels) != 2 {
		t.Fatalf("engine received %+v", captured)
	}

	var res fanout.SendResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Message.ID != "m1" || len(res.Recipients) != 1 {
		t.Fatalf("unexpected response: %+v", res)
	}
}

func TestHandleSendValidationFailure(t *testing.T) {
	eng := &stubEngine{
		sendFunc: func(context.Context, fanout.SendRequest) (*fanout.SendResult, error) {
			return nil, models.NewValidationError("subject is required")
		},
	}
	srv := httptest.NewServer(New(eng, zerolog.Nop()).Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/messages", "application/json", strings.NewReader(`{"body":"b"}`))
	if err != nil {
		t.Fatalf("POST /messages: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleSendRejectsBadJSON(t *testing.T) {
	eng := &stubEngine{
		sendFunc: func(context.Context, fanout.SendRequest) (*fanout.SendResult, error) {
			t.Fatal("engine called on malformed body")
			return nil, nil
		},
	}
	srv := httptest.NewServer(New(eng, zerolog.Nop()).Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/messages", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST /messages: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleSendRejectsUnknownChannel(t *testing.T) {
	eng := &stubEngine{
		sendFunc: func(context.Context, fanout.SendRequest) (*fanout.SendResult, error) {
			t.Fatal("engine called with invalid channel")
			return nil, nil
		},
	}
	srv := httptest.NewServer(New(eng, zerolog.Nop()).Router())
	defer srv.Close()

	body := `{"subject":"s","body":"b","personnel_ids":["p1"],"channels":["fax"]}`
	resp, err := http.Post(srv.URL+"/messages", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /messages: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleGetNotFound(t *testing.T) {
	eng := &stubEngine{
		getFunc: func(_ context.Context, id string) (*fanout.SendResult, error) {
			return nil, models.NewNotFound(id)
		},
	}
	srv := httptest.NewServer(New(eng, zerolog.Nop()).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/messages/missing")
	if err != nil {
		t.Fatalf("GET /messages/missing: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHandleGetOK(t *testing.T) {
	eng := &stubEngine{
		getFunc: func(_ context.Context, id string) (*fanout.SendResult, error) {
			if id != "m1" {
				t.Errorf("engine received id %q", id)
			}
			return sampleResult(), nil
		},
	}
	srv := httptest.NewServer(New(eng, zerolog.Nop()).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/messages/m1")
	if err != nil {
		t.Fatalf("GET /messages/m1: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestHandleRetry(t *testing.T) {
	called := false
	eng := &stubEngine{
		retryFunc: func(_ context.Context, id string) (*fanout.SendResult, error) {
			called = true
			if id != "m1" {
				t.Errorf("engine received id %q", id)
			}
			return sampleResult(), nil
		},
	}
	srv := httptest.NewServer(New(eng, zerolog.Nop()).Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/messages/m1/retry", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /messages/m1/retry: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !called {
		t.Fatal("engine retry not invoked")
	}
}

func TestHandleHealth(t *testing.T) {
	srv := httptest.NewServer(New(&stubEngine{}, zerolog.Nop()).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
