package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/LoboMiguelBR/anrielly-cerimonias-elegancia-sub000/config"
)

func TestMailServiceSend(t *testing.T) {
	var (
		gotAuth string
		gotBody mailRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/emails" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg-1"}`))
	}))
	defer server.Close()

	svc := NewMailService(&config.MailConfig{APIURL: server.URL, APIToken: "secret", From: "contato@example.com"})
	err := svc.Send(context.Background(), Message{
		To:       "maria@example.com",
		Subject:  "Seu contrato",
		HTML:     "<p>Olá</p>",
		Metadata: map[string]string{"record_id": "r1", "kind": "contract"},
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if gotAuth != "Bearer secret" {
		t.Errorf("Expected bearer token, got %s", gotAuth)
	}
	if gotBody.From != "contato@example.com" || len(gotBody.To) != 1 || gotBody.To[0] != "maria@example.com" {
		t.Errorf("Unexpected envelope %+v", gotBody)
	}
	if len(gotBody.Tags) != 2 || gotBody.Tags[0].Name != "kind" || gotBody.Tags[1].Name != "record_id" {
		t.Errorf("Expected sorted tags, got %+v", gotBody.Tags)
	}
}

func TestMailServiceErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"invalid recipient"}`))
	}))
	defer server.Close()

	svc := NewMailService(&config.MailConfig{APIURL: server.URL})
	err := svc.Send(context.Background(), Message{To: "x"})
	if err == nil || !strings.Contains(err.Error(), "invalid recipient") {
		t.Errorf("Expected API message in error, got %v", err)
	}

	unconfigured := NewMailService(&config.MailConfig{})
	if err := unconfigured.Send(context.Background(), Message{To: "x"}); err == nil {
		t.Error("Expected error when the mail API is not configured")
	}
}
