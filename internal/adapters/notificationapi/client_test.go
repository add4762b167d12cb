package notificationapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"pillbox/internal/services/notify"
)

func TestClientSend(t *testing.T) {
	t.Parallel()

	var got sendRequest
	var gotPath, gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c, err := New(Config{ClientID: "cid", ClientSecret: "secret", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	err = c.Send(context.Background(), notify.Notification{
		Kind:      "dispensed",
		Recipient: notify.Recipient{ID: "caregiver", Contact: "+300"},
		Message:   "Medication notification sent",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotPath != "/cid/sender" {
		t.Errorf("path = %q", gotPath)
	}
	if gotUser != "cid" || gotPass != "secret" {
		t.Errorf("basic auth = %q/%q", gotUser, gotPass)
	}
	if got.Type != "medication" || got.To.ID != "caregiver" || got.To.Number != "+300" {
		t.Errorf("request = %+v", got)
	}
	if got.SMS.Message != "Medication notification sent" {
		t.Errorf("message = %q", got.SMS.Message)
	}
}

func TestClientSendErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := New(Config{ClientID: "cid", ClientSecret: "nope", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Send(context.Background(), notify.Notification{Message: "x"}); err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{ClientID: "cid"}); err == nil {
		t.Fatal("expected error without secret")
	}
	if _, err := New(Config{ClientSecret: "s"}); err == nil {
		t.Fatal("expected error without client id")
	}
}
