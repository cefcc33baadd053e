package nlu

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avachat/internal/config"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.NLUConfig{
		BaseURL:        baseURL,
		ParseEndpoint:  "/model/parse",
		RequestTimeout: 2 * time.Second,
	})
}

func TestParse_DecodesIntentAndEntities(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/model/parse" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["text"] != "order me a pizza" {
			t.Errorf("unexpected text %q", body["text"])
		}
		json.NewEncoder(w).Encode(Result{
			Text:     body["text"],
			Intent:   &Intent{Name: "order_food", Confidence: 0.92},
			Entities: []Entity{{Name: "food", Value: "pizza"}},
		})
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).Parse(context.Background(), "order me a pizza")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.Intent == nil || result.Intent.Name != "order_food" {
		t.Fatalf("Intent = %+v, want order_food", result.Intent)
	}
	if result.Intent.Confidence != 0.92 {
		t.Errorf("Confidence = %v, want 0.92", result.Intent.Confidence)
	}
	if len(result.Entities) != 1 || result.Entities[0].Value != "pizza" {
		t.Errorf("Entities = %+v", result.Entities)
	}
}

func TestParse_NilIntentWhenUnrecognised(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"zzz","intent":null,"entities":[]}`))
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).Parse(context.Background(), "zzz")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.Intent != nil {
		t.Errorf("Intent = %+v, want nil", result.Intent)
	}
}

func TestParse_NonOKStatusIsClassifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Parse(context.Background(), "hi")
	if err == nil {
		t.Fatal("expected error")
	}
	var cerr *ClassifierError
	if !errors.As(err, &cerr) {
		t.Fatalf("error %T is not a ClassifierError", err)
	}
}

func TestParse_ConnectionRefusedIsClassifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := newTestClient(srv.URL).Parse(context.Background(), "hi")
	var cerr *ClassifierError
	if !errors.As(err, &cerr) {
		t.Fatalf("error %v is not a ClassifierError", err)
	}
}
