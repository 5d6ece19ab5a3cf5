package ml

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"ContentCurator/internal/config"
	"ContentCurator/internal/domain"
)

func TestScorePostsRubric(t *testing.T) {
	var got struct {
		Text       string             `json:"text"`
		Dimensions []domain.Dimension `json:"dimensions"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/score" || r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"scores": {"technical_depth": 7.5, "bias_mitigation": "N/A"}}`))
	}))
	defer srv.Close()

	client := NewClient(config.ServiceConfig{Endpoint: srv.URL + "/", APIKey: "secret"})
	scores, err := client.Score(context.Background(), "body", []domain.Dimension{{Name: "technical_depth", Weight: 1}})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	if got.Text != "body" || len(got.Dimensions) != 1 || got.Dimensions[0].Name != "technical_depth" {
		t.Fatalf("unexpected request payload: %+v", got)
	}
	if scores["technical_depth"] != json.Number("7.5") {
		t.Fatalf("technical_depth = %#v", scores["technical_depth"])
	}
	if scores["bias_mitigation"] != "N/A" {
		t.Fatalf("bias_mitigation = %#v", scores["bias_mitigation"])
	}
}

func TestScoreClassifiesStatus(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusServiceUnavailable)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	client := NewClient(config.ServiceConfig{Endpoint: srv.URL})

	_, err := client.Score(context.Background(), "body", nil)
	if !errors.Is(err, domain.ErrTransientNetwork) {
		t.Fatalf("503 should be transient, got %v", err)
	}

	status.Store(http.StatusUnauthorized)
	_, err = client.Score(context.Background(), "body", nil)
	if !errors.Is(err, domain.ErrPermanentFetch) {
		t.Fatalf("401 should be permanent, got %v", err)
	}
}

func TestScoreRejectsEmptyScores(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"scores": {}}`))
	}))
	defer srv.Close()

	_, err := NewClient(config.ServiceConfig{Endpoint: srv.URL}).Score(context.Background(), "body", nil)
	if !errors.Is(err, domain.ErrScoringParse) {
		t.Fatalf("expected scoring parse error, got %v", err)
	}
}
