package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/opsledger/opsledger/internal/models"
)

func testItem() models.SyncQueueItem {
	return models.SyncQueueItem{
		ID:        "q-1",
		TenantID:  "t-1",
		StoreName: "incidents",
		EntityID:  "inc-1",
		Action:    models.ActionUpdate,
		Payload:   json.RawMessage(`{"title":"degraded"}`),
		Timestamp: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Status:    models.QueueStatusInProgress,
	}
}

func TestHTTPTransportDeliverAck(t *testing.T) {
	var gotBody deliveryBody
	var gotAuth, gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode delivery body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tp := NewHTTPTransport(srv.URL, WithAPIKey("secret-key"))
	if err := tp.Deliver(context.Background(), testItem()); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	if gotPath != "/api/v1/sync" {
		t.Errorf("path: got %s", gotPath)
	}
	if gotAuth != "Bearer secret-key" {
		t.Errorf("authorization: got %q", gotAuth)
	}
	if gotBody.EntityID != "inc-1" || gotBody.Action != models.ActionUpdate {
		t.Errorf("body: %+v", gotBody)
	}
	if gotBody.Timestamp != "2026-03-14T09:26:53Z" {
		t.Errorf("timestamp: got %s", gotBody.Timestamp)
	}
}

func TestHTTPTransportStatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantClass models.DeliveryClass
	}{
		{"conflict", http.StatusConflict, models.DeliveryConflict},
		{"server error", http.StatusInternalServerError, models.DeliveryTransient},
		{"bad gateway", http.StatusBadGateway, models.DeliveryTransient},
		{"rate limited", http.StatusTooManyRequests, models.DeliveryTransient},
		{"request timeout", http.StatusRequestTimeout, models.DeliveryTransient},
		{"bad request", http.StatusBadRequest, models.DeliveryPermanent},
		{"unauthorized", http.StatusUnauthorized, models.DeliveryPermanent},
		{"gone", http.StatusGone, models.DeliveryPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := NewHTTPTransport(srv.URL).Deliver(context.Background(), testItem())
			if err == nil {
				t.Fatal("expected delivery error")
			}
			if got := models.ClassifyDeliveryError(err); got != tt.wantClass {
				t.Errorf("class: got %v, want %v", got, tt.wantClass)
			}
		})
	}
}

func TestHTTPTransportConflictCarriesServerVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"title":"remote wins"}`))
	}))
	defer srv.Close()

	err := NewHTTPTransport(srv.URL).Deliver(context.Background(), testItem())

	var conflict *models.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if string(conflict.ServerVersion) != `{"title":"remote wins"}` {
		t.Errorf("server version: got %s", conflict.ServerVersion)
	}
}

func TestHTTPTransportNetworkFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	err := NewHTTPTransport(srv.URL).Deliver(context.Background(), testItem())
	if err == nil {
		t.Fatal("expected network error")
	}
	if got := models.ClassifyDeliveryError(err); got != models.DeliveryTransient {
		t.Errorf("class: got %v, want transient", got)
	}
}
