package sap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pragavigithub/Emrald-BarCode-20251206-sub000/internal/apperr"
)

// newTestClient starts a stub Service Layer that accepts any login and
// delegates every other request to handler.
func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *int) {
	t.Helper()
	logins := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/Login" {
			logins++
			json.NewEncoder(w).Encode(map[string]string{"SessionId": "sess-1"})
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "SBO_TEST", "manager", "secret", 5*time.Second), &logins
}

func TestGetTransferRequest_WellFormedQuery(t *testing.T) {
	var gotFilter, gotRawQuery string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotFilter = r.URL.Query().Get("$filter")
		gotRawQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(map[string]interface{}{
			"value": []map[string]interface{}{
				{"DocEntry": 300, "DocNum": 300, "DocumentStatus": DocStatusOpen},
			},
		})
	})

	req, err := client.GetTransferRequest(context.Background(), "300")
	if err != nil {
		t.Fatalf("get transfer request: %v", err)
	}
	if req.DocEntry != 300 {
		t.Errorf("doc entry = %d, want 300", req.DocEntry)
	}
	if gotFilter != "DocNum eq 300" {
		t.Errorf("$filter decoded to %q, want \"DocNum eq 300\"", gotFilter)
	}
	if strings.Contains(gotRawQuery, " ") {
		t.Errorf("raw query contains a literal space: %q", gotRawQuery)
	}
}

func TestGetItemClassification_EscapesItemCode(t *testing.T) {
	var gotPath, gotEscaped string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotEscaped = r.URL.EscapedPath()
		json.NewEncoder(w).Encode(itemMasterWire{
			ItemCode:            "ITEM A",
			ManageSerialNumbers: "tYES",
			ManageBatchNumbers:  "tNO",
		})
	})

	cls, err := client.GetItemClassification(context.Background(), "ITEM A")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if !cls.SerialRequired || cls.BatchRequired {
		t.Errorf("classification = serial %v / batch %v", cls.SerialRequired, cls.BatchRequired)
	}
	if gotPath != "/Items('ITEM A')" {
		t.Errorf("path decoded to %q", gotPath)
	}
	if !strings.Contains(gotEscaped, "ITEM%20A") {
		t.Errorf("space in item code not percent-encoded: %q", gotEscaped)
	}
}

func TestDoRequest_ReloginOn401(t *testing.T) {
	calls := 0
	client, logins := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if cookie, err := r.Cookie("B1SESSION"); err != nil || cookie.Value == "" {
			t.Errorf("retry carried no session cookie")
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"value": []map[string]interface{}{{"AbsEntry": 42}},
		})
	})

	abs, err := client.GetBinAbsEntry(context.Background(), "A-01-01", "WH01")
	if err != nil {
		t.Fatalf("resolve bin: %v", err)
	}
	if abs != 42 {
		t.Errorf("abs entry = %d, want 42", abs)
	}
	if *logins != 2 {
		t.Errorf("logins = %d, want 2 (initial + refresh after 401)", *logins)
	}
}

func TestPostStockTransfer_RejectionParsed(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{
				"code":    -5002,
				"message": map[string]string{"value": "Quantity falls below minimum"},
			},
		})
	})

	_, err := client.PostStockTransfer(context.Background(), &StockTransfer{})
	if !apperr.IsExternalRejected(err) {
		t.Fatalf("expected external rejected, got %v", err)
	}
	if !strings.Contains(err.Error(), "Quantity falls below minimum") {
		t.Errorf("rejection message lost: %v", err)
	}
}
