package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/autoguardian/negotiator/internal/listing"
	"github.com/autoguardian/negotiator/internal/negotiation"
	"github.com/autoguardian/negotiator/internal/store"
)

const testToken = "owner-token"

// fakeStore stands in for the Postgres store across all three interfaces
// the server consumes.
type fakeStore struct {
	sessions map[uuid.UUID]*negotiation.Session
	listings map[int64]listing.Listing
	saveErr  error
	listErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[uuid.UUID]*negotiation.Session),
		listings: map[int64]listing.Listing{
			42: {
				ID:          42,
				Vehicle:     listing.Vehicle{Year: 2018, Make: "Toyota", Model: "Aqua"},
				AskingPrice: 20000,
				FloorPrice:  16000,
				Features:    []string{"new tyres", "alloy wheels"},
			},
		},
	}
}

func (f *fakeStore) Load(ctx context.Context, id uuid.UUID) (*negotiation.Session, error) {
	sess, ok := f.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return sess.Clone(), nil
}

func (f *fakeStore) Save(ctx context.Context, sess *negotiation.Session) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.sessions[sess.ID] = sess.Clone()
	return nil
}

func (f *fakeStore) GetListing(ctx context.Context, id int64) (listing.Listing, error) {
	l, ok := f.listings[id]
	if !ok {
		return listing.Listing{}, store.ErrNotFound
	}
	return l, nil
}

func (f *fakeStore) ListingNegotiations(ctx context.Context, listingID int64) ([]*negotiation.Session, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*negotiation.Session
	for _, sess := range f.sessions {
		if sess.ListingID == listingID && sess.BuyerContact != nil {
			out = append(out, sess.Clone())
		}
	}
	return out, nil
}

func newTestServer(fs *fakeStore) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := negotiation.NewEngine(fs, nil, nil, logger, time.Second)
	return NewServer(8760, testToken, engine, fs, fs)
}

func postJSON(t *testing.T, srv *Server, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest("POST", path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(newFakeStore())

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(newFakeStore())

	req := httptest.NewRequest("GET", "/api/v1/negotiator/status", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["service"] != "negotiator" {
		t.Errorf("expected service negotiator, got %q", body["service"])
	}
}

func TestNegotiateEndpoint(t *testing.T) {
	srv := newTestServer(newFakeStore())

	w := postJSON(t, srv, "/api/v1/listings/42/negotiate",
		map[string]any{"message": "can you do 15000?"}, "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body negotiateResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Reply == "" {
		t.Error("expected a reply")
	}
	if body.CurrentOffer != 16800 {
		t.Errorf("expected counter 16800, got %f", body.CurrentOffer)
	}
	if body.Status != "open" {
		t.Errorf("expected open, got %q", body.Status)
	}
	if _, err := uuid.Parse(body.NegotiationID); err != nil {
		t.Errorf("expected a negotiation id, got %q", body.NegotiationID)
	}
	if len(body.ChatHistory) != 2 {
		t.Errorf("expected 2 chat messages, got %d", len(body.ChatHistory))
	}
}

func TestNegotiateEndpoint_ResumesSession(t *testing.T) {
	fs := newFakeStore()
	srv := newTestServer(fs)

	first := postJSON(t, srv, "/api/v1/listings/42/negotiate",
		map[string]any{"message": "can you do 15000?"}, "")
	var opening negotiateResponse
	if err := json.NewDecoder(first.Body).Decode(&opening); err != nil {
		t.Fatalf("decode: %v", err)
	}

	second := postJSON(t, srv, "/api/v1/listings/42/negotiate",
		map[string]any{"message": "can you do 17000?", "negotiation_id": opening.NegotiationID}, "")
	if second.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", second.Code, second.Body.String())
	}

	var body negotiateResponse
	if err := json.NewDecoder(second.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.NegotiationID != opening.NegotiationID {
		t.Errorf("expected same session, got %q vs %q", body.NegotiationID, opening.NegotiationID)
	}
	if len(body.ChatHistory) != 4 {
		t.Errorf("expected 4 chat messages, got %d", len(body.ChatHistory))
	}
}

func TestNegotiateEndpoint_Errors(t *testing.T) {
	tests := []struct {
		name string
		path string
		body map[string]any
		want int
	}{
		{
			name: "empty message",
			path: "/api/v1/listings/42/negotiate",
			body: map[string]any{"message": "  "},
			want: http.StatusBadRequest,
		},
		{
			name: "bad listing id",
			path: "/api/v1/listings/not-a-number/negotiate",
			body: map[string]any{"message": "hi"},
			want: http.StatusBadRequest,
		},
		{
			name: "unknown listing",
			path: "/api/v1/listings/7/negotiate",
			body: map[string]any{"message": "hi"},
			want: http.StatusNotFound,
		},
		{
			name: "unknown negotiation",
			path: "/api/v1/listings/42/negotiate",
			body: map[string]any{"message": "hi", "negotiation_id": uuid.NewString()},
			want: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(newFakeStore())
			w := postJSON(t, srv, tt.path, tt.body, "")
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestNegotiateEndpoint_StorageFailureIsRetryable(t *testing.T) {
	fs := newFakeStore()
	fs.saveErr = context.DeadlineExceeded
	srv := newTestServer(fs)

	w := postJSON(t, srv, "/api/v1/listings/42/negotiate",
		map[string]any{"message": "can you do 15000?"}, "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func seedSession(t *testing.T, fs *fakeStore, status negotiation.Status) *negotiation.Session {
	t.Helper()
	l := fs.listings[42]
	sess, err := negotiation.NewSession(l)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	sess.Status = status
	sess.FinalOffer = 16500
	fs.sessions[sess.ID] = sess
	return sess
}

func TestAcceptEndpoint(t *testing.T) {
	fs := newFakeStore()
	sess := seedSession(t, fs, negotiation.StatusFinalOfferMade)
	srv := newTestServer(fs)

	w := postJSON(t, srv, "/api/v1/negotiations/"+sess.ID.String()+"/accept", nil, testToken)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body transitionResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "finalized" {
		t.Errorf("expected finalized, got %q", body.Status)
	}
	if body.FinalPrice != 16500 {
		t.Errorf("expected 16500, got %f", body.FinalPrice)
	}
}

func TestAcceptEndpoint_WrongState(t *testing.T) {
	fs := newFakeStore()
	sess := seedSession(t, fs, negotiation.StatusOpen)
	srv := newTestServer(fs)

	w := postJSON(t, srv, "/api/v1/negotiations/"+sess.ID.String()+"/accept", nil, testToken)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}

func TestRejectEndpoint(t *testing.T) {
	fs := newFakeStore()
	sess := seedSession(t, fs, negotiation.StatusOpen)
	srv := newTestServer(fs)

	w := postJSON(t, srv, "/api/v1/negotiations/"+sess.ID.String()+"/reject", nil, testToken)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body transitionResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "rejected" {
		t.Errorf("expected rejected, got %q", body.Status)
	}
}

func TestTransitionEndpoint_Errors(t *testing.T) {
	fs := newFakeStore()
	srv := newTestServer(fs)

	w := postJSON(t, srv, "/api/v1/negotiations/"+uuid.NewString()+"/accept", nil, testToken)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown id: expected 404, got %d", w.Code)
	}

	w = postJSON(t, srv, "/api/v1/negotiations/not-a-uuid/accept", nil, testToken)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad id: expected 400, got %d", w.Code)
	}
}

func TestOwnerEndpointsRequireToken(t *testing.T) {
	fs := newFakeStore()
	sess := seedSession(t, fs, negotiation.StatusFinalOfferMade)
	srv := newTestServer(fs)

	paths := []string{
		"/api/v1/negotiations/" + sess.ID.String() + "/accept",
		"/api/v1/negotiations/" + sess.ID.String() + "/reject",
	}
	for _, path := range paths {
		if w := postJSON(t, srv, path, nil, ""); w.Code != http.StatusUnauthorized {
			t.Errorf("%s without token: expected 401, got %d", path, w.Code)
		}
		if w := postJSON(t, srv, path, nil, "wrong"); w.Code != http.StatusUnauthorized {
			t.Errorf("%s with wrong token: expected 401, got %d", path, w.Code)
		}
	}

	req := httptest.NewRequest("GET", "/api/v1/listings/42/negotiations", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("list without token: expected 401, got %d", w.Code)
	}
}

func TestListNegotiationsEndpoint(t *testing.T) {
	fs := newFakeStore()
	sess := seedSession(t, fs, negotiation.StatusFinalized)
	sess.BuyerContact = &negotiation.Contact{Name: "John Perera", Phone: "0711234567"}
	seedSession(t, fs, negotiation.StatusOpen) // anonymous, excluded
	srv := newTestServer(fs)

	req := httptest.NewRequest("GET", "/api/v1/listings/42/negotiations", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		ListingID    int64                `json:"listing_id"`
		Negotiations []negotiationSummary `json:"negotiations"`
		Count        int                  `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 1 {
		t.Fatalf("expected 1 negotiation, got %d", body.Count)
	}
	got := body.Negotiations[0]
	if got.BuyerName != "John Perera" {
		t.Errorf("expected buyer name, got %q", got.BuyerName)
	}
	if got.FinalPrice != 16500 {
		t.Errorf("expected 16500, got %f", got.FinalPrice)
	}
	if got.Status != "finalized" {
		t.Errorf("expected finalized, got %q", got.Status)
	}
}
