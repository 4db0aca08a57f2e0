package dedup_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/notice-crawler/internal/dedup"
)

const testAPIKey = "secret-key"

// vectorService mimics the vector service document API in memory.
type vectorService struct {
	mu     sync.Mutex
	docs   map[string]dedup.Document
	status string
	auth   []string
}

func newVectorService() *vectorService {
	return &vectorService{docs: make(map[string]dedup.Document), status: "stored"}
}

func (v *vectorService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.auth = append(v.auth, r.Header.Get("Authorization"))
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/vectors/documents":
		var doc dedup.Document
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		v.docs[doc.ID] = doc
		_ = json.NewEncoder(w).Encode(map[string]string{"status": v.status, "document_id": doc.ID})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/vectors/documents/"):
		id := strings.TrimPrefix(r.URL.Path, "/vectors/documents/")
		if _, ok := v.docs[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"document not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"found"}`))
	case r.Method == http.MethodDelete && r.URL.Path == "/vectors/documents":
		n := len(v.docs)
		v.docs = make(map[string]dedup.Document)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "cleared", "deleted": n})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestVectorStore_RoundTrip(t *testing.T) {
	t.Parallel()

	svc := newVectorService()
	server := httptest.NewServer(svc)
	defer server.Close()

	store := dedup.NewVectorStore(server.URL+"/", testAPIKey, time.Second)
	ctx := context.Background()

	exists, err := store.Exists(ctx, testItemID)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Store(ctx, dedup.Document{ID: testItemID, Text: "通知正文"}))

	exists, err = store.Exists(ctx, testItemID)
	require.NoError(t, err)
	assert.True(t, exists)

	n, err := store.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	for _, header := range svc.auth {
		assert.Equal(t, "Bearer "+testAPIKey, header)
	}
	assert.Empty(t, svc.docs)
}

func TestVectorStore_AcceptedStatuses(t *testing.T) {
	t.Parallel()

	for status, wantErr := range map[string]bool{"stored": false, "QUEUED": false, "updated": false, "ignored": true} {
		svc := newVectorService()
		svc.status = status
		server := httptest.NewServer(svc)

		err := dedup.NewVectorStore(server.URL, "", time.Second).Store(context.Background(), dedup.Document{ID: "x"})
		server.Close()

		if wantErr {
			require.ErrorIs(t, err, dedup.ErrStoreRejected, status)
		} else {
			require.NoError(t, err, status)
		}
	}
}

func TestVectorStore_NoAuthHeaderWithoutKey(t *testing.T) {
	t.Parallel()

	svc := newVectorService()
	server := httptest.NewServer(svc)
	defer server.Close()

	_, err := dedup.NewVectorStore(server.URL, "", time.Second).Exists(context.Background(), "x")
	require.NoError(t, err)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Equal(t, []string{""}, svc.auth)
}

func TestVectorStore_ServerErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	store := dedup.NewVectorStore(server.URL, "", time.Second)

	_, err := store.Exists(context.Background(), "x")
	require.Error(t, err)
	require.Error(t, store.Store(context.Background(), dedup.Document{ID: "x"}))
	_, err = store.Clear(context.Background())
	require.Error(t, err)
}

func TestVectorStore_Unreachable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	d := dedup.New(dedup.NewVectorStore(baseURL, "", 200*time.Millisecond), nil, nil)

	assert.False(t, d.Seen(context.Background(), "x"))
	assert.False(t, d.Record(context.Background(), "x", "c", nil))
}
