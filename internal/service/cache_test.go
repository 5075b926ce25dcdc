package service

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

func newCacheRouter(t *testing.T, m *mockRepo) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	log := zerolog.Nop()
	svc := NewService(m, &log, rdb, Config{
		BaseURL: "https://naano.test",
		HomeURL: testHome,
	})

	router := gin.New()
	router.GET("/c/:hash", svc.Redirect)
	router.POST("/v1/links", svc.CreateLink)
	return router, mr
}

func locationQuery(t *testing.T, w *httptest.ResponseRecorder) url.Values {
	t.Helper()
	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad Location header: %v", err)
	}
	return loc.Query()
}

// A visit served off the cache must carry the same campaign parameters as
// one resolved from the database, utm_content included.
func TestRedirectCacheHitKeepsCreatorAttribution(t *testing.T) {
	m := newMockRepo()
	seedLink(m)
	router, mr := newCacheRouter(t, m)

	// First visit populates the cache from the DB-resolved view.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/c/abc123", nil))
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if !mr.Exists("link:abc123") {
		t.Fatal("resolved link was not cached")
	}
	if mr.TTL("link:abc123") != linkCacheTTL {
		t.Errorf("cache TTL = %s, want %s", mr.TTL("link:abc123"), linkCacheTTL)
	}

	// Second visit with the DB unreachable: the cache alone must serve it.
	m.getErr = io.ErrUnexpectedEOF
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/c/abc123", nil))
	if w.Code != http.StatusFound {
		t.Fatalf("cached visit status = %d, want 302", w.Code)
	}
	q := locationQuery(t, w)
	for key, want := range map[string]string{
		"utm_source":   "naano",
		"utm_medium":   "ambassador",
		"utm_content":  "creator-9",
		"utm_campaign": "collab-1",
	} {
		if q.Get(key) != want {
			t.Errorf("cached visit query %s = %q, want %q", key, q.Get(key), want)
		}
	}
}

// Creating a link must not put a creator-less view in the cache; the first
// visit resolves the collaboration chain and carries utm_content.
func TestCreateLinkDoesNotPoisonCache(t *testing.T) {
	creator := "creator-9"
	m := newMockRepo()
	m.creatorID = &creator
	router, mr := newCacheRouter(t, m)

	body, _ := json.Marshal(map[string]interface{}{
		"destination_url":  "https://shop.example.com/",
		"collaboration_id": "collab-1",
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/links", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", w.Code)
	}

	var resp struct {
		Data struct {
			Hash string `json:"hash"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if mr.Exists("link:" + resp.Data.Hash) {
		t.Error("create must not cache a link before its creator is resolvable")
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/c/"+resp.Data.Hash, nil))
	if w.Code != http.StatusFound {
		t.Fatalf("visit status = %d, want 302", w.Code)
	}
	if got := locationQuery(t, w).Get("utm_content"); got != "creator-9" {
		t.Errorf("utm_content = %q, want creator-9", got)
	}

	// And the view cached by that visit keeps the creator too.
	m.getErr = io.ErrUnexpectedEOF
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/c/"+resp.Data.Hash, nil))
	if got := locationQuery(t, w).Get("utm_content"); got != "creator-9" {
		t.Errorf("cached utm_content = %q, want creator-9", got)
	}
}

func TestRedirectCorruptCacheFallsBackToDB(t *testing.T) {
	m := newMockRepo()
	seedLink(m)
	router, mr := newCacheRouter(t, m)

	mr.Set("link:abc123", "{not json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/c/abc123", nil))
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	q := locationQuery(t, w)
	if q.Get("utm_campaign") != "collab-1" || q.Get("utm_content") != "creator-9" {
		t.Errorf("corrupt cache did not fall back to the DB view: %v", q)
	}
}
