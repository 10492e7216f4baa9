package twitchapi

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/onnwee/streamcast/testutil"
)

func TestTokenSource_GetCached(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	var calls atomic.Int32
	mock.MockOAuthTokenResponse("test-token-123", 3600)
	inner := mock.Handlers["/oauth2/token"]
	mock.Handlers["/oauth2/token"] = func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" || r.PostForm.Get("client_id") != "cid" {
			t.Errorf("unexpected token request form: %v", r.PostForm)
		}
		inner(w, r)
	}

	ts := &TokenSource{ClientID: "cid", ClientSecret: "secret", HTTPClient: mock.RewriteClient()}
	for i := 0; i < 3; i++ {
		tok, err := ts.Get(context.Background())
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if tok != "test-token-123" {
			t.Errorf("Get() = %q", tok)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("token endpoint called %d times, want 1", calls.Load())
	}
}

func TestTokenSource_GetMissingCredentials(t *testing.T) {
	ts := &TokenSource{}
	if _, err := ts.Get(context.Background()); err == nil {
		t.Error("expected error for missing credentials")
	}
}

func TestTokenSource_GetServerError(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.Handlers["/oauth2/token"] = func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":400,"message":"invalid client"}`, http.StatusBadRequest)
	}
	ts := &TokenSource{ClientID: "cid", ClientSecret: "bad", HTTPClient: mock.RewriteClient()}
	if _, err := ts.Get(context.Background()); err == nil {
		t.Error("expected error from failing token endpoint")
	}
}

func TestTokenSource_ConcurrentAccess(t *testing.T) {
	mock := testutil.NewMockTwitchServer(t)
	mock.MockOAuthTokenResponse("shared", 3600)
	ts := &TokenSource{ClientID: "cid", ClientSecret: "secret", HTTPClient: mock.RewriteClient()}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tok, err := ts.Get(context.Background()); err != nil || tok != "shared" {
				t.Errorf("Get() = %q, %v", tok, err)
			}
		}()
	}
	wg.Wait()
}
