package cloudsync

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	pinnerrors "github.com/maruel/pinn/internal/errors"
)

// unreachable is a base URL nothing listens on.
const unreachable = "http://127.0.0.1:1"

func TestClientGet(t *testing.T) {
	ctx := context.Background()

	t.Run("FirstCandidateWithData", func(t *testing.T) {
		empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "null")
		}))
		defer empty.Close()
		full := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"hello":"world"}`)
		}))
		defer full.Close()

		c := newClient([]string{empty.URL, full.URL}, "key")
		raw, err := c.Get(ctx, "users/x/notes.json")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if string(raw) != `{"hello":"world"}` {
			t.Errorf("unexpected body: %s", raw)
		}
	})

	t.Run("AllNullMeansNoData", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "null")
		}))
		defer srv.Close()

		c := newClient([]string{srv.URL}, "key")
		raw, err := c.Get(ctx, "users/x/notes.json")
		if err != nil {
			t.Fatalf("null should not be an error: %v", err)
		}
		if raw != nil {
			t.Errorf("expected no data, got %s", raw)
		}
	})

	t.Run("NullBeatsLaterStatusError", func(t *testing.T) {
		empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "null")
		}))
		defer empty.Close()
		missing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer missing.Close()

		c := newClient([]string{empty.URL, missing.URL}, "key")
		raw, err := c.Get(ctx, "users/x/notes.json")
		if err != nil {
			t.Fatalf("an authoritative null should win over a later 404: %v", err)
		}
		if raw != nil {
			t.Errorf("expected no data, got %s", raw)
		}
	})

	t.Run("AnonymousRetryOnRejectedAuth", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("auth") != "" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			io.WriteString(w, `[1]`)
		}))
		defer srv.Close()

		c := newClient([]string{srv.URL}, "badkey")
		raw, err := c.Get(ctx, "users/x/notes.json")
		if err != nil {
			t.Fatalf("anonymous retry should have succeeded: %v", err)
		}
		if string(raw) != "[1]" {
			t.Errorf("unexpected body: %s", raw)
		}
	})

	t.Run("Unreachable", func(t *testing.T) {
		c := newClient([]string{unreachable}, "key")
		_, err := c.Get(ctx, "users/x/notes.json")
		if !pinnerrors.Is(err, pinnerrors.ErrNetwork) {
			t.Errorf("expected NETWORK error, got %v", err)
		}
	})

	t.Run("DeniedEverywhere", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		c := newClient([]string{srv.URL}, "key")
		_, err := c.Get(ctx, "users/x/notes.json")
		if !pinnerrors.Is(err, pinnerrors.ErrRemoteDenied) {
			t.Errorf("expected REMOTE_DENIED, got %v", err)
		}
	})
}

func TestClientPut(t *testing.T) {
	ctx := context.Background()

	t.Run("FallsThroughToWorkingCandidate", func(t *testing.T) {
		var got string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			got = string(body)
		}))
		defer srv.Close()

		c := newClient([]string{unreachable, srv.URL}, "key")
		if err := c.Put(ctx, "users/x/notes.json", map[string]string{"a": "b"}); err != nil {
			t.Fatalf("put failed: %v", err)
		}
		if got != `{"a":"b"}` {
			t.Errorf("unexpected body: %s", got)
		}
	})

	t.Run("AuthFailure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		c := newClient([]string{srv.URL}, "key")
		err := c.Put(ctx, "users/x/notes.json", 1)
		if !pinnerrors.Is(err, pinnerrors.ErrRemoteAuth) {
			t.Errorf("expected REMOTE_AUTH, got %v", err)
		}
	})
}

func TestClientProbe(t *testing.T) {
	ctx := context.Background()

	t.Run("NotFoundIsReachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		c := newClient([]string{srv.URL}, "key")
		if err := c.Probe(ctx, "users/x/_metadata.json"); err != nil {
			t.Errorf("a definitive 404 proves reachability: %v", err)
		}
	})

	t.Run("NothingAnswers", func(t *testing.T) {
		c := newClient([]string{unreachable}, "key")
		if err := c.Probe(ctx, "users/x/_metadata.json"); !pinnerrors.Is(err, pinnerrors.ErrNetwork) {
			t.Errorf("expected NETWORK error, got %v", err)
		}
	})
}
