package callmebot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/tgifai/teleworker/internal/config"
)

func newTestChannel(t *testing.T, handler http.HandlerFunc) *CallMeBot {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	ch, err := NewChannel("voice", &config.ChannelConfig{
		Type:   "callmebot",
		Config: map[string]interface{}{"user": "@me", "base_url": srv.URL},
	})
	if err != nil {
		t.Fatalf("NewChannel() error = %v", err)
	}
	return ch
}

func TestCall_Success(t *testing.T) {
	var (
		mu  sync.Mutex
		got url.Values
	)
	ch := newTestChannel(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = r.URL.Query()
		mu.Unlock()
		_, _ = w.Write([]byte("<p>Authorization OK</p>"))
	})

	long := strings.Repeat("x", 300)
	if err := ch.Call(context.Background(), long); err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if got.Get("user") != "@me" || got.Get("lang") != defaultLang || got.Get("rpt") != "2" {
		t.Fatalf("query = %v", got)
	}
	if n := len(got.Get("text")); n != MaxTextLen {
		t.Fatalf("text length = %d, want %d", n, MaxTextLen)
	}
}

func TestCall_LineBusyIsQueued(t *testing.T) {
	ch := newTestChannel(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Line is busy, your call was queued"))
	})
	if err := ch.Call(context.Background(), "hi"); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
}

func TestCall_UnexpectedBody(t *testing.T) {
	ch := newTestChannel(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("You need to authorize CallMeBot"))
	})
	if err := ch.Call(context.Background(), "hi"); err == nil {
		t.Fatal("expected error for unexpected response")
	}
}

func TestParseConfig_RequiresUser(t *testing.T) {
	if _, err := ParseConfig(map[string]interface{}{}); err == nil {
		t.Fatal("expected error without user")
	}
}
