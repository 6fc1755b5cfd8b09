package telegram_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"mychat/backend/internal/telegram"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	ChatID string
	Text   string
}

// fakeBotAPI answers getMe and records sendMessage calls.
type fakeBotAPI struct {
	server  *httptest.Server
	release chan struct{}
	slow    bool

	mu   sync.Mutex
	sent []sentMessage
}

func newFakeBotAPI(t *testing.T, slow bool) *fakeBotAPI {
	t.Helper()
	f := &fakeBotAPI{release: make(chan struct{}), slow: slow}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(func() {
		close(f.release)
		f.server.Close()
	})
	return f
}

func (f *fakeBotAPI) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		writeResult(w, map[string]interface{}{"id": 1, "is_bot": true, "first_name": "MyChat", "username": "mychat_bot"})
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		if f.slow {
			select {
			case <-f.release:
			case <-time.After(2 * time.Second):
			}
		}
		// Falls back to the url-encoded body when the request is not multipart.
		_ = r.ParseMultipartForm(1 << 20)
		f.mu.Lock()
		f.sent = append(f.sent, sentMessage{ChatID: r.FormValue("chat_id"), Text: r.FormValue("text")})
		f.mu.Unlock()
		writeResult(w, map[string]interface{}{
			"message_id": 10,
			"date":       0,
			"chat":       map[string]interface{}{"id": 1, "type": "private"},
		})
	default:
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": false, "error_code": 404, "description": "Not Found"})
	}
}

func (f *fakeBotAPI) Sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func (f *fakeBotAPI) Bot(t *testing.T) *tgbotapi.BotAPI {
	t.Helper()
	bot, err := telegram.NewBotAPI("test-token", f.server.URL+"/bot%s/%s", 5*time.Second)
	require.NoError(t, err)
	return bot
}

func writeResult(w http.ResponseWriter, result interface{}) {
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "result": result})
}
