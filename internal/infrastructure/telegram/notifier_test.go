package telegram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Sentinel6G/internal/config"
)

func TestPublishDigest(t *testing.T) {
	t.Parallel()

	var text, chat string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botT0KEN/sendMessage", r.URL.Path)
		require.NoError(t, r.ParseForm())
		text = r.PostForm.Get("text")
		chat = r.PostForm.Get("chat_id")
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	n := NewNotifier(config.TelegramConfig{BotToken: "T0KEN", ChatID: "-100", BaseURL: srv.URL})
	require.NoError(t, n.PublishDigest(context.Background(), strings.Repeat("ж", maxMessageRunes+10)))
	assert.Equal(t, "-100", chat)
	assert.Equal(t, maxMessageRunes, utf8.RuneCountInString(text))
	assert.True(t, strings.HasSuffix(text, "…"))
}

func TestPublishDigestErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"ok":false,"description":"chat not found"}`)
	}))
	defer srv.Close()

	err := NewNotifier(config.TelegramConfig{BotToken: "t", ChatID: "c", BaseURL: srv.URL}).PublishDigest(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")

	err = NewNotifier(config.TelegramConfig{}).PublishDigest(context.Background(), "hi")
	assert.Error(t, err)

	assert.NoError(t, NewNotifier(config.TelegramConfig{BotToken: "t", ChatID: "c", BaseURL: srv.URL}).PublishDigest(context.Background(), "  "))
}
