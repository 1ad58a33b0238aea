package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDigest(t *testing.T) {
	t.Parallel()

	var (
		path   string
		chatID string
		text   string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, r.ParseForm())
		chatID = r.PostForm.Get("chat_id")
		text = r.PostForm.Get("text")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewNotifier("token", "42").WithAPIBase(server.URL+"/", server.Client())
	require.NoError(t, n.PublishDigest(context.Background(), "3 new decisions"))

	assert.Equal(t, "/bottoken/sendMessage", path)
	assert.Equal(t, "42", chatID)
	assert.Equal(t, "3 new decisions", text)
}

func TestPublishDigestErrors(t *testing.T) {
	t.Parallel()

	require.Error(t, NewNotifier("", "42").PublishDigest(context.Background(), "x"))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	n := NewNotifier("token", "42").WithAPIBase(server.URL, server.Client())
	require.Error(t, n.PublishDigest(context.Background(), "x"))
}
