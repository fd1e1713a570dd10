package telegram

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/cry-relay/internal/notify"
)

const (
	testToken = "123:abc"
	// okMessage is a minimal successful sendMessage answer.
	okMessage = `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`
)

// requestParams flattens a Bot API request body, sent either as a form or as JSON.
func requestParams(t *testing.T, r *http.Request) map[string]string {
	t.Helper()

	out := make(map[string]string)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var raw map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))

		for k, v := range raw {
			var s string
			if json.Unmarshal(v, &s) == nil {
				out[k] = s

				continue
			}

			out[k] = string(v)
		}

		return out
	}

	require.NoError(t, r.ParseMultipartForm(1<<20))

	for k, v := range r.MultipartForm.Value {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}

	return out
}

// TestNew_Validates rejects missing credentials.
func TestNew_Validates(t *testing.T) {
	t.Parallel()

	_, err := New("https://api.telegram.org", "", "1")
	require.ErrorIs(t, err, ErrTokenRequired)

	_, err = New("https://api.telegram.org", testToken, "")
	require.ErrorIs(t, err, ErrChatRequired)
}

// TestSend_PostsMessageWithKeyboard checks the request path and parameters.
func TestSend_PostsMessageWithKeyboard(t *testing.T) {
	t.Parallel()

	var (
		gotPath   string
		gotParams map[string]string
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotParams = requestParams(t, r)

		_, _ = w.Write([]byte(okMessage))
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/", testToken, "-100500")
	require.NoError(t, err)

	err = c.Send(context.Background(), notify.Message{
		Text:    "Baby is crying",
		Actions: []string{"a", "b", "c"},
	})
	require.NoError(t, err)

	require.Equal(t, "/bot"+testToken+"/sendMessage", gotPath)
	require.Contains(t, gotParams["chat_id"], "-100500")
	require.Equal(t, "Baby is crying", gotParams["text"])

	var markup models.ReplyKeyboardMarkup
	require.NoError(t, json.Unmarshal([]byte(gotParams["reply_markup"]), &markup))
	require.Equal(t, [][]models.KeyboardButton{{{Text: "a"}, {Text: "b"}}, {{Text: "c"}}}, markup.Keyboard)
	require.True(t, markup.ResizeKeyboard)
	require.True(t, markup.IsPersistent)
}

// TestSend_NoActionsSendsNoKeyboard sends a plain message without buttons.
func TestSend_NoActionsSendsNoKeyboard(t *testing.T) {
	t.Parallel()

	var params map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params = requestParams(t, r)
		_, _ = w.Write([]byte(okMessage))
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, testToken, "1")
	require.NoError(t, err)
	require.NoError(t, c.Send(context.Background(), notify.Message{Text: "plain"}))

	require.Equal(t, "plain", params["text"])
	require.NotContains(t, params["reply_markup"], "keyboard")
}

// TestSend_Failures surfaces API failures as ErrSendFailed.
func TestSend_Failures(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		status int
		body   string
	}{
		"bad request": {status: http.StatusBadRequest, body: `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`},
		"forbidden":   {status: http.StatusForbidden, body: `{"ok":false,"error_code":403,"description":"Forbidden"}`},
		"no body":     {status: http.StatusBadGateway, body: ``},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			t.Cleanup(srv.Close)

			c, err := New(srv.URL, testToken, "1")
			require.NoError(t, err)

			err = c.Send(context.Background(), notify.Message{Text: "x"})
			require.ErrorIs(t, err, ErrSendFailed)
			require.NotContains(t, err.Error(), testToken)
		})
	}
}

// TestSend_TimeoutRedactsToken checks the timeout applies and the token never leaks into errors.
func TestSend_TimeoutRedactsToken(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	const secret = "987:secret-token"

	c, err := New(srv.URL, secret, "1", WithCallTimeout(50*time.Millisecond))
	require.NoError(t, err)

	start := time.Now()
	err = c.Send(context.Background(), notify.Message{Text: "x"})
	require.ErrorIs(t, err, ErrSendFailed)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 2*time.Second)
	require.False(t, strings.Contains(err.Error(), secret), err.Error())
}
