package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpanvictor/quil-bridge/pkg/io/audio"
)

func completionJSON(audioData string) string {
	return `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-audio-preview",
  "choices": [{
    "index": 0,
    "finish_reason": "stop",
    "message": {
      "role": "assistant",
      "content": null,
      "refusal": null,
      "audio": {"id": "audio_1", "data": "` + audioData + `", "expires_at": 1700003600, "transcript": "hola"}
    }
  }]
}`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL + "/", SampleRate: 24000}, nil)
}

func TestRespondReturnsDecodedAudio(t *testing.T) {
	reply := []byte{1, 0, 2, 0, 3, 0}
	var body map[string]any

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completionJSON(audio.Encode(reply)))
	})

	got := client.Respond(context.Background(), []byte{5, 0, 6, 0}, "nova", "be kind")
	assert.Equal(t, reply, got)

	require.NotNil(t, body)
	assert.Equal(t, DefaultModel, body["model"])
	assert.Equal(t, []any{"text", "audio"}, body["modalities"])
	audioParam := body["audio"].(map[string]any)
	assert.Equal(t, "nova", audioParam["voice"])
	assert.Equal(t, "pcm16", audioParam["format"])

	messages := body["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	parts := messages[1].(map[string]any)["content"].([]any)
	require.Len(t, parts, 2)
	input := parts[1].(map[string]any)["input_audio"].(map[string]any)
	assert.Equal(t, "wav", input["format"])
	wav, err := audio.Decode(input["data"].(string))
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(wav[:4]))
	assert.Equal(t, []byte{5, 0, 6, 0}, wav[44:])
}

func TestRespondFailuresYieldNoAudio(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
		},
		"policy refusal": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"message":"refused","type":"invalid_request_error"}}`)
		},
		"empty audio": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, completionJSON(""))
		},
		"bad base64": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, completionJSON("%%%"))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, handler)
			assert.Nil(t, client.Respond(context.Background(), []byte{1, 2}, "", ""))
		})
	}
}

func TestRespondSkipsEmptyUtterance(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })
	assert.Nil(t, client.Respond(context.Background(), nil, "alloy", ""))
	assert.False(t, called)
}
