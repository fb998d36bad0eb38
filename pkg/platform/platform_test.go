package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/replyflow/replyflow/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"destination":"U1","events":[]}`)
	signature := Sign("secret", body)

	assert.True(t, VerifySignature("secret", body, signature))
	assert.False(t, VerifySignature("wrong-secret", body, signature))
	assert.False(t, VerifySignature("secret", []byte(`{"tampered":true}`), signature))
	assert.False(t, VerifySignature("secret", body, ""))
}

func TestVerifySignature_ExactBytesMatter(t *testing.T) {
	// A re-serialized body with different whitespace must not verify.
	body := []byte(`{"destination": "U1", "events": []}`)
	compact := []byte(`{"destination":"U1","events":[]}`)

	signature := Sign("secret", body)
	assert.False(t, VerifySignature("secret", compact, signature))
}

func TestWebhookKeyHashing(t *testing.T) {
	hash := HashWebhookKey("wk_123")

	assert.True(t, VerifyWebhookKey("wk_123", hash))
	assert.False(t, VerifyWebhookKey("wk_124", hash))
	assert.NotContains(t, hash, "wk_123")
}

func TestCredentialRoundTrip(t *testing.T) {
	masterKey := []byte("0123456789abcdef0123456789abcdef")

	sealed, err := EncryptCredential(masterKey, "channel-secret-value")
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "channel-secret-value")

	plaintext, err := DecryptCredential(masterKey, sealed)
	require.NoError(t, err)
	assert.Equal(t, "channel-secret-value", plaintext)
}

func TestDecryptCredential_WrongKeyFails(t *testing.T) {
	masterKey := []byte("0123456789abcdef0123456789abcdef")
	otherKey := []byte("ffffffffffffffffffffffffffffffff")

	sealed, err := EncryptCredential(masterKey, "secret")
	require.NoError(t, err)

	_, err = DecryptCredential(otherKey, sealed)
	assert.Error(t, err)
}

func TestClient_ReplyAndPush(t *testing.T) {
	var gotPaths []string
	var gotBodies []map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPaths = append(gotPaths, r.URL.Path)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotBodies = append(gotBodies, body)

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient("token-1", server.URL, log.WithModule("test"))

	err := client.Reply(context.Background(), "rt-1", []Message{TextMessage("hello")})
	require.NoError(t, err)

	err = client.Push(context.Background(), "user-1", []Message{
		TextMessage("followup", QuickReply{Label: "满意", Text: "满意"}),
	})
	require.NoError(t, err)

	require.Equal(t, []string{"/message/reply", "/message/push"}, gotPaths)
	assert.Equal(t, "rt-1", gotBodies[0]["replyToken"])
	assert.Equal(t, "user-1", gotBodies[1]["to"])
}

func TestClient_ReplyRequiresToken(t *testing.T) {
	client := NewClient("token-1", "http://unused", log.WithModule("test"))

	err := client.Reply(context.Background(), "", []Message{TextMessage("x")})
	assert.Error(t, err)
}

func TestClient_SurfacesAPIFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient("token-1", server.URL, log.WithModule("test"))

	err := client.Push(context.Background(), "user-1", []Message{TextMessage("x")})
	assert.ErrorContains(t, err, "status 400")
}

func TestTextMessage_QuickReplies(t *testing.T) {
	msg := TextMessage("您想了解哪方面？", QuickReply{Label: "运费", Text: "运费怎么算"},
		QuickReply{Label: "退款", Text: "我要退款"})

	require.NotNil(t, msg.QuickReply)
	require.Len(t, msg.QuickReply.Items, 2)
	assert.Equal(t, "运费", msg.QuickReply.Items[0].Action["label"])
	assert.Equal(t, "我要退款", msg.QuickReply.Items[1].Action["text"])

	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"quickReply"`)
}

func TestTextMessage_NoQuickReplies(t *testing.T) {
	msg := TextMessage("你好")
	assert.Nil(t, msg.QuickReply)
}
