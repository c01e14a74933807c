package slack

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatBody(t *testing.T) {
	m := NewErrorAlert("")

	m.SetBody("plain text")
	assert.Equal(t, "plain text", m.FormatBody())

	m.SetBody(map[string]interface{}{"level": "error"})
	assert.Equal(t, "```{\n\t\"level\": \"error\"\n}```", m.FormatBody())
}

func TestSendWithoutWebhook(t *testing.T) {
	m := NewErrorAlert("")
	m.SetBody("dropped")
	assert.Nil(t, m.Send())
}

func TestCallback(t *testing.T) {
	received := make(chan map[string]interface{}, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := ioutil.ReadAll(r.Body)
		payload := map[string]interface{}{}
		json.Unmarshal(body, &payload)
		received <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var failed error
	cb := Callback(srv.URL, func(err error) { failed = err })
	cb(map[string]interface{}{"message": "failed to publish event"})

	payload := <-received
	require.Nil(t, failed)
	assert.Equal(t, "#gofolio-errors", payload["channel"])
	assert.Contains(t, payload["text"], "failed to publish event")
}

func TestCallbackReportsFailure(t *testing.T) {
	var failed error
	cb := Callback("http://127.0.0.1:1/unreachable", func(err error) { failed = err })
	cb("boom")
	assert.NotNil(t, failed)
}
