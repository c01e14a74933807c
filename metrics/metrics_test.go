package metrics

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopWithoutAgent(t *testing.T) {
	Close()

	assert.NotPanics(t, func() {
		Settlement("buy", "ok")
		ValuationFailed()
		ValuationTiming(time.Now())
		Close()
	})

	assert.Nil(t, Init())
}

func TestSendsToAgent(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.Nil(t, err)
	defer conn.Close()

	require.Nil(t, Connect(conn.LocalAddr().String()))

	Settlement("sell", "insufficient_shares")
	Close()

	buf := make([]byte, 1024)
	require.Nil(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := conn.ReadFrom(buf)
	require.Nil(t, err)

	payload := string(buf[:n])
	assert.True(t, strings.Contains(payload, "gofolio.settlements"), payload)
	assert.True(t, strings.Contains(payload, "kind:sell"), payload)
	assert.True(t, strings.Contains(payload, "outcome:insufficient_shares"), payload)
}
