package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/alpacahq/gofolio/utils/gbevents"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage(t *testing.T) {
	at := time.Date(2019, 4, 2, 15, 4, 5, 0, time.UTC)
	evt := &gbevents.Event{
		Name:       gbevents.SettlementBuy,
		AccountID:  "acct-1",
		Symbol:     "AAPL",
		Shares:     10,
		Price:      decimal.New(150, 0),
		Amount:     decimal.RequireFromString("1500.00"),
		Cash:       decimal.RequireFromString("500.00"),
		OccurredAt: at,
	}

	msg, err := message(evt)
	require.Nil(t, err)

	assert.Equal(t, []byte("acct-1"), msg.Key)
	assert.Equal(t, at, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "settlement.buy", string(msg.Headers[0].Value))

	body := map[string]interface{}{}
	require.Nil(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "AAPL", body["symbol"])
	assert.Equal(t, "1500", body["amount"])
	assert.Equal(t, "500", body["cash"])
}

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, ParseBrokers(" a:9092, ,b:9092 "))
	assert.Empty(t, ParseBrokers(""))
}

func TestNewPublisher(t *testing.T) {
	p := NewPublisher([]string{"localhost:9092"}, "gofolio.settlements")
	assert.Equal(t, "gofolio.settlements", p.writer.Topic)
	assert.Nil(t, p.Close())
}
