package segment

import (
	"context"
	"fmt"
	"testing"

	"github.com/alpacahq/gofolio/utils/gbevents"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	analytics "gopkg.in/segmentio/analytics-go.v3"
)

type fakeClient struct {
	msgs   []analytics.Message
	err    error
	closed bool
}

func (c *fakeClient) Enqueue(msg analytics.Message) error {
	c.msgs = append(c.msgs, msg)
	return c.err
}

func (c *fakeClient) Close() error {
	c.closed = true
	return nil
}

func TestPublish(t *testing.T) {
	client := &fakeClient{}
	p := &Publisher{client: client}

	evt := &gbevents.Event{
		Name:      gbevents.SettlementSell,
		AccountID: "acct-1",
		Symbol:    "AAPL",
		Shares:    -5,
		Price:     decimal.RequireFromString("180.125"),
		Amount:    decimal.New(-750, 0),
		Cash:      decimal.New(900, 0),
	}

	require.Nil(t, p.Publish(context.Background(), evt))
	require.Len(t, client.msgs, 1)

	track := client.msgs[0].(analytics.Track)
	assert.Equal(t, "Settlement Sell", track.Event)
	assert.Equal(t, "acct-1", track.UserId)
	assert.Equal(t, "AAPL", track.Properties["symbol"])
	assert.Equal(t, int64(-5), track.Properties["shares"])
	assert.Equal(t, "-750", track.Properties["amount"])
	assert.Equal(t, "180.125", track.Properties["price"])

	require.Nil(t, p.Close())
	assert.True(t, client.closed)
}

func TestPublishCashMovement(t *testing.T) {
	client := &fakeClient{err: fmt.Errorf("queue full")}
	p := &Publisher{client: client}

	err := p.Publish(context.Background(), &gbevents.Event{
		Name:      gbevents.SettlementDeposit,
		AccountID: "acct-1",
		Amount:    decimal.New(100, 0),
	})
	assert.EqualError(t, err, "queue full")

	track := client.msgs[0].(analytics.Track)
	assert.Equal(t, "Settlement Deposit", track.Event)
	_, ok := track.Properties["symbol"]
	assert.False(t, ok)
	_, ok = track.Properties["price"]
	assert.False(t, ok)
}
