package gbevents

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	events []*Event
	err    error
	closed bool
}

func (r *recorder) Publish(ctx context.Context, evt *Event) error {
	r.events = append(r.events, evt)
	return r.err
}

func (r *recorder) Close() error {
	r.closed = true
	return r.err
}

func TestMulti(t *testing.T) {
	ok := &recorder{}
	bad := &recorder{err: fmt.Errorf("broker down")}
	also := &recorder{}

	m := Multi{ok, bad, also}
	evt := &Event{Name: SettlementBuy, AccountID: "abc"}

	err := m.Publish(context.Background(), evt)
	assert.EqualError(t, err, "broker down")
	assert.Len(t, ok.events, 1)
	assert.Len(t, bad.events, 1)
	assert.Len(t, also.events, 1)

	assert.EqualError(t, m.Close(), "broker down")
	assert.True(t, ok.closed)
	assert.True(t, also.closed)

	assert.Nil(t, Multi{ok}.Publish(context.Background(), evt))
	assert.Nil(t, Multi{}.Close())
}

func TestTriggerSwallowsErrors(t *testing.T) {
	bad := &recorder{err: fmt.Errorf("broker down")}

	assert.NotPanics(t, func() {
		Trigger(context.Background(), bad, &Event{Name: SettlementSell})
		Trigger(context.Background(), nil, &Event{Name: SettlementSell})
	})
	assert.Len(t, bad.events, 1)
}

func TestNoop(t *testing.T) {
	p := Noop()
	assert.Nil(t, p.Publish(context.Background(), &Event{}))
	assert.Nil(t, p.Close())
}
