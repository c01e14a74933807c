package segment

import (
	"context"
	"strings"

	"github.com/alpacahq/gofolio/utils/gbevents"
	analytics "gopkg.in/segmentio/analytics-go.v3"
)

// Publisher tracks events with Segment. The analytics client
// batches and sends in the background, so Publish only queues.
type Publisher struct {
	client analytics.Client
}

func NewPublisher(writeKey string) *Publisher {
	return &Publisher{client: analytics.New(writeKey)}
}

func (p *Publisher) Publish(ctx context.Context, evt *gbevents.Event) error {
	return p.client.Enqueue(trackable(evt))
}

// Close flushes queued events.
func (p *Publisher) Close() error {
	return p.client.Close()
}

// trackable renders "settlement.buy" as "Settlement Buy", the
// naming Segment dashboards expect.
func trackable(evt *gbevents.Event) analytics.Track {
	words := strings.FieldsFunc(evt.Name, func(r rune) bool { return r == '.' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}

	props := analytics.NewProperties().
		Set("cash", evt.Cash.String()).
		Set("realizedGain", evt.RealizedGain.String()).
		Set("amount", evt.Amount.String())

	if evt.Symbol != "" {
		props.Set("symbol", evt.Symbol).
			Set("shares", evt.Shares).
			Set("price", evt.Price.String())
	}

	return analytics.Track{
		Event:      strings.Join(words, " "),
		UserId:     evt.AccountID,
		Timestamp:  evt.OccurredAt,
		Properties: props,
	}
}
