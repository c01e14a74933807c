package slack

import (
	"encoding/json"
	"fmt"

	sl "github.com/ashwanthkumar/slack-go-webhook"
	"github.com/pkg/errors"
)

type Message struct {
	channel *channel
	body    interface{}
}

type channel struct {
	name    string
	user    string
	webhook string
}

func (m *Message) SetBody(body interface{}) {
	m.body = body
}

// FormatBody sends strings as is and anything else as an
// indented JSON code block.
func (m *Message) FormatBody() string {
	switch v := m.body.(type) {
	case string:
		return v
	default:
		buf, _ := json.MarshalIndent(v, "", "\t")
		return fmt.Sprintf("```%s```", string(buf))
	}
}

// Send posts the message to its webhook. A message without a
// webhook is dropped.
func (m *Message) Send() error {
	if m.channel == nil || m.channel.webhook == "" {
		return nil
	}

	errs := sl.Send(
		m.channel.webhook,
		"", sl.Payload{
			Text:     m.FormatBody(),
			Channel:  m.channel.name,
			Username: m.channel.user,
		})

	if len(errs) > 0 {
		return errors.Wrap(errs[0], "slack send failed")
	}

	return nil
}

// NewErrorAlert builds a message for the error alert channel
// behind webhook.
func NewErrorAlert(webhook string) Message {
	return Message{
		channel: &channel{
			webhook: webhook,
			name:    "#gofolio-errors",
			user:    "gofolio",
		},
	}
}

// Callback returns a log callback that forwards each entry it
// receives to the error alert channel. Send failures go to
// onFail rather than back through the logger, which would
// loop.
func Callback(webhook string, onFail func(err error)) func(msg interface{}) {
	return func(msg interface{}) {
		alert := NewErrorAlert(webhook)
		alert.SetBody(msg)
		if err := alert.Send(); err != nil && onFail != nil {
			onFail(err)
		}
	}
}
