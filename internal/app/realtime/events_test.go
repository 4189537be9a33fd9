package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope(t *testing.T) {
	req := require.New(t)

	env, err := DecodeEnvelope([]byte(`{"type":"join chat","payload":"c1"}`))
	req.NoError(err)
	req.Equal(EventJoinChat, env.Type)

	_, err = DecodeEnvelope([]byte(`not json`))
	req.ErrorIs(err, ErrMalformedEnvelope)

	_, err = DecodeEnvelope([]byte(`{"payload":"c1"}`))
	req.ErrorIs(err, ErrMalformedEnvelope)
}

func TestDecodePayload_Setup(t *testing.T) {
	req := require.New(t)

	payload, err := DecodePayload[SetupPayload](Envelope{Type: EventSetup, Payload: json.RawMessage(`{"userId":"u1"}`)})
	req.NoError(err)
	req.Equal("u1", payload.UserID)

	_, err = DecodePayload[SetupPayload](Envelope{Type: EventSetup, Payload: json.RawMessage(`{}`)})
	req.ErrorIs(err, ErrMalformedPayload)

	_, err = DecodePayload[SetupPayload](Envelope{Type: EventSetup})
	req.ErrorIs(err, ErrMalformedPayload)
}

func TestDecodePayload_MessageEvent(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		valid   bool
	}{
		{
			name:    "populated",
			payload: `{"id":"m1","sender":{"id":"a"},"content":"hi","chat":{"id":"c1","users":[{"id":"a"},{"id":"b"}]}}`,
			valid:   true,
		},
		{
			name:    "missing chat",
			payload: `{"id":"m1","sender":{"id":"a"},"content":"hi"}`,
		},
		{
			name:    "empty participant list",
			payload: `{"id":"m1","sender":{"id":"a"},"chat":{"id":"c1","users":[]}}`,
		},
		{
			name:    "participant without id",
			payload: `{"id":"m1","sender":{"id":"a"},"chat":{"id":"c1","users":[{"name":"b"}]}}`,
		},
		{
			name:    "missing sender",
			payload: `{"id":"m1","chat":{"id":"c1","users":[{"id":"a"}]}}`,
		},
		{
			name:    "users not a list",
			payload: `{"id":"m1","sender":{"id":"a"},"chat":{"id":"c1","users":"a,b"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)

			event, err := DecodePayload[MessageEvent](Envelope{Type: EventNewMessage, Payload: json.RawMessage(tt.payload)})

			if !tt.valid {
				req.ErrorIs(err, ErrMalformedPayload)
				return
			}
			req.NoError(err)

			msg := event.Message()
			req.Equal("c1", msg.ChatID)
			req.Equal([]string{"a", "b"}, msg.Chat.ParticipantIDs())
		})
	}
}

func TestDecodeChatID(t *testing.T) {
	req := require.New(t)

	chatID, err := DecodeChatID(Envelope{Type: EventTyping, Payload: json.RawMessage(`" c1 "`)})
	req.NoError(err)
	req.Equal("c1", chatID)

	_, err = DecodeChatID(Envelope{Type: EventTyping, Payload: json.RawMessage(`""`)})
	req.ErrorIs(err, ErrMalformedPayload)

	_, err = DecodeChatID(Envelope{Type: EventTyping, Payload: json.RawMessage(`{"chatId":"c1"}`)})
	req.ErrorIs(err, ErrMalformedPayload)
}

func TestEncode(t *testing.T) {
	req := require.New(t)

	frame, err := Encode(EventConnected, ConnectedPayload{UserID: "u1"})
	req.NoError(err)
	req.JSONEq(`{"type":"connected","payload":{"userId":"u1"}}`, string(frame))
}
