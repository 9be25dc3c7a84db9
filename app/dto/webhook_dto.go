package dto

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	WebhookEventMessagesUpsert = "messages.upsert"
	WebhookEventMessagesUpdate = "messages.update"
)

// WebhookRequest is the envelope the chat provider posts for every event
type WebhookRequest struct {
	InstanceID string          `json:"instance_id" validate:"required" example:"64F1A2B3C4D5E"`
	Data       WebhookEnvelope `json:"data"`
}

// WebhookEnvelope names the event; Data is decoded according to Event
type WebhookEnvelope struct {
	Event string          `json:"event" example:"messages.upsert"`
	Data  json.RawMessage `json:"data" swaggertype:"object"`
}

// WebhookUpsertData carries new chat messages
type WebhookUpsertData struct {
	Messages []WebhookMessage `json:"messages"`
}

// WebhookMessage is one chat message as delivered by the provider
type WebhookMessage struct {
	Key struct {
		RemoteJID string `json:"remoteJid" example:"919999999999@s.whatsapp.net"`
		FromMe    bool   `json:"fromMe"`
		ID        string `json:"id" example:"3EB0C767D26A1D1E4B5B"`
	} `json:"key"`
	Message struct {
		ExtendedTextMessage *struct {
			Text string `json:"text"`
		} `json:"extendedTextMessage,omitempty"`
		Conversation string `json:"conversation,omitempty"`
	} `json:"message"`
	MessageTimestamp json.RawMessage `json:"messageTimestamp,omitempty" swaggertype:"integer"`
}

// Text returns the extended text when present, else the plain conversation text
func (m WebhookMessage) Text() string {
	if m.Message.ExtendedTextMessage != nil && m.Message.ExtendedTextMessage.Text != "" {
		return m.Message.ExtendedTextMessage.Text
	}
	return m.Message.Conversation
}

// SenderID is the part of the remote JID before '@'
func (m WebhookMessage) SenderID() string {
	id, _, _ := strings.Cut(m.Key.RemoteJID, "@")
	return id
}

// WebhookStatusUpdate reports a delivery status change of one sent message
type WebhookStatusUpdate struct {
	Key struct {
		ID string `json:"id"`
	} `json:"key"`
	Update struct {
		Status StatusCode `json:"status"`
	} `json:"update"`
}

// StatusCode accepts the numeric codes and their symbolic names
type StatusCode int

const (
	StatusCodeError       StatusCode = 0
	StatusCodePending     StatusCode = 1
	StatusCodeServerAck   StatusCode = 2
	StatusCodeDeliveryAck StatusCode = 3
	StatusCodeRead        StatusCode = 4
	StatusCodePlayed      StatusCode = 5
)

var statusNames = map[string]StatusCode{
	"ERROR":        StatusCodeError,
	"PENDING":      StatusCodePending,
	"SERVER_ACK":   StatusCodeServerAck,
	"DELIVERY_ACK": StatusCodeDeliveryAck,
	"READ":         StatusCodeRead,
	"PLAYED":       StatusCodePlayed,
}

func (s *StatusCode) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*s = StatusCode(n)
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("invalid status code %s", string(b))
	}
	if n, err := strconv.Atoi(str); err == nil {
		*s = StatusCode(n)
		return nil
	}
	code, ok := statusNames[strings.ToUpper(str)]
	if !ok {
		return fmt.Errorf("unknown status %q", str)
	}
	*s = code
	return nil
}

// WebhookResponse acknowledges a webhook call
type WebhookResponse struct {
	Processed int `json:"processed" example:"1"`
}
