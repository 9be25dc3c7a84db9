package businessflow

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/amirphl/rsvp-relay/app/dto"
	"github.com/amirphl/rsvp-relay/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInbound_NoBoundEvent(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, []string{ReplyNoActiveEvent}, h.receive(t, ashaNumber, "hello wedding"))

	msgs, err := h.messages.ByFilter(context.Background(), models.MessageFilter{}, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Nil(t, msgs[0].EventID)
	assert.Equal(t, models.MessageKindReply, msgs[0].Kind)
}

func TestInbound_UnknownContact(t *testing.T) {
	h := newHarness(t)
	h.addEvent(t, weddingEvent())
	assert.Equal(t, []string{ReplyAccountNotFound}, h.receive(t, "919000000099", "hello wedding"))
}

func TestInbound_InvalidNumber(t *testing.T) {
	h := newHarness(t)
	h.addEvent(t, weddingEvent())

	tests := []struct {
		name   string
		number string
		want   string
	}{
		{name: "letters", number: "91abc", want: ReplyInvalidNumber},
		{name: "thirteen digits", number: "9190000000123", want: ReplyAccountNotFound},
		{name: "fourteen digits", number: "91900000001234", want: ReplyInvalidNumber},
		{name: "too long", number: "9190000000000001", want: ReplyInvalidNumber},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, []string{tt.want}, h.receive(t, tt.number, "hello wedding"))
		})
	}

	// Our own messages to odd numbers are never answered
	assert.Empty(t, h.operator(t, "91abc", "rsvp/acc"))
}

func TestInbound_EmptyTextIgnored(t *testing.T) {
	h := newHarness(t)
	ev := h.addEvent(t, weddingEvent())
	h.addContact(t, ev, "Asha", ashaNumber, "1", "2")

	assert.Empty(t, h.receive(t, ashaNumber, "   "))
	n, err := h.messages.Count(context.Background(), models.MessageFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInbound_DuplicateDelivery(t *testing.T) {
	h := newHarness(t)
	ev := h.addEvent(t, weddingEvent())
	h.addContact(t, ev, "Asha", ashaNumber, "1", "2")

	payload := upsertPayload(t, ashaNumber, "dup-1", "hello wedding", false)
	assert.Len(t, h.webhook(t, dto.WebhookEventMessagesUpsert, payload), 1)
	assert.Empty(t, h.webhook(t, dto.WebhookEventMessagesUpsert, payload))
	assert.Equal(t, models.TrackInvited, h.cursor(t, ev, ashaNumber).MessageTrack)
}

func TestInbound_ConcurrentMessagesAreSerialised(t *testing.T) {
	h := newHarness(t)
	ev := h.addEvent(t, weddingEvent())
	h.addContact(t, ev, "Asha", ashaNumber, "1", "2")
	h.receive(t, ashaNumber, "hello wedding")
	h.receive(t, ashaNumber, "yes")

	// Two answers for the same day race; exactly one of them is applied to day 2
	payloads := []json.RawMessage{
		upsertPayload(t, ashaNumber, "race-1", "2", false),
		upsertPayload(t, ashaNumber, "race-2", "1", false),
	}
	done := make(chan error, len(payloads))
	for _, p := range payloads {
		go func(data json.RawMessage) {
			_, err := h.inbound.HandleWebhook(context.Background(), &dto.WebhookRequest{
				InstanceID: testInstance,
				Data:       dto.WebhookEnvelope{Event: dto.WebhookEventMessagesUpsert, Data: data},
			})
			done <- err
		}(p)
	}
	for range 2 {
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("webhook did not finish")
		}
	}

	contact := h.contact(t, ev, ashaNumber)
	assert.Equal(t, models.DayStatusAccepted, contact.Days[1].Status)
	assert.Contains(t, []string{"1", "2"}, contact.Days[1].InvitesAccepted)
	assert.True(t, h.cursor(t, ev, ashaNumber).IsCompleted)

	texts := h.gateway.Texts()
	assert.Equal(t, ReplyNothingMatched, texts[len(texts)-1])
}

func TestInbound_SelectsEventByStartingKeywordThenRecency(t *testing.T) {
	h := newHarness(t)
	wedding := h.addEvent(t, weddingEvent())

	reception := weddingEvent()
	reception.Name = "Reception"
	reception.StartingKeyword = "hello reception"
	reception.InvitationText = "Welcome to the {eventName}, {name}"
	reception = h.addEvent(t, reception)

	h.addContact(t, wedding, "Asha", ashaNumber, "1", "2")
	h.addContact(t, reception, "Asha", ashaNumber, "1", "1")

	assert.Equal(t, []string{"Welcome to the Reception, Asha"}, h.receive(t, ashaNumber, "hello reception"))
	assert.Equal(t, []string{"Dear Asha, you are invited to Asha & Ravi"}, h.receive(t, ashaNumber, "hello wedding"))

	// The wedding conversation is the most recent one now
	h.receive(t, ashaNumber, "no")
	assert.Equal(t, models.OverallStatusRejected, h.contact(t, wedding, ashaNumber).OverallStatus)
	assert.Equal(t, models.OverallStatusPending, h.contact(t, reception, ashaNumber).OverallStatus)
}

func TestInbound_NoConversationWithSeveralEvents(t *testing.T) {
	h := newHarness(t)
	wedding := h.addEvent(t, weddingEvent())
	other := weddingEvent()
	other.StartingKeyword = "hello reception"
	h.addEvent(t, other)
	h.addContact(t, wedding, "Asha", ashaNumber, "1", "2")

	assert.Equal(t, []string{ReplyNoActiveEvent}, h.receive(t, ashaNumber, "hi"))
}

func statusPayload(t *testing.T, id string, status any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal([]map[string]any{{
		"key":    map[string]any{"id": id},
		"update": map[string]any{"status": status},
	}})
	require.NoError(t, err)
	return raw
}

func TestInbound_DeliveryStatus(t *testing.T) {
	h := newHarness(t)
	ev := h.addEvent(t, weddingEvent())
	h.addContact(t, ev, "Asha", ashaNumber, "1", "2")
	h.receive(t, ashaNumber, "hello wedding")

	sent := h.gateway.Sent()
	require.Len(t, sent, 1)
	id := sent[0].MessageID

	h.webhook(t, dto.WebhookEventMessagesUpdate, statusPayload(t, id, "DELIVERY_ACK"))
	h.webhook(t, dto.WebhookEventMessagesUpdate, statusPayload(t, id, 3))

	msg, err := h.messages.ByMessageID(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, msg.Statuses, 1)
	assert.Equal(t, models.InviteMessageReceived.String(), msg.Statuses[0].Status)
	assert.Equal(t, models.InviteMessageReceived, h.contact(t, ev, ashaNumber).InviteMessageStatus)

	h.webhook(t, dto.WebhookEventMessagesUpdate, statusPayload(t, id, "READ"))
	assert.Equal(t, models.InviteMessageRead, h.contact(t, ev, ashaNumber).InviteMessageStatus)

	// A late delivery report never moves the contact backwards
	h.webhook(t, dto.WebhookEventMessagesUpdate, statusPayload(t, id, "DELIVERY_ACK"))
	assert.Equal(t, models.InviteMessageRead, h.contact(t, ev, ashaNumber).InviteMessageStatus)

	msg, err = h.messages.ByMessageID(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, msg.Statuses, 2)
}

func TestDeliveryStatus_Apply(t *testing.T) {
	h := newHarness(t)
	ev := h.addEvent(t, weddingEvent())
	h.addContact(t, ev, "Asha", ashaNumber, "1", "2")
	h.receive(t, ashaNumber, "hello wedding")
	h.receive(t, ashaNumber, "yes")

	sent := h.gateway.Sent()
	require.Len(t, sent, 3)
	invite, dayInvite := sent[0].MessageID, sent[1].MessageID

	var updates []dto.WebhookStatusUpdate
	require.NoError(t, json.Unmarshal(statusPayload(t, dayInvite, "READ"), &updates))
	var more []dto.WebhookStatusUpdate
	require.NoError(t, json.Unmarshal(statusPayload(t, "unknown", "READ"), &more))
	updates = append(updates, more...)
	require.NoError(t, json.Unmarshal(statusPayload(t, invite, "SERVER_ACK"), &more))
	updates = append(updates, more...)

	applied, err := h.delivery.Apply(context.Background(), updates)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	// Only invitations drive the contact flag
	assert.Equal(t, models.InviteMessagePending, h.contact(t, ev, ashaNumber).InviteMessageStatus)
	msg, err := h.messages.ByMessageID(context.Background(), invite)
	require.NoError(t, err)
	assert.Empty(t, msg.Statuses)
}

func TestDeliveryStatus_NewInvitationResetsFlag(t *testing.T) {
	h := newHarness(t)
	ev := h.addEvent(t, weddingEvent())
	h.addContact(t, ev, "Asha", ashaNumber, "1", "2")

	h.receive(t, ashaNumber, "hello wedding")
	first := h.gateway.Sent()[0].MessageID
	h.webhook(t, dto.WebhookEventMessagesUpdate, statusPayload(t, first, "READ"))
	require.Equal(t, models.InviteMessageRead, h.contact(t, ev, ashaNumber).InviteMessageStatus)

	require.Len(t, h.operator(t, ashaNumber, "rsvp/inv"), 1)
	assert.Equal(t, models.InviteMessagePending, h.contact(t, ev, ashaNumber).InviteMessageStatus)

	sent := h.gateway.Sent()
	second := sent[len(sent)-1].MessageID
	require.NotEqual(t, first, second)
	h.webhook(t, dto.WebhookEventMessagesUpdate, statusPayload(t, second, "DELIVERY_ACK"))
	assert.Equal(t, models.InviteMessageReceived, h.contact(t, ev, ashaNumber).InviteMessageStatus)
}

func TestDecodeStatusUpdates(t *testing.T) {
	list, err := decodeStatusUpdates(json.RawMessage(`[{"key":{"id":"a"},"update":{"status":"READ"}},{"key":{"id":"b"},"update":{"status":3}}]`))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, dto.StatusCodeRead, list[0].Update.Status)
	assert.Equal(t, dto.StatusCodeDeliveryAck, list[1].Update.Status)

	one, err := decodeStatusUpdates(json.RawMessage(`{"key":{"id":"a"},"update":{"status":"4"}}`))
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, dto.StatusCodeRead, one[0].Update.Status)

	_, err = decodeStatusUpdates(json.RawMessage(`"nope"`))
	assert.Error(t, err)
}
