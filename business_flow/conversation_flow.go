package businessflow

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/rsvp-relay/app/metrics"
	"github.com/amirphl/rsvp-relay/app/services"
	"github.com/amirphl/rsvp-relay/models"
	"github.com/amirphl/rsvp-relay/repository"
	"github.com/amirphl/rsvp-relay/utils"
	"go.uber.org/zap"
)

// Fixed replies that are not operator configurable
const (
	ReplyNothingMatched  = "nothing matched"
	ReplyNothingToCancel = "Nothing to cancel"
	ReplyAccountNotFound = "Account not found"
	ReplyNoActiveEvent   = "No active campaign found"
	ReplyInvalidNumber   = "invalid number"
)

// ConversationInput is one message addressed to a contact's conversation.
// The caller holds the conversation lock and has loaded Contact and Cursor;
// Cursor is nil before the invitation went out.
type ConversationInput struct {
	Event      *models.Event
	Contact    *models.Contact
	Cursor     *models.ChatLog
	Number     string
	InstanceID string
	Text       string
}

// ConversationFlow is the RSVP protocol engine
type ConversationFlow interface {
	// HandleMessage answers an inbound message from the contact
	HandleMessage(ctx context.Context, in *ConversationInput) error
	// HandleOperatorCommand applies "{initialCode}/{code}[/{day}[/{count}]]"
	// sent from the monitored device to the contact. It reports false when
	// the text is not a command of the event.
	HandleOperatorCommand(ctx context.Context, in *ConversationInput) (bool, error)
}

type ConversationFlowImpl struct {
	dispatcher      Dispatcher
	contactRepo     repository.ContactRepository
	chatLogRepo     repository.ChatLogRepository
	tx              repository.Transactor
	matcher         *services.KeywordMatcher
	allInvitesCount string
	now             func() time.Time
	logger          *zap.Logger
}

func NewConversationFlow(
	dispatcher Dispatcher,
	contactRepo repository.ContactRepository,
	chatLogRepo repository.ChatLogRepository,
	tx repository.Transactor,
	matcher *services.KeywordMatcher,
	allInvitesCount string,
	logger *zap.Logger,
) ConversationFlow {
	if allInvitesCount == "" {
		allInvitesCount = models.AllInvites
	}
	return &ConversationFlowImpl{
		dispatcher:      dispatcher,
		contactRepo:     contactRepo,
		chatLogRepo:     chatLogRepo,
		tx:              tx,
		matcher:         matcher,
		allInvitesCount: allInvitesCount,
		now:             utils.UTCNow,
		logger:          logger.Named("conversation"),
	}
}

// turn is the mutable state of one message being handled
type turn struct {
	*ConversationInput
	numDays int
}

func (f *ConversationFlowImpl) HandleMessage(ctx context.Context, in *ConversationInput) error {
	t := &turn{ConversationInput: in, numDays: in.Event.NumDays()}
	t.Contact.NormalizeDays(t.numDays)
	ev := t.Event

	if f.matcher.Contains(t.Text, ev.RewriteKeyword) {
		return f.rewrite(ctx, t)
	}

	if t.Cursor == nil {
		if !f.matcher.Equals(t.Text, ev.StartingKeyword) {
			return f.replyText(ctx, t, ReplyNothingMatched)
		}
		if !ev.IsOpen(f.now()) {
			f.transition("closed")
			return f.reply(ctx, t, ev.ClosedInvitationsText, "", models.MessageKindReply, -1)
		}
		return f.invite(ctx, t, true)
	}

	if t.Cursor.IsCompleted || t.Cursor.MessageTrack == models.TrackCompleted {
		return f.replyText(ctx, t, ReplyNothingMatched)
	}

	switch t.Cursor.MessageTrack {
	case models.TrackInvited:
		return f.answerInvitation(ctx, t)
	case models.TrackDayLoop:
		return f.answerDay(ctx, t)
	default:
		return f.replyText(ctx, t, ReplyNothingMatched)
	}
}

// invite sends the invitation and puts the cursor on track 1
func (f *ConversationFlowImpl) invite(ctx context.Context, t *turn, record bool) error {
	if err := f.reply(ctx, t, t.Event.InvitationText, t.Event.InvitationMedia, models.MessageKindInvitation, -1); err != nil {
		return err
	}
	f.ensureCursor(t)
	t.Cursor.MessageTrack = models.TrackInvited
	t.Cursor.InviteIndex = 0
	t.Cursor.IsCompleted = false
	t.Cursor.FinalResponse = ""
	t.Contact.InviteMessageStatus = models.InviteMessagePending
	t.Contact.RefreshOverallStatus(t.numDays)
	f.transition("invite")
	return f.persist(ctx, t, record)
}

func (f *ConversationFlowImpl) answerInvitation(ctx context.Context, t *turn) error {
	ev := t.Event
	switch {
	case f.matcher.Contains(t.Text, ev.AcceptanceKeyword):
		f.transition("accept_invitation")
		i := t.Contact.NextPendingDay(0, t.numDays)
		if i < 0 {
			if err := f.finish(ctx, t, true); err != nil {
				return err
			}
			return f.persist(ctx, t, true)
		}
		t.Cursor.MessageTrack = models.TrackDayLoop
		t.Cursor.InviteIndex = i
		if err := f.sendDayInvite(ctx, t, i); err != nil {
			return err
		}
		if t.Contact.Days[i].IsSingleSeat() {
			f.acceptDay(t, i, "1")
			if err := f.advanceOrFinish(ctx, t); err != nil {
				return err
			}
		}
		t.Contact.RefreshOverallStatus(t.numDays)
		return f.persist(ctx, t, true)

	case f.matcher.Contains(t.Text, ev.RejectionKeyword):
		f.transition("reject_invitation")
		t.Contact.RejectAllDays(t.numDays)
		if err := f.finish(ctx, t, false); err != nil {
			return err
		}
		return f.persist(ctx, t, true)

	default:
		return f.replyText(ctx, t, ReplyNothingMatched)
	}
}

func (f *ConversationFlowImpl) answerDay(ctx context.Context, t *turn) error {
	ev := t.Event
	i := t.Cursor.InviteIndex
	if i < 0 || i >= t.numDays || !t.Contact.Days[i].IsPending() {
		return f.replyText(ctx, t, ReplyNothingMatched)
	}
	day := t.Contact.Days[i]

	if f.matcher.Contains(t.Text, ev.RejectionKeyword) {
		f.rejectDay(t, i)
		return f.advanceAndPersist(ctx, t)
	}

	if q := services.ExtractQuantity(t.Text); q != "" {
		if q == "0" {
			f.rejectDay(t, i)
			return f.advanceAndPersist(ctx, t)
		}
		if !day.AcceptsQuantity(q) {
			f.transition("quantity_rejected")
			return f.reply(ctx, t, ev.MoreThanOneInvitesText, "", models.MessageKindReply, i)
		}
		f.acceptDay(t, i, f.acceptedSeats(day, q))
		return f.advanceAndPersist(ctx, t)
	}

	if f.matcher.Contains(t.Text, ev.AcceptanceKeyword) {
		if !day.IsSingleSeat() {
			f.transition("quantity_required")
			return f.reply(ctx, t, ev.MoreThanOneInvitesText, "", models.MessageKindReply, i)
		}
		f.acceptDay(t, i, "1")
		return f.advanceAndPersist(ctx, t)
	}

	return f.replyText(ctx, t, ReplyNothingMatched)
}

// acceptedSeats turns a validated quantity into the stored seat count
func (f *ConversationFlowImpl) acceptedSeats(day models.ContactDay, q string) string {
	if q != models.AllInvites {
		return q
	}
	if strings.EqualFold(strings.TrimSpace(day.InvitesAllocated), models.AllInvites) {
		return f.allInvitesCount
	}
	return strings.TrimSpace(day.InvitesAllocated)
}

func (f *ConversationFlowImpl) acceptDay(t *turn, i int, seats string) {
	t.Contact.Days[i].Status = models.DayStatusAccepted
	t.Contact.Days[i].InvitesAccepted = seats
	f.transition("accept_day")
}

func (f *ConversationFlowImpl) rejectDay(t *turn, i int) {
	t.Contact.Days[i].Status = models.DayStatusRejected
	t.Contact.Days[i].InvitesAccepted = "0"
	f.transition("reject_day")
}

func (f *ConversationFlowImpl) advanceAndPersist(ctx context.Context, t *turn) error {
	if err := f.advanceOrFinish(ctx, t); err != nil {
		return err
	}
	t.Contact.RefreshOverallStatus(t.numDays)
	return f.persist(ctx, t, true)
}

// advanceOrFinish moves the cursor to the next pending day and sends its
// invite, or completes the conversation when no day is left.
func (f *ConversationFlowImpl) advanceOrFinish(ctx context.Context, t *turn) error {
	next := t.Contact.NextPendingDay(0, t.numDays)
	if next < 0 {
		return f.finish(ctx, t, len(t.Event.SubEvents) > 0)
	}
	f.ensureCursor(t)
	t.Cursor.MessageTrack = models.TrackDayLoop
	t.Cursor.InviteIndex = next
	return f.sendDayInvite(ctx, t, next)
}

// finish completes the form and sends the acknowledgment matching the
// derived status, followed by the summary when requested.
func (f *ConversationFlowImpl) finish(ctx context.Context, t *turn, summary bool) error {
	f.ensureCursor(t)
	t.Cursor.Finish(t.numDays)
	t.Contact.HasCompletedForm = true
	t.Contact.RefreshOverallStatus(t.numDays)
	f.transition("complete")

	ev := t.Event
	var err error
	if t.Contact.OverallStatus == models.OverallStatusAccepted {
		err = f.reply(ctx, t, ev.AcceptanceAcknowledgment, ev.ThankYouMedia, models.MessageKindAcknowledge, -1)
	} else {
		err = f.reply(ctx, t, ev.RejectionAcknowledgment, "", models.MessageKindAcknowledge, -1)
	}
	if err != nil || !summary {
		return err
	}

	_, err = f.dispatcher.Send(ctx, Outbound{
		Event:       ev,
		Number:      t.Number,
		InstanceID:  t.InstanceID,
		Template:    SummaryTemplate(ev),
		Kind:        models.MessageKindSummary,
		Data:        BuildSummaryData(ev, t.Contact, t.Cursor),
		Conditional: true,
	})
	return err
}

func (f *ConversationFlowImpl) rewrite(ctx context.Context, t *turn) error {
	if t.Cursor == nil || t.Cursor.MessageTrack == models.TrackInvited {
		return f.replyText(ctx, t, ReplyNothingToCancel)
	}
	f.transition("rewrite")

	t.Contact.ResetDays(t.numDays)
	t.Contact.HasCompletedForm = false
	t.Contact.RefreshOverallStatus(t.numDays)
	t.Cursor.IsCompleted = false
	t.Cursor.FinalResponse = ""

	if err := f.reply(ctx, t, t.Event.InvitationText, t.Event.InvitationMedia, models.MessageKindInvitation, -1); err != nil {
		return err
	}
	t.Contact.InviteMessageStatus = models.InviteMessagePending
	first := t.Contact.NextPendingDay(0, t.numDays)
	if first < 0 {
		t.Cursor.MessageTrack = models.TrackInvited
		t.Cursor.InviteIndex = 0
		return f.persist(ctx, t, true)
	}
	t.Cursor.MessageTrack = models.TrackDayLoop
	t.Cursor.InviteIndex = first
	if err := f.sendDayInvite(ctx, t, first); err != nil {
		return err
	}
	return f.persist(ctx, t, true)
}

func (f *ConversationFlowImpl) HandleOperatorCommand(ctx context.Context, in *ConversationInput) (bool, error) {
	cmd, ok := parseOperatorCommand(in.Event, in.Text)
	if !ok {
		return false, nil
	}
	t := &turn{ConversationInput: in, numDays: in.Event.NumDays()}
	t.Contact.NormalizeDays(t.numDays)

	day := cmd.day - 1
	if cmd.day > 0 && (day >= t.numDays || !t.Contact.Days[day].Eligible()) {
		f.logger.Warn("Operator command names a day the contact was not offered",
			zap.String("number", t.Number), zap.Uint("event_id", t.Event.ID), zap.Int("day", cmd.day))
		return true, nil
	}

	switch cmd.code {
	case operatorInvite:
		t.Contact.ResetDays(t.numDays)
		t.Contact.HasCompletedForm = false
		t.Contact.LastResponse = ""
		t.Contact.LastResponseAt = nil
		return true, f.invite(ctx, t, false)

	case operatorAccept:
		return true, f.operatorAccept(ctx, t, day, cmd)

	case operatorReject:
		return true, f.operatorReject(ctx, t, day, cmd)
	}
	return false, nil
}

func (f *ConversationFlowImpl) operatorAccept(ctx context.Context, t *turn, day int, cmd operatorCommand) error {
	if cmd.day == 0 {
		t.Contact.AcceptAllDays(t.numDays, f.allInvitesCount)
		if err := f.finish(ctx, t, len(t.Event.SubEvents) > 0); err != nil {
			return err
		}
		return f.persist(ctx, t, false)
	}

	d := t.Contact.Days[day]
	switch {
	case cmd.count != "":
		if !d.AcceptsQuantity(cmd.count) {
			f.logger.Warn("Operator accepted more seats than allocated",
				zap.String("number", t.Number), zap.Int("day", cmd.day), zap.String("count", cmd.count))
			return nil
		}
		f.acceptDay(t, day, f.acceptedSeats(d, cmd.count))
	case d.IsSingleSeat():
		f.acceptDay(t, day, "1")
	default:
		f.ensureCursor(t)
		t.Cursor.MessageTrack = models.TrackDayLoop
		t.Cursor.InviteIndex = day
		t.Cursor.IsCompleted = false
		t.Contact.Days[day].Status = models.DayStatusPending
		t.Contact.Days[day].InvitesAccepted = "0"
		t.Contact.HasCompletedForm = false
		if err := f.reply(ctx, t, t.Event.MoreThanOneInvitesText, "", models.MessageKindReply, day); err != nil {
			return err
		}
		t.Contact.RefreshOverallStatus(t.numDays)
		return f.persist(ctx, t, false)
	}

	if err := f.advanceOrFinish(ctx, t); err != nil {
		return err
	}
	t.Contact.RefreshOverallStatus(t.numDays)
	return f.persist(ctx, t, false)
}

func (f *ConversationFlowImpl) operatorReject(ctx context.Context, t *turn, day int, cmd operatorCommand) error {
	if cmd.day == 0 {
		t.Contact.RejectAllDays(t.numDays)
		if err := f.finish(ctx, t, false); err != nil {
			return err
		}
		return f.persist(ctx, t, false)
	}

	if cmd.count == "" {
		f.rejectDay(t, day)
		if err := f.advanceOrFinish(ctx, t); err != nil {
			return err
		}
		t.Contact.RefreshOverallStatus(t.numDays)
		return f.persist(ctx, t, false)
	}

	// Partial rejection lowers the accepted seats of the day
	d := &t.Contact.Days[day]
	left := 0
	if cmd.count != models.AllInvites {
		n, _ := strconv.Atoi(cmd.count)
		left = d.AcceptedCount() - n
	}
	if left <= 0 {
		f.rejectDay(t, day)
	} else {
		d.InvitesAccepted = strconv.Itoa(left)
		d.Status = models.DayStatusAccepted
		f.transition("reduce_day")
	}
	t.Contact.RefreshOverallStatus(t.numDays)

	ack := t.Event.RejectionAcknowledgment
	media := ""
	if t.Contact.Days[day].Status == models.DayStatusAccepted {
		ack = t.Event.AcceptanceAcknowledgment
		media = t.Event.ThankYouMedia
	}
	if err := f.reply(ctx, t, ack, media, models.MessageKindAcknowledge, day); err != nil {
		return err
	}
	return f.persist(ctx, t, false)
}

func (f *ConversationFlowImpl) sendDayInvite(ctx context.Context, t *turn, i int) error {
	return f.reply(ctx, t, t.Event.SubEventTemplate(i), t.Event.SubEventMedia(i), models.MessageKindSubEvent, i)
}

// reply renders template against a record built for this reply only
func (f *ConversationFlowImpl) reply(ctx context.Context, t *turn, template, media string, kind models.MessageKind, day int) error {
	_, err := f.dispatcher.Send(ctx, Outbound{
		Event:      t.Event,
		Number:     t.Number,
		InstanceID: t.InstanceID,
		Template:   template,
		Media:      media,
		Kind:       kind,
		Data:       BuildTemplateData(t.Event, t.Contact, day, t.Cursor),
	})
	return err
}

func (f *ConversationFlowImpl) replyText(ctx context.Context, t *turn, text string) error {
	f.transition("no_match")
	_, err := f.dispatcher.Send(ctx, Outbound{
		Event:      t.Event,
		Number:     t.Number,
		InstanceID: t.InstanceID,
		Template:   text,
		Kind:       models.MessageKindReply,
		Data:       services.TemplateData{},
	})
	return err
}

func (f *ConversationFlowImpl) ensureCursor(t *turn) {
	if t.Cursor != nil {
		return
	}
	t.Cursor = &models.ChatLog{
		Number:       t.Number,
		InstanceID:   t.InstanceID,
		EventID:      t.Event.ID,
		MessageTrack: models.TrackInvited,
		Extra:        models.StringMap{},
	}
}

// persist stores the contact and the cursor together. record keeps the
// message text as the contact's latest answer.
func (f *ConversationFlowImpl) persist(ctx context.Context, t *turn, record bool) error {
	f.ensureCursor(t)
	t.Cursor.InviteStatus = t.Contact.OverallStatus.String()
	if record {
		t.Contact.LastResponse = t.Text
		t.Contact.LastResponseAt = utils.ToPtr(f.now())
		t.Cursor.FinalResponse = t.Text
	}
	return f.tx.WithinTx(ctx, func(txCtx context.Context) error {
		if err := f.contactRepo.Update(txCtx, t.Contact); err != nil {
			return err
		}
		return f.chatLogRepo.Upsert(txCtx, t.Cursor)
	})
}

func (f *ConversationFlowImpl) transition(name string) {
	metrics.Transitions.WithLabelValues(name).Inc()
}

type operatorCode int

const (
	operatorInvite operatorCode = iota + 1
	operatorAccept
	operatorReject
)

type operatorCommand struct {
	code  operatorCode
	day   int // 1 based, 0 when absent
	count string
}

// parseOperatorCommand reads "{initialCode}/{code}[/{day}[/{count}]]"
func parseOperatorCommand(ev *models.Event, text string) (operatorCommand, bool) {
	var cmd operatorCommand
	if strings.TrimSpace(ev.InitialCode) == "" {
		return cmd, false
	}
	parts := strings.Split(strings.ToLower(strings.TrimSpace(text)), "/")
	if len(parts) < 2 || len(parts) > 4 || parts[0] != strings.ToLower(ev.InitialCode) {
		return cmd, false
	}

	code := strings.TrimSpace(parts[1])
	switch {
	case code != "" && code == strings.ToLower(ev.InviteCode):
		cmd.code = operatorInvite
	case code != "" && code == strings.ToLower(ev.AcceptCode):
		cmd.code = operatorAccept
	case code != "" && code == strings.ToLower(ev.RejectCode):
		cmd.code = operatorReject
	default:
		return cmd, false
	}

	if len(parts) >= 3 {
		d, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil || d < 1 {
			return cmd, false
		}
		cmd.day = d
	}
	if len(parts) == 4 {
		count := strings.TrimSpace(parts[3])
		if count != models.AllInvites {
			if n, err := strconv.Atoi(count); err != nil || n < 0 {
				return cmd, false
			}
		}
		cmd.count = count
	}
	return cmd, true
}
