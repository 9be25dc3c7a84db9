package businessflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/rsvp-relay/app/report"
	"github.com/amirphl/rsvp-relay/app/services"
	"github.com/amirphl/rsvp-relay/models"
	"github.com/amirphl/rsvp-relay/repository"
	"github.com/amirphl/rsvp-relay/utils"
	"go.uber.org/zap"
)

const (
	reportDumpKeyword   = "report dump"
	newContactHeader    = "new_contact"
	reportCaption       = "Download report"
	reportDumpCaption   = "Download report dump"
	contactSavedReply   = "Contact saved"
	newContactHowTo     = "Copy the next message, fill in the details and send it back."
	missingContactReply = "Name and number are required"
)

// AdminCommandInput is a message from a contact flagged as admin. Previous
// is the sender's inbound message before this one, nil when there is none.
type AdminCommandInput struct {
	Event      *models.Event
	Contact    *models.Contact
	Number     string
	InstanceID string
	Text       string
	Previous   *models.Message
}

// AdminCommandFlow recognises admin keywords sent over the chat channel
type AdminCommandFlow interface {
	// Handle reports whether the message was an admin command. Unhandled
	// messages continue to the conversation state machine.
	Handle(ctx context.Context, in *AdminCommandInput) (bool, error)
}

type AdminCommandFlowImpl struct {
	dispatcher      Dispatcher
	contactRepo     repository.ContactRepository
	chatLogRepo     repository.ChatLogRepository
	mediaStore      services.MediaStore
	matcher         *services.KeywordMatcher
	reportsSubdir   string
	stepDelay       time.Duration
	maxNumberLength int
	sleep           func(ctx context.Context, d time.Duration) error
	logger          *zap.Logger
}

func NewAdminCommandFlow(
	dispatcher Dispatcher,
	contactRepo repository.ContactRepository,
	chatLogRepo repository.ChatLogRepository,
	mediaStore services.MediaStore,
	matcher *services.KeywordMatcher,
	reportsSubdir string,
	stepDelay time.Duration,
	maxNumberLength int,
	logger *zap.Logger,
) AdminCommandFlow {
	return &AdminCommandFlowImpl{
		dispatcher:      dispatcher,
		contactRepo:     contactRepo,
		chatLogRepo:     chatLogRepo,
		mediaStore:      mediaStore,
		matcher:         matcher,
		reportsSubdir:   reportsSubdir,
		stepDelay:       stepDelay,
		maxNumberLength: maxNumberLength,
		sleep:           sleepContext,
		logger:          logger.Named("admin"),
	}
}

func (f *AdminCommandFlowImpl) Handle(ctx context.Context, in *AdminCommandInput) (bool, error) {
	if in.Contact == nil || !in.Contact.IsAdmin {
		return false, nil
	}
	ev := in.Event
	text := strings.TrimSpace(in.Text)

	switch {
	case f.matcher.Equals(text, reportDumpKeyword):
		return true, f.sendReport(ctx, in, true)
	case f.matcher.Equals(text, ev.ReportKeyword):
		return true, f.sendReport(ctx, in, false)
	case f.matcher.Equals(text, ev.StatsKeyword):
		return true, f.sendStats(ctx, in)
	}

	if strings.TrimSpace(ev.NewContactCode) == "" || strings.TrimSpace(ev.InitialCode) == "" {
		return false, nil
	}
	code := ev.ProtocolCode(ev.NewContactCode)
	if strings.ToLower(text) == code {
		return true, f.sendRegistrationForm(ctx, in)
	}
	if in.Previous != nil && strings.ToLower(strings.TrimSpace(in.Previous.Text)) == code && isRegistrationForm(text) {
		return true, f.register(ctx, in)
	}
	return false, nil
}

func (f *AdminCommandFlowImpl) sendReport(ctx context.Context, in *AdminCommandInput, dump bool) error {
	rows, err := loadReportRows(ctx, f.contactRepo, f.chatLogRepo, in.Event.ID)
	if err != nil {
		return err
	}

	build, caption, name := report.BuildContactReport, reportCaption, "report"
	if dump {
		build, caption, name = report.BuildContactDump, reportDumpCaption, "report-dump"
	}
	data, err := build(rows, in.Event.NumDays())
	if err != nil {
		return fmt.Errorf("build %s: %w", name, err)
	}

	filename := fmt.Sprintf("%s-%d-%s.xlsx", name, in.Event.ID, utils.FormatTimestamp(utils.UTCNow()))
	stored, err := f.mediaStore.Save(ctx, f.reportsSubdir, filename, data)
	if err != nil {
		return fmt.Errorf("store %s: %w", name, err)
	}
	f.logger.Info("Report generated",
		zap.Uint("event_id", in.Event.ID),
		zap.String("number", in.Number),
		zap.String("path", stored),
		zap.Int("contacts", len(rows)))

	return f.send(ctx, in, caption, stored)
}

func (f *AdminCommandFlowImpl) sendStats(ctx context.Context, in *AdminCommandInput) error {
	contacts, err := f.contactRepo.ByFilter(ctx, models.ContactFilter{EventID: &in.Event.ID}, "id ASC", 0, 0)
	if err != nil {
		return err
	}
	stats := report.ComputeStats(contacts, in.Event.NumDays())
	return f.send(ctx, in, report.FormatStats(stats), "")
}

func (f *AdminCommandFlowImpl) sendRegistrationForm(ctx context.Context, in *AdminCommandInput) error {
	if err := f.send(ctx, in, newContactHowTo, ""); err != nil {
		return err
	}
	if err := f.sleep(ctx, f.stepDelay); err != nil {
		return err
	}
	return f.send(ctx, in, registrationForm(in.Event), "")
}

func (f *AdminCommandFlowImpl) register(ctx context.Context, in *AdminCommandInput) error {
	fields := parseRegistrationForm(in.Text)
	req := newContact{
		Name:       fields["name"],
		Number:     report.NormalizeNumber(fields["isdcode"] + fields["number"]),
		InstanceID: in.InstanceID,
		Invites:    fields["invites"],
		Params:     map[string]string{},
	}
	for k, v := range fields {
		switch {
		case k == "name" || k == "number" || k == "isdcode" || k == "invites":
		case strings.HasPrefix(k, "day"):
		default:
			req.Params[k] = v
		}
	}
	n := in.Event.NumDays()
	req.Days = make([]string, n)
	for i := 0; i < n; i++ {
		req.Days[i] = fields[fmt.Sprintf("day%d", i+1)]
	}

	if strings.TrimSpace(req.Name) == "" || req.Number == "" {
		return f.send(ctx, in, missingContactReply, "")
	}
	if !validNumber(req.Number, f.maxNumberLength) {
		return f.send(ctx, in, ReplyInvalidNumber, "")
	}

	contact, matched, err := saveNewContact(ctx, f.contactRepo, in.Event, req)
	if err != nil {
		if IsInvalidAllocation(err) {
			return f.send(ctx, in, err.Error(), "")
		}
		return err
	}
	if len(matched) > 0 {
		return f.send(ctx, in, duplicateContactMessage(matched), "")
	}

	f.logger.Info("Contact registered over chat",
		zap.Uint("event_id", in.Event.ID),
		zap.Uint("contact_id", contact.ID),
		zap.String("admin", in.Number))
	return f.send(ctx, in, contactSavedReply, "")
}

func (f *AdminCommandFlowImpl) send(ctx context.Context, in *AdminCommandInput, text, media string) error {
	_, err := f.dispatcher.Send(ctx, Outbound{
		Event:      in.Event,
		Number:     in.Number,
		InstanceID: in.InstanceID,
		Template:   text,
		Media:      media,
		Kind:       models.MessageKindAdmin,
		Data:       services.TemplateData{},
	})
	return err
}

// registrationForm is the template an admin fills in to add a contact
func registrationForm(ev *models.Event) string {
	var b strings.Builder
	b.WriteString("New_Contact\nName: \nISDCode: \nNumber: \n")
	for i := 0; i < ev.NumDays(); i++ {
		label := ""
		if se := ev.SubEventAt(i); se != nil && se.Name != "" {
			label = " (" + se.Name + ")"
		}
		fmt.Fprintf(&b, "Day%d%s: \n", i+1, label)
	}
	return strings.TrimRight(b.String(), "\n")
}

func isRegistrationForm(text string) bool {
	first, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	return strings.ToLower(strings.TrimSpace(first)) == newContactHeader
}

// parseRegistrationForm reads "key: value" lines. Keys are lower cased with
// spaces removed and a "(label)" suffix dropped.
func parseRegistrationForm(text string) map[string]string {
	out := map[string]string{}
	for _, line := range strings.Split(text, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if i := strings.Index(key, "("); i >= 0 {
			key = key[:i]
		}
		key = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(key), " ", ""))
		if key == "" {
			continue
		}
		out[key] = strings.TrimSpace(value)
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
