package businessflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/rsvp-relay/app/dto"
	"github.com/amirphl/rsvp-relay/app/metrics"
	"github.com/amirphl/rsvp-relay/app/report"
	"github.com/amirphl/rsvp-relay/app/services"
	"github.com/amirphl/rsvp-relay/models"
	"github.com/amirphl/rsvp-relay/repository"
	"github.com/amirphl/rsvp-relay/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// BulkJobNotifier wakes the background runner when a job is queued
type BulkJobNotifier interface {
	Notify()
}

// BulkSendFlow queues and executes rate limited bulk sends
type BulkSendFlow interface {
	// SendBulk persists a pending job and returns without waiting for it
	SendBulk(ctx context.Context, eventID uint, req *dto.CreateBulkJobRequest, metadata *ClientMetadata) (*dto.BulkJobDTO, error)
	// ExecuteJob delivers the job's remaining targets one by one
	ExecuteJob(ctx context.Context, job *models.BulkJob) error
	GetJob(ctx context.Context, uuid string) (*dto.BulkJobDTO, error)
	ListJobs(ctx context.Context, eventID uint) (*dto.ListBulkJobsResponse, error)
	ResumableJobs(ctx context.Context, limit int) ([]*models.BulkJob, error)
	SetNotifier(n BulkJobNotifier)
}

type BulkSendFlowImpl struct {
	eventRepo       repository.EventRepository
	contactRepo     repository.ContactRepository
	chatLogRepo     repository.ChatLogRepository
	jobRepo         repository.BulkJobRepository
	tx              repository.Transactor
	dispatcher      Dispatcher
	locker          services.KeyedLocker
	notifier        BulkJobNotifier
	defaultDelay    time.Duration
	allInvitesCount string
	maxNumberLength int
	sleep           func(ctx context.Context, d time.Duration) error
	logger          *zap.Logger
}

func NewBulkSendFlow(
	eventRepo repository.EventRepository,
	contactRepo repository.ContactRepository,
	chatLogRepo repository.ChatLogRepository,
	jobRepo repository.BulkJobRepository,
	tx repository.Transactor,
	dispatcher Dispatcher,
	locker services.KeyedLocker,
	defaultDelay time.Duration,
	allInvitesCount string,
	maxNumberLength int,
	logger *zap.Logger,
) BulkSendFlow {
	if allInvitesCount == "" {
		allInvitesCount = models.AllInvites
	}
	return &BulkSendFlowImpl{
		eventRepo:       eventRepo,
		contactRepo:     contactRepo,
		chatLogRepo:     chatLogRepo,
		jobRepo:         jobRepo,
		tx:              tx,
		dispatcher:      dispatcher,
		locker:          locker,
		defaultDelay:    defaultDelay,
		allInvitesCount: allInvitesCount,
		maxNumberLength: maxNumberLength,
		sleep:           sleepContext,
		logger:          logger.Named("bulk"),
	}
}

func (f *BulkSendFlowImpl) SetNotifier(n BulkJobNotifier) {
	f.notifier = n
}

func (f *BulkSendFlowImpl) SendBulk(ctx context.Context, eventID uint, req *dto.CreateBulkJobRequest, metadata *ClientMetadata) (*dto.BulkJobDTO, error) {
	event, err := f.eventRepo.ByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, NewBusinessError("EVENT_NOT_FOUND", "Event not found", ErrEventNotFound)
	}

	msgType := models.BulkMessageType(strings.ToLower(strings.TrimSpace(req.MessageType)))
	if !msgType.Valid() {
		return nil, NewBusinessError("INVALID_MESSAGE_TYPE", "Message type must be invite, accept, reject or plain", ErrInvalidMessageType)
	}
	if strings.TrimSpace(req.Message) == "" && strings.TrimSpace(req.Media) == "" {
		return nil, NewBusinessError("BULK_TEMPLATE_EMPTY", "Message or media is required", ErrBulkTemplateEmpty)
	}

	targets, err := f.resolveTargets(ctx, event, req)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, NewBusinessError("NO_BULK_TARGETS", "No recipients matched the request", ErrNoBulkTargets)
	}

	// The configured delay is a floor. A job may only slow down.
	delay := f.defaultDelay
	if req.DelayMillis != nil {
		delay = max(delay, time.Duration(*req.DelayMillis)*time.Millisecond)
	}
	track := models.TrackInvited
	if req.MessageTrack > 0 {
		track = models.MessageTrack(req.MessageTrack)
	}

	job := &models.BulkJob{
		UUID:         uuid.New(),
		EventID:      event.ID,
		InstanceID:   req.InstanceID,
		Targets:      pq.StringArray(targets),
		Template:     req.Message,
		Media:        req.Media,
		MessageType:  msgType,
		MessageTrack: track,
		Status:       models.BulkJobStatusPending,
		DelayMillis:  delay.Milliseconds(),
		CreatedBy:    operatorOf(metadata),
	}
	if err := f.jobRepo.Save(ctx, job); err != nil {
		return nil, NewBusinessError("BULK_JOB_SAVE_FAILED", "Failed to queue bulk job", err)
	}

	f.logger.Info("Bulk job queued",
		zap.String("job", job.UUID.String()),
		zap.Uint("event_id", event.ID),
		zap.Int("targets", len(targets)),
		zap.String("type", string(msgType)),
		zap.Duration("delay", delay))

	if f.notifier != nil {
		f.notifier.Notify()
	}
	resp := ToBulkJobDTO(*job)
	return &resp, nil
}

// resolveTargets returns the explicit numbers, or the numbers of the event's
// contacts matching the filters, without duplicates and in order
func (f *BulkSendFlowImpl) resolveTargets(ctx context.Context, event *models.Event, req *dto.CreateBulkJobRequest) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	add := func(n string) {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}

	if len(req.Numbers) > 0 {
		for _, raw := range req.Numbers {
			n := report.NormalizeNumber(raw)
			if !validNumber(n, f.maxNumberLength) {
				return nil, NewBusinessErrorf("INVALID_NUMBER", "Invalid number %q", ErrInvalidNumber, raw)
			}
			add(n)
		}
		return out, nil
	}

	filter := models.ContactFilter{EventID: &event.ID, DayIndex: req.DayIndex}
	if req.DayStatus != nil {
		s := models.DayStatus(*req.DayStatus)
		filter.DayStatus = &s
	}
	if req.InviteMessageStatus != nil {
		s := models.InviteMessageStatus(*req.InviteMessageStatus)
		filter.InviteMessageStatus = &s
	}
	if req.OverallStatus != nil {
		s := models.OverallStatus(*req.OverallStatus)
		filter.OverallStatus = &s
	}
	contacts, err := f.contactRepo.ByFilter(ctx, filter, "id ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("BULK_TARGETS_FAILED", "Failed to select recipients", err)
	}
	for _, c := range contacts {
		add(c.Number)
	}
	return out, nil
}

func (f *BulkSendFlowImpl) ExecuteJob(ctx context.Context, job *models.BulkJob) error {
	log := f.logger.With(zap.String("job", job.UUID.String()))

	event, err := f.eventRepo.ByID(ctx, job.EventID)
	if err != nil {
		return err
	}
	if event == nil {
		return f.fail(ctx, job, job.NextIndex, ErrEventNotFound)
	}

	job.Status = models.BulkJobStatusRunning
	if job.StartedAt == nil {
		job.StartedAt = utils.UTCNowPtr()
	}
	if err := f.jobRepo.Update(ctx, job); err != nil {
		return err
	}
	metrics.BulkJobRunning.Set(1)
	defer metrics.BulkJobRunning.Set(0)

	log.Info("Bulk job running", zap.Int("from", job.NextIndex), zap.Int("targets", len(job.Targets)))
	numDays := event.NumDays()
	for i := job.NextIndex; i < len(job.Targets); i++ {
		if i > 0 {
			// Interrupted jobs stay running and resume at NextIndex
			if err := f.sleep(ctx, job.Delay()); err != nil {
				return err
			}
		}
		if err := f.deliver(ctx, event, job, job.Targets[i], numDays); err != nil {
			log.Error("Bulk send failed", zap.Int("index", i), zap.String("number", job.Targets[i]), zap.Error(err))
			return f.fail(ctx, job, i, err)
		}
		job.NextIndex = i + 1
		if err := f.jobRepo.Update(ctx, job); err != nil {
			return err
		}
	}

	job.Status = models.BulkJobStatusDone
	job.FinishedAt = utils.UTCNowPtr()
	if err := f.jobRepo.Update(ctx, job); err != nil {
		return err
	}
	metrics.BulkJobs.WithLabelValues(job.Status.String()).Inc()
	log.Info("Bulk job done", zap.Int("sent", len(job.Targets)))
	return nil
}

// deliver sends to one target and applies the job's message type to the
// target's contact and cursor under the conversation lock
func (f *BulkSendFlowImpl) deliver(ctx context.Context, event *models.Event, job *models.BulkJob, number string, numDays int) error {
	unlock, err := f.locker.Lock(ctx, services.ConversationKey(number, event.ID))
	if err != nil {
		return err
	}
	defer unlock()

	contact, err := f.contactRepo.ByEventAndNumber(ctx, event.ID, number)
	if err != nil {
		return err
	}

	kind := models.MessageKindBulk
	if job.MessageType == models.BulkMessageTypeInvite {
		kind = models.MessageKindInvitation
	}
	if _, err := f.dispatcher.Send(ctx, Outbound{
		Event:      event,
		Number:     number,
		InstanceID: job.InstanceID,
		Template:   job.Template,
		Media:      job.Media,
		Kind:       kind,
		Data:       BuildTemplateData(event, contact, -1, nil),
	}); err != nil {
		return err
	}
	if contact == nil || job.MessageType == models.BulkMessageTypePlain {
		return nil
	}

	contact.NormalizeDays(numDays)
	switch job.MessageType {
	case models.BulkMessageTypeInvite:
		contact.ResetDays(numDays)
		contact.HasCompletedForm = false
		contact.InviteMessageStatus = models.InviteMessagePending
	case models.BulkMessageTypeAccept:
		contact.AcceptAllDays(numDays, f.allInvitesCount)
		contact.HasCompletedForm = true
	case models.BulkMessageTypeReject:
		contact.RejectAllDays(numDays)
		contact.HasCompletedForm = true
	}
	contact.RefreshOverallStatus(numDays)

	cursor, err := f.chatLogRepo.Current(ctx, number, job.InstanceID, event.ID)
	if err != nil {
		return err
	}
	if cursor == nil {
		cursor = &models.ChatLog{Number: number, InstanceID: job.InstanceID, EventID: event.ID, Extra: models.StringMap{}}
	}
	cursor.MessageTrack = job.MessageTrack
	cursor.InviteIndex = 0
	cursor.IsCompleted = false
	cursor.FinalResponse = ""
	if job.MessageTrack == models.TrackCompleted {
		cursor.Finish(numDays)
	}
	cursor.InviteStatus = contact.OverallStatus.String()

	return f.tx.WithinTx(ctx, func(txCtx context.Context) error {
		if err := f.contactRepo.Update(txCtx, contact); err != nil {
			return err
		}
		return f.chatLogRepo.Upsert(txCtx, cursor)
	})
}

func (f *BulkSendFlowImpl) fail(ctx context.Context, job *models.BulkJob, index int, cause error) error {
	job.Status = models.BulkJobStatusFailed
	job.FailedIndex = utils.ToPtr(index)
	job.Error = utils.ToPtr(cause.Error())
	job.FinishedAt = utils.UTCNowPtr()
	metrics.BulkJobs.WithLabelValues(job.Status.String()).Inc()
	if err := f.jobRepo.Update(ctx, job); err != nil {
		return fmt.Errorf("record bulk job failure (%v): %w", cause, err)
	}
	return cause
}

func (f *BulkSendFlowImpl) GetJob(ctx context.Context, uuid string) (*dto.BulkJobDTO, error) {
	job, err := f.jobRepo.ByUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, NewBusinessError("BULK_JOB_NOT_FOUND", "Bulk job not found", ErrBulkJobNotFound)
	}
	resp := ToBulkJobDTO(*job)
	return &resp, nil
}

func (f *BulkSendFlowImpl) ListJobs(ctx context.Context, eventID uint) (*dto.ListBulkJobsResponse, error) {
	jobs, err := f.jobRepo.ByFilter(ctx, models.BulkJobFilter{EventID: &eventID}, "id DESC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("BULK_JOB_LIST_FAILED", "Failed to list bulk jobs", err)
	}
	items := make([]dto.BulkJobDTO, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, ToBulkJobDTO(*j))
	}
	return &dto.ListBulkJobsResponse{Items: items}, nil
}

func (f *BulkSendFlowImpl) ResumableJobs(ctx context.Context, limit int) ([]*models.BulkJob, error) {
	return f.jobRepo.ListResumable(ctx, limit)
}
