package businessflow

import (
	"context"

	"github.com/amirphl/rsvp-relay/app/dto"
	"github.com/amirphl/rsvp-relay/app/report"
	"github.com/amirphl/rsvp-relay/models"
	"github.com/amirphl/rsvp-relay/repository"
)

// ReportFlow serves the dashboard statistics and spreadsheet downloads
type ReportFlow interface {
	Stats(ctx context.Context, eventID uint) (*dto.EventStatsResponse, error)
	// Report returns the per contact, per day workbook, or the full dump
	Report(ctx context.Context, eventID uint, dump bool) ([]byte, error)
}

type ReportFlowImpl struct {
	eventRepo   repository.EventRepository
	contactRepo repository.ContactRepository
	chatLogRepo repository.ChatLogRepository
}

func NewReportFlow(eventRepo repository.EventRepository, contactRepo repository.ContactRepository, chatLogRepo repository.ChatLogRepository) ReportFlow {
	return &ReportFlowImpl{
		eventRepo:   eventRepo,
		contactRepo: contactRepo,
		chatLogRepo: chatLogRepo,
	}
}

func (f *ReportFlowImpl) Stats(ctx context.Context, eventID uint) (*dto.EventStatsResponse, error) {
	event, err := f.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	contacts, err := f.contactRepo.ByFilter(ctx, models.ContactFilter{EventID: &event.ID}, "id ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("STATS_FAILED", "Failed to load contacts", err)
	}

	stats := report.ComputeStats(contacts, event.NumDays())
	resp := &dto.EventStatsResponse{
		TotalInvitees: stats.TotalInvitees,
		Yes:           stats.Yes,
		No:            stats.No,
		Balance:       stats.Balance,
		Days:          make([]dto.DayStatsDTO, 0, len(stats.Days)),
	}
	for i, d := range stats.Days {
		item := dto.DayStatsDTO{
			Day:           d.Day,
			Yes:           d.Yes,
			No:            d.No,
			Pending:       d.Pending,
			TotalAccepted: d.TotalAccepted,
		}
		if se := event.SubEventAt(i); se != nil {
			item.Name = se.Name
		}
		resp.Days = append(resp.Days, item)
	}
	return resp, nil
}

func (f *ReportFlowImpl) Report(ctx context.Context, eventID uint, dump bool) ([]byte, error) {
	event, err := f.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	rows, err := loadReportRows(ctx, f.contactRepo, f.chatLogRepo, event.ID)
	if err != nil {
		return nil, NewBusinessError("REPORT_FAILED", "Failed to load report data", err)
	}

	build := report.BuildContactReport
	if dump {
		build = report.BuildContactDump
	}
	data, err := build(rows, event.NumDays())
	if err != nil {
		return nil, NewBusinessError("REPORT_FAILED", "Failed to build report", err)
	}
	return data, nil
}

func (f *ReportFlowImpl) loadEvent(ctx context.Context, id uint) (*models.Event, error) {
	event, err := f.eventRepo.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, NewBusinessError("EVENT_NOT_FOUND", "Event not found", ErrEventNotFound)
	}
	return event, nil
}

// loadReportRows pairs every contact of the event with its latest cursor
func loadReportRows(ctx context.Context, contactRepo repository.ContactRepository, chatLogRepo repository.ChatLogRepository, eventID uint) ([]report.ContactRow, error) {
	contacts, err := contactRepo.ByFilter(ctx, models.ContactFilter{EventID: &eventID}, "id ASC", 0, 0)
	if err != nil {
		return nil, err
	}
	cursors, err := chatLogRepo.LatestByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	rows := make([]report.ContactRow, 0, len(contacts))
	for _, c := range contacts {
		rows = append(rows, report.ContactRow{Contact: c, Cursor: cursors[c.Number]})
	}
	return rows, nil
}
