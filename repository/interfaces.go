// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/amirphl/rsvp-relay/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// EventRepository defines operations for events
type EventRepository interface {
	Repository[models.Event, models.EventFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Event, error)
	Update(ctx context.Context, event *models.Event) error
}

// InstanceRepository defines operations for provider instance bindings
type InstanceRepository interface {
	Repository[models.Instance, models.InstanceFilter]
	// ListActiveByInstanceID returns every active binding of a provider instance
	ListActiveByInstanceID(ctx context.Context, instanceID string) ([]*models.Instance, error)
	Update(ctx context.Context, instance *models.Instance) error
}

// ContactRepository defines operations for contacts
type ContactRepository interface {
	Repository[models.Contact, models.ContactFilter]
	ByEventAndNumber(ctx context.Context, eventID uint, number string) (*models.Contact, error)
	// ByEventAndNameOrNumber finds a contact of the event sharing the name or the number
	ByEventAndNameOrNumber(ctx context.Context, eventID uint, name, number string) (*models.Contact, error)
	Update(ctx context.Context, contact *models.Contact) error
}

// ChatLogRepository defines operations for conversation cursors
type ChatLogRepository interface {
	Repository[models.ChatLog, models.ChatLogFilter]
	// Current returns the most recently updated cursor for the triple
	Current(ctx context.Context, number, instanceID string, eventID uint) (*models.ChatLog, error)
	// LatestByEvent returns the most recently updated cursor per number of an event
	LatestByEvent(ctx context.Context, eventID uint) (map[string]*models.ChatLog, error)
	Upsert(ctx context.Context, log *models.ChatLog) error
}

// MessageRepository defines operations for the message log
type MessageRepository interface {
	Repository[models.Message, models.MessageFilter]
	ByMessageID(ctx context.Context, messageID string) (*models.Message, error)
	// PreviousInbound returns the sender's latest non fromMe message
	PreviousInbound(ctx context.Context, eventID uint, number, instanceID string) (*models.Message, error)
	Update(ctx context.Context, message *models.Message) error
}

// BulkJobRepository defines operations for bulk send jobs
type BulkJobRepository interface {
	Repository[models.BulkJob, models.BulkJobFilter]
	ByUUID(ctx context.Context, uuid string) (*models.BulkJob, error)
	// ListResumable returns pending and running jobs, oldest first
	ListResumable(ctx context.Context, limit int) ([]*models.BulkJob, error)
	Update(ctx context.Context, job *models.BulkJob) error
}

// OperatorRepository defines operations for operators
type OperatorRepository interface {
	Repository[models.Operator, models.OperatorFilter]
	ByUsername(ctx context.Context, username string) (*models.Operator, error)
	Update(ctx context.Context, operator *models.Operator) error
}
