package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/amirphl/rsvp-relay/models"
	"github.com/amirphl/rsvp-relay/utils"
	"golang.org/x/crypto/bcrypt"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestEvent creates an open two day event
func (tf *TestFixtures) CreateTestEvent(name string) (*models.Event, error) {
	now := utils.UTCNow()
	event := &models.Event{
		Name:     name,
		StartsAt: now.Add(-time.Hour),
		EndsAt:   now.Add(7 * 24 * time.Hour),
		SubEvents: models.SubEvents{
			{Name: "Dinner", Date: "2024-11-20", Venue: "Main hall"},
			{Name: "Brunch", Date: "2024-11-21", Venue: "Garden"},
		},
		InvitationText:           "Dear {name}, you are invited to {eventName}.",
		AcceptanceKeyword:        "yes",
		AcceptanceAcknowledgment: "Thank you {name}!",
		RejectionKeyword:         "no",
		RejectionAcknowledgment:  "Sorry to miss you {name}.",
		SubEventInvitation:       "Will you attend {subEventName}?",
		StartingKeyword:          "hello " + name,
		RewriteKeyword:           "rewrite",
		InitialCode:              "RS",
		InviteCode:               "01",
		AcceptCode:               "02",
		RejectCode:               "03",
	}
	if err := tf.DB.DB.Create(event).Error; err != nil {
		return nil, fmt.Errorf("failed to create event %s: %w", name, err)
	}
	return event, nil
}

// CreateTestContact creates a pending contact offered the given allocations
func (tf *TestFixtures) CreateTestContact(eventID uint, name string, allocations ...string) (*models.Contact, error) {
	number := fmt.Sprintf("91%010d", rand.Int63n(9000000000)+1000000000)
	contact := &models.Contact{
		EventID:    eventID,
		InstanceID: "INST1",
		Name:       name,
		Number:     number,
		Params:     models.StringMap{},
	}
	for _, a := range allocations {
		contact.Days = append(contact.Days, models.ContactDay{InvitesAllocated: a})
	}
	contact.NormalizeDays(len(allocations))
	if err := tf.DB.DB.Create(contact).Error; err != nil {
		return nil, fmt.Errorf("failed to create contact %s: %w", name, err)
	}
	return contact, nil
}

// CreateTestOperator creates an active operator with the given password
func (tf *TestFixtures) CreateTestOperator(username, password string) (*models.Operator, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	operator := &models.Operator{
		Username:     username,
		PasswordHash: string(hash),
		IsActive:     utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(operator).Error; err != nil {
		return nil, fmt.Errorf("failed to create operator %s: %w", username, err)
	}
	return operator, nil
}
