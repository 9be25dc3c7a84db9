package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amirphl/rsvp-relay/models"
	"github.com/amirphl/rsvp-relay/repository"
	testingutil "github.com/amirphl/rsvp-relay/testing"
	"github.com/amirphl/rsvp-relay/utils"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRepository(t *testing.T) {
	testingutil.RequireDB(t)
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewEventRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		event, err := fixtures.CreateTestEvent("Gala")
		require.NoError(t, err)

		t.Run("ByIDRoundTripsSubEvents", func(t *testing.T) {
			got, err := repo.ByID(ctx, event.ID)
			require.NoError(t, err)
			require.NotNil(t, got)
			require.Len(t, got.SubEvents, 2)
			assert.Equal(t, "Brunch", got.SubEvents[1].Name)
			assert.Equal(t, "Garden", got.SubEvents[1].Venue)
		})

		t.Run("ByIDNotFound", func(t *testing.T) {
			got, err := repo.ByID(ctx, 999)
			assert.NoError(t, err)
			assert.Nil(t, got)
		})

		t.Run("ByUUID", func(t *testing.T) {
			got, err := repo.ByUUID(ctx, event.UUID.String())
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, event.ID, got.ID)
		})

		t.Run("OpenAtFilter", func(t *testing.T) {
			now := utils.UTCNow()
			open, err := repo.ByFilter(ctx, models.EventFilter{OpenAt: &now}, "", 0, 0)
			require.NoError(t, err)
			assert.Len(t, open, 1)

			later := now.Add(30 * 24 * time.Hour)
			open, err = repo.ByFilter(ctx, models.EventFilter{OpenAt: &later}, "", 0, 0)
			require.NoError(t, err)
			assert.Empty(t, open)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestContactRepository(t *testing.T) {
	testingutil.RequireDB(t)
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewContactRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		event, err := fixtures.CreateTestEvent("Gala")
		require.NoError(t, err)
		alice, err := fixtures.CreateTestContact(event.ID, "Alice", "2", "0")
		require.NoError(t, err)
		bob, err := fixtures.CreateTestContact(event.ID, "Bob", "1", "all")
		require.NoError(t, err)

		t.Run("ByEventAndNumber", func(t *testing.T) {
			got, err := repo.ByEventAndNumber(ctx, event.ID, alice.Number)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "Alice", got.Name)
			require.Len(t, got.Days, 2)
			assert.Equal(t, models.DayStatusPending, got.Days[0].Status)
			assert.False(t, got.Days[1].Eligible())

			got, err = repo.ByEventAndNumber(ctx, event.ID, "000")
			require.NoError(t, err)
			assert.Nil(t, got)
		})

		t.Run("ByEventAndNameOrNumber", func(t *testing.T) {
			got, err := repo.ByEventAndNameOrNumber(ctx, event.ID, "Bob", "111")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, bob.ID, got.ID)

			got, err = repo.ByEventAndNameOrNumber(ctx, event.ID, "Carol", alice.Number)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, alice.ID, got.ID)

			got, err = repo.ByEventAndNameOrNumber(ctx, event.ID, "Carol", "111")
			require.NoError(t, err)
			assert.Nil(t, got)
		})

		t.Run("DayFilter", func(t *testing.T) {
			day := 1
			rows, err := repo.ByFilter(ctx, models.ContactFilter{EventID: &event.ID, DayIndex: &day}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, "Bob", rows[0].Name)

			status := models.DayStatusAccepted
			rows, err = repo.ByFilter(ctx, models.ContactFilter{EventID: &event.ID, DayIndex: &day, DayStatus: &status}, "", 0, 0)
			require.NoError(t, err)
			assert.Empty(t, rows)
		})

		t.Run("SearchAndUpdate", func(t *testing.T) {
			search := "ali"
			rows, err := repo.ByFilter(ctx, models.ContactFilter{EventID: &event.ID, Search: &search}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, rows, 1)

			c := rows[0]
			c.AcceptAllDays(2, "5")
			c.RefreshOverallStatus(2)
			require.NoError(t, repo.Update(ctx, c))

			accepted := models.OverallStatusAccepted
			count, err := repo.Count(ctx, models.ContactFilter{EventID: &event.ID, OverallStatus: &accepted})
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
		})

		t.Run("DuplicateNumberRejected", func(t *testing.T) {
			dup := &models.Contact{EventID: event.ID, Name: "Other", Number: alice.Number}
			assert.Error(t, repo.Save(ctx, dup))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestChatLogRepository(t *testing.T) {
	testingutil.RequireDB(t)
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewChatLogRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		event, err := fixtures.CreateTestEvent("Gala")
		require.NoError(t, err)

		t.Run("UpsertOverwritesCursor", func(t *testing.T) {
			cursor := &models.ChatLog{Number: "919999999999", InstanceID: "INST1", EventID: event.ID, MessageTrack: models.TrackInvited}
			require.NoError(t, repo.Upsert(ctx, cursor))

			cursor = &models.ChatLog{Number: "919999999999", InstanceID: "INST1", EventID: event.ID, MessageTrack: models.TrackDayLoop, InviteIndex: 1, Extra: models.StringMap{"guests": "2"}}
			require.NoError(t, repo.Upsert(ctx, cursor))

			count, err := repo.Count(ctx, models.ChatLogFilter{EventID: &event.ID})
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)

			got, err := repo.Current(ctx, "919999999999", "INST1", event.ID)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, models.TrackDayLoop, got.MessageTrack)
			assert.Equal(t, 1, got.InviteIndex)
			assert.Equal(t, "2", got.Extra["guests"])
		})

		t.Run("CurrentMissing", func(t *testing.T) {
			got, err := repo.Current(ctx, "910000000000", "INST1", event.ID)
			require.NoError(t, err)
			assert.Nil(t, got)
		})

		t.Run("LatestByEvent", func(t *testing.T) {
			require.NoError(t, repo.Upsert(ctx, &models.ChatLog{Number: "919999999999", InstanceID: "INST2", EventID: event.ID, MessageTrack: models.TrackCompleted}))
			require.NoError(t, repo.Upsert(ctx, &models.ChatLog{Number: "918888888888", InstanceID: "INST1", EventID: event.ID, MessageTrack: models.TrackInvited}))

			latest, err := repo.LatestByEvent(ctx, event.ID)
			require.NoError(t, err)
			require.Len(t, latest, 2)
			assert.Equal(t, "INST2", latest["919999999999"].InstanceID)
			assert.Equal(t, models.TrackInvited, latest["918888888888"].MessageTrack)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestMessageRepository(t *testing.T) {
	testingutil.RequireDB(t)
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewMessageRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		event, err := fixtures.CreateTestEvent("Gala")
		require.NoError(t, err)

		base := utils.UTCNow().Add(-time.Minute)
		rows := []*models.Message{
			{EventID: &event.ID, Number: "919999999999", InstanceID: "INST1", Kind: models.MessageKindInbound, Text: "hello", MessageID: "IN1", CreatedAt: base},
			{EventID: &event.ID, Number: "919999999999", InstanceID: "INST1", FromMe: true, Kind: models.MessageKindInvitation, Text: "invite", MessageID: "OUT1", CreatedAt: base.Add(time.Second)},
			{EventID: &event.ID, Number: "919999999999", InstanceID: "INST1", Kind: models.MessageKindInbound, Text: "yes", MessageID: "IN2", CreatedAt: base.Add(2 * time.Second)},
		}
		require.NoError(t, repo.SaveBatch(ctx, rows))

		t.Run("ByMessageID", func(t *testing.T) {
			got, err := repo.ByMessageID(ctx, "OUT1")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.True(t, got.FromMe)

			got, err = repo.ByMessageID(ctx, "missing")
			require.NoError(t, err)
			assert.Nil(t, got)
		})

		t.Run("PreviousInbound", func(t *testing.T) {
			got, err := repo.PreviousInbound(ctx, event.ID, "919999999999", "INST1")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "yes", got.Text)
		})

		t.Run("StatusesPersist", func(t *testing.T) {
			got, err := repo.ByMessageID(ctx, "OUT1")
			require.NoError(t, err)
			got.Statuses = append(got.Statuses, models.MessageStatusEntry{Status: "DELIVERY_ACK", Time: utils.UTCNow()})
			require.NoError(t, repo.Update(ctx, got))

			got, err = repo.ByMessageID(ctx, "OUT1")
			require.NoError(t, err)
			require.Len(t, got.Statuses, 1)
			assert.Equal(t, "DELIVERY_ACK", got.Statuses[0].Status)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestBulkJobRepository(t *testing.T) {
	testingutil.RequireDB(t)
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewBulkJobRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		event, err := fixtures.CreateTestEvent("Gala")
		require.NoError(t, err)

		newJob := func(status models.BulkJobStatus, age time.Duration) *models.BulkJob {
			job := &models.BulkJob{
				EventID:     event.ID,
				InstanceID:  "INST1",
				Targets:     pq.StringArray{"919999999999", "918888888888"},
				Template:    "Dear {name}",
				MessageType: models.BulkMessageTypePlain,
				Status:      status,
				DelayMillis: 7500,
				CreatedAt:   utils.UTCNow().Add(-age),
			}
			require.NoError(t, repo.Save(ctx, job))
			return job
		}
		running := newJob(models.BulkJobStatusRunning, 2*time.Hour)
		pending := newJob(models.BulkJobStatusPending, time.Hour)
		newJob(models.BulkJobStatusDone, 3*time.Hour)

		t.Run("ListResumableOldestFirst", func(t *testing.T) {
			jobs, err := repo.ListResumable(ctx, 10)
			require.NoError(t, err)
			require.Len(t, jobs, 2)
			assert.Equal(t, running.ID, jobs[0].ID)
			assert.Equal(t, pending.ID, jobs[1].ID)
			assert.Equal(t, []string{"919999999999", "918888888888"}, []string(jobs[0].Targets))
		})

		t.Run("ByUUID", func(t *testing.T) {
			got, err := repo.ByUUID(ctx, pending.UUID.String())
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, pending.ID, got.ID)

			got, err = repo.ByUUID(ctx, "not-a-uuid")
			require.NoError(t, err)
			assert.Nil(t, got)
		})

		t.Run("ProgressPersists", func(t *testing.T) {
			running.NextIndex = 1
			require.NoError(t, repo.Update(ctx, running))
			got, err := repo.ByID(ctx, running.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, got.NextIndex)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestTransactorRollsBack(t *testing.T) {
	testingutil.RequireDB(t)
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		tx := repository.NewTransactor(testDB.DB)
		repo := repository.NewOperatorRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		boom := errors.New("boom")
		err := tx.WithinTx(ctx, func(txCtx context.Context) error {
			require.NoError(t, repo.Save(txCtx, &models.Operator{Username: "planner", PasswordHash: "x"}))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := repo.ByUsername(ctx, "planner")
		require.NoError(t, err)
		assert.Nil(t, got)
		return nil
	})
	require.NoError(t, err)
}

func TestOperatorRepository(t *testing.T) {
	testingutil.RequireDB(t)
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewOperatorRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		op, err := fixtures.CreateTestOperator("planner", "SecurePass123!")
		require.NoError(t, err)

		got, err := repo.ByUsername(ctx, "planner")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, op.UUID, got.UUID)
		assert.True(t, utils.IsTrue(got.IsActive))

		got.IsActive = utils.ToPtr(false)
		got.LastLoginAt = utils.UTCNowPtr()
		require.NoError(t, repo.Update(ctx, got))

		active, err := repo.Count(ctx, models.OperatorFilter{IsActive: utils.ToPtr(true)})
		require.NoError(t, err)
		assert.Equal(t, int64(0), active)

		require.NoError(t, testDB.ClearAllTables())
		exists, err := repo.Exists(ctx, models.OperatorFilter{Username: utils.ToPtr("planner")})
		require.NoError(t, err)
		assert.False(t, exists)
		return nil
	})
	require.NoError(t, err)
}
