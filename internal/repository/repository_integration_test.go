package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pildhora/backend/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// setupTestDB creates a PostgreSQL testcontainer and returns the connection pool
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("pildhora_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err)

	runMigrations(t, pool)

	cleanup := func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return pool, cleanup
}

// runMigrations creates the tables the repositories depend on
func runMigrations(t *testing.T, pool *pgxpool.Pool) {
	ctx := context.Background()

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS devices (
			id VARCHAR(255) PRIMARY KEY,
			owner_id VARCHAR(255) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS medications (
			id VARCHAR(255) PRIMARY KEY,
			patient_id VARCHAR(255) NOT NULL,
			caregiver_id VARCHAR(255),
			name VARCHAR(255) NOT NULL,
			icon VARCHAR(255) NOT NULL DEFAULT '',
			dosage VARCHAR(255) NOT NULL DEFAULT '',
			dose_value VARCHAR(255) NOT NULL DEFAULT '',
			dose_unit VARCHAR(255) NOT NULL DEFAULT '',
			quantity_type VARCHAR(50) NOT NULL,
			times TEXT[] NOT NULL,
			days INT[] NOT NULL,
			track_inventory BOOLEAN NOT NULL DEFAULT FALSE,
			current_quantity INT NOT NULL DEFAULT 0,
			initial_quantity INT NOT NULL DEFAULT 0,
			low_quantity_threshold INT NOT NULL DEFAULT 0,
			alarm_ids TEXT[],
			version INT NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			deleted_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS alarm_registrations (
			id VARCHAR(255) PRIMARY KEY,
			medication_id VARCHAR(255) NOT NULL REFERENCES medications(id) ON DELETE CASCADE,
			time VARCHAR(5) NOT NULL,
			day INT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS medication_events (
			id VARCHAR(255) PRIMARY KEY,
			medication_id VARCHAR(255) NOT NULL,
			patient_id VARCHAR(255) NOT NULL,
			actor_id VARCHAR(255) NOT NULL,
			actor_role VARCHAR(50) NOT NULL,
			type VARCHAR(50) NOT NULL,
			medication_name VARCHAR(255) NOT NULL,
			snapshot JSONB,
			changes JSONB,
			sync_status VARCHAR(50) NOT NULL,
			attempts INT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			delivered_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS intake_records (
			id VARCHAR(255) PRIMARY KEY,
			medication_id VARCHAR(255) NOT NULL,
			patient_id VARCHAR(255) NOT NULL,
			actor_id VARCHAR(255) NOT NULL,
			scheduled_time VARCHAR(5) NOT NULL,
			status VARCHAR(50) NOT NULL,
			taken_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS connection_codes (
			code VARCHAR(16) PRIMARY KEY,
			patient_id VARCHAR(255) NOT NULL,
			device_id VARCHAR(255) NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			used BOOLEAN NOT NULL DEFAULT FALSE,
			used_by VARCHAR(255),
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS device_links (
			id VARCHAR(255) PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			patient_id VARCHAR(255) NOT NULL,
			device_id VARCHAR(255) NOT NULL,
			role VARCHAR(50) NOT NULL,
			status VARCHAR(50) NOT NULL,
			linked_by VARCHAR(255) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			revoked_at TIMESTAMP
		)`,
	}

	for _, migration := range migrations {
		_, err := pool.Exec(ctx, migration)
		require.NoError(t, err)
	}
}

func newTestMedication(patientID string) *model.Medication {
	return &model.Medication{
		ID:                   uuid.New().String(),
		PatientID:            patientID,
		Name:                 "Lisinopril",
		QuantityType:         model.QuantityTablets,
		Times:                []string{"08:00", "20:00"},
		Days:                 []int{0, 1, 2, 3, 4, 5, 6},
		TrackInventory:       true,
		CurrentQuantity:      30,
		InitialQuantity:      30,
		LowQuantityThreshold: 6,
	}
}

func insertMedication(t *testing.T, repo *MedicationRepository, med *model.Medication) {
	ctx := context.Background()

	tx, err := repo.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	require.NoError(t, repo.Create(ctx, tx, med))
	require.NoError(t, tx.Commit(ctx))
	med.Version = 1
}

func TestMedicationRepository_AdjustQuantity(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	logger := zap.NewNop()
	repo := NewMedicationRepository(pool, logger)

	med := newTestMedication(uuid.New().String())
	insertMedication(t, repo, med)

	qty, err := repo.AdjustQuantity(ctx, med.ID, -5)
	require.NoError(t, err)
	assert.Equal(t, 25, qty)

	// A dose recorded against an almost-empty bottle clamps at zero
	// instead of going negative
	qty, err = repo.AdjustQuantity(ctx, med.ID, -100)
	require.NoError(t, err)
	assert.Equal(t, 0, qty)

	qty, err = repo.AdjustQuantity(ctx, med.ID, 30)
	require.NoError(t, err)
	assert.Equal(t, 30, qty)

	_, err = repo.AdjustQuantity(ctx, uuid.New().String(), -1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMedicationRepository_UpdateVersionGuard(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	logger := zap.NewNop()
	repo := NewMedicationRepository(pool, logger)

	med := newTestMedication(uuid.New().String())
	insertMedication(t, repo, med)

	stale := *med

	med.Name = "Lisinopril HCT"
	tx, err := repo.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Update(ctx, tx, med))
	require.NoError(t, tx.Commit(ctx))
	assert.Equal(t, 2, med.Version)

	// A second writer holding the old version must not clobber the first
	stale.Name = "Enalapril"
	tx, err = repo.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)
	err = repo.Update(ctx, tx, &stale)
	assert.ErrorIs(t, err, ErrVersionStale)

	found, err := repo.FindByID(ctx, med.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lisinopril HCT", found.Name)
	assert.Equal(t, 2, found.Version)
}

func TestMedicationRepository_SoftDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	logger := zap.NewNop()
	repo := NewMedicationRepository(pool, logger)

	patientID := uuid.New().String()
	med := newTestMedication(patientID)
	insertMedication(t, repo, med)

	tx, err := repo.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.SoftDelete(ctx, tx, med.ID))
	require.NoError(t, tx.Commit(ctx))

	_, err = repo.FindByID(ctx, med.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	meds, err := repo.FindByPatientID(ctx, patientID)
	require.NoError(t, err)
	assert.Empty(t, meds)

	// The row itself survives for event history
	var count int
	err = pool.QueryRow(ctx, `SELECT COUNT(*) FROM medications WHERE id = $1`, med.ID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Deleting twice reports not found, same as a bogus ID
	tx, err = repo.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)
	err = repo.SoftDelete(ctx, tx, med.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMedicationRepository_AlarmRegistrations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	logger := zap.NewNop()
	repo := NewMedicationRepository(pool, logger)

	med := newTestMedication(uuid.New().String())
	insertMedication(t, repo, med)

	first := []model.AlarmRegistration{
		{ID: uuid.New().String(), MedicationID: med.ID, Time: "08:00", Day: 1},
		{ID: uuid.New().String(), MedicationID: med.ID, Time: "20:00", Day: 1},
	}
	require.NoError(t, repo.ReplaceAlarmRegistrations(ctx, med.ID, first))

	regs, err := repo.ListAlarmRegistrations(ctx, med.ID)
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, "08:00", regs[0].Time)
	assert.Equal(t, "20:00", regs[1].Time)

	// A reschedule replaces the whole set, never appends to it
	second := []model.AlarmRegistration{
		{ID: uuid.New().String(), MedicationID: med.ID, Time: "09:00", Day: 3},
	}
	require.NoError(t, repo.ReplaceAlarmRegistrations(ctx, med.ID, second))

	regs, err = repo.ListAlarmRegistrations(ctx, med.ID)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, "09:00", regs[0].Time)
	assert.Equal(t, 3, regs[0].Day)
}

func TestEventRepository_OutboxLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	logger := zap.NewNop()
	medRepo := NewMedicationRepository(pool, logger)
	eventRepo := NewEventRepository(pool, logger)

	patientID := uuid.New().String()
	med := newTestMedication(patientID)
	insertMedication(t, medRepo, med)

	// Zero-padded IDs keep insertion order deterministic when events
	// share a transaction timestamp
	eventIDs := make([]string, 3)
	for i := range eventIDs {
		eventIDs[i] = fmt.Sprintf("event-%03d", i)
	}

	tx, err := medRepo.Begin(ctx)
	require.NoError(t, err)
	for i, id := range eventIDs {
		event := &model.MedicationEvent{
			ID:             id,
			MedicationID:   med.ID,
			PatientID:      patientID,
			ActorID:        patientID,
			ActorRole:      model.RolePatient,
			Type:           model.EventUpdated,
			MedicationName: med.Name,
			Changes: []model.FieldChange{
				{Field: "name", OldValue: fmt.Sprintf("v%d", i), NewValue: fmt.Sprintf("v%d", i+1)},
			},
		}
		require.NoError(t, eventRepo.Append(ctx, tx, event))
	}
	require.NoError(t, tx.Commit(ctx))

	pending, err := eventRepo.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	for i, event := range pending {
		assert.Equal(t, eventIDs[i], event.ID, "pending events are FIFO")
		assert.Equal(t, model.SyncPending, event.SyncStatus)
		assert.Equal(t, 0, event.Attempts)
		require.Len(t, event.Changes, 1)
		assert.Equal(t, "name", event.Changes[0].Field)
	}

	require.NoError(t, eventRepo.MarkDelivered(ctx, eventIDs[0]))

	pending, err = eventRepo.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, eventIDs[1], pending[0].ID)

	// MarkDelivered only applies to pending events
	err = eventRepo.MarkDelivered(ctx, eventIDs[0])
	assert.ErrorIs(t, err, ErrNotFound)

	// Two failed attempts at maxAttempts=2 park the event as failed
	require.NoError(t, eventRepo.RecordFailedAttempt(ctx, eventIDs[1], 2))

	pending, err = eventRepo.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, 1, pending[0].Attempts)

	require.NoError(t, eventRepo.RecordFailedAttempt(ctx, eventIDs[1], 2))

	pending, err = eventRepo.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, eventIDs[2], pending[0].ID)

	// Requeue returns the parked event to the queue with a fresh counter
	requeued, err := eventRepo.RequeueFailed(ctx, patientID)
	require.NoError(t, err)
	assert.Equal(t, 1, requeued)

	pending, err = eventRepo.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, eventIDs[1], pending[0].ID)
	assert.Equal(t, 0, pending[0].Attempts)

	feed, err := eventRepo.ListByPatient(ctx, patientID, 2)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, eventIDs[2], feed[0].ID, "patient feed is newest first")
}

func TestDeviceLinkRepository_RedeemSingleUse(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	logger := zap.NewNop()
	repo := NewDeviceLinkRepository(pool, logger)

	patientID := uuid.New().String()
	deviceID := uuid.New().String()
	caregiverID := uuid.New().String()

	code := &model.ConnectionCode{
		Code:      "ABCD2345",
		PatientID: patientID,
		DeviceID:  deviceID,
		ExpiresAt: time.Now().Add(15 * time.Minute),
	}
	require.NoError(t, repo.CreateCode(ctx, code))

	link := &model.DeviceLink{
		ID:       uuid.New().String(),
		UserID:   caregiverID,
		Role:     model.RoleCaregiver,
		LinkedBy: caregiverID,
	}
	require.NoError(t, repo.Redeem(ctx, code.Code, time.Now(), link))
	assert.Equal(t, patientID, link.PatientID, "redemption fills the patient from the code")
	assert.Equal(t, deviceID, link.DeviceID)
	assert.Equal(t, model.LinkActive, link.Status)

	// A second redemption of the same code fails, even by another user
	other := &model.DeviceLink{
		ID:       uuid.New().String(),
		UserID:   uuid.New().String(),
		Role:     model.RoleCaregiver,
		LinkedBy: uuid.New().String(),
	}
	err := repo.Redeem(ctx, code.Code, time.Now(), other)
	assert.ErrorIs(t, err, ErrCodeUsed)

	err = repo.Redeem(ctx, "ZZZZ9999", time.Now(), other)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeviceLinkRepository_RedeemExpired(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	logger := zap.NewNop()
	repo := NewDeviceLinkRepository(pool, logger)

	code := &model.ConnectionCode{
		Code:      "EXPD2345",
		PatientID: uuid.New().String(),
		DeviceID:  uuid.New().String(),
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, repo.CreateCode(ctx, code))

	link := &model.DeviceLink{
		ID:       uuid.New().String(),
		UserID:   uuid.New().String(),
		Role:     model.RoleCaregiver,
		LinkedBy: uuid.New().String(),
	}
	err := repo.Redeem(ctx, code.Code, time.Now(), link)
	assert.ErrorIs(t, err, ErrCodeExpired)

	// An expired code stays unused so the failure is diagnosable
	found, err := repo.FindCode(ctx, code.Code)
	require.NoError(t, err)
	assert.False(t, found.Used)
}

func TestDeviceLinkRepository_DuplicateActiveLink(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	logger := zap.NewNop()
	repo := NewDeviceLinkRepository(pool, logger)

	patientID := uuid.New().String()
	deviceID := uuid.New().String()
	caregiverID := uuid.New().String()

	issue := func(value string) {
		require.NoError(t, repo.CreateCode(ctx, &model.ConnectionCode{
			Code:      value,
			PatientID: patientID,
			DeviceID:  deviceID,
			ExpiresAt: time.Now().Add(15 * time.Minute),
		}))
	}

	issue("LINK2345")
	link := &model.DeviceLink{
		ID:       uuid.New().String(),
		UserID:   caregiverID,
		Role:     model.RoleCaregiver,
		LinkedBy: caregiverID,
	}
	require.NoError(t, repo.Redeem(ctx, "LINK2345", time.Now(), link))

	// The same caregiver redeeming a fresh code for the same device is
	// rejected while the first link is active
	issue("LINK6789")
	dup := &model.DeviceLink{
		ID:       uuid.New().String(),
		UserID:   caregiverID,
		Role:     model.RoleCaregiver,
		LinkedBy: caregiverID,
	}
	err := repo.Redeem(ctx, "LINK6789", time.Now(), dup)
	assert.ErrorIs(t, err, ErrLinkExists)

	// After revocation the fresh code goes through
	require.NoError(t, repo.RevokeLink(ctx, link.ID))
	require.NoError(t, repo.Redeem(ctx, "LINK6789", time.Now(), dup))
}

func TestDeviceLinkRepository_RevokeIsTerminal(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	logger := zap.NewNop()
	repo := NewDeviceLinkRepository(pool, logger)

	patientID := uuid.New().String()
	caregiverID := uuid.New().String()

	require.NoError(t, repo.CreateCode(ctx, &model.ConnectionCode{
		Code:      "TERM2345",
		PatientID: patientID,
		DeviceID:  uuid.New().String(),
		ExpiresAt: time.Now().Add(15 * time.Minute),
	}))

	link := &model.DeviceLink{
		ID:       uuid.New().String(),
		UserID:   caregiverID,
		Role:     model.RoleCaregiver,
		LinkedBy: caregiverID,
	}
	require.NoError(t, repo.Redeem(ctx, "TERM2345", time.Now(), link))

	require.NoError(t, repo.RevokeLink(ctx, link.ID))

	found, err := repo.FindLinkByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LinkRevoked, found.Status)
	assert.NotNil(t, found.RevokedAt)

	err = repo.RevokeLink(ctx, link.ID)
	assert.ErrorIs(t, err, ErrLinkRevoked)

	err = repo.RevokeLink(ctx, uuid.New().String())
	assert.ErrorIs(t, err, ErrNotFound)

	// Listings still include the revoked link for history
	byUser, err := repo.ListLinksByUser(ctx, caregiverID)
	require.NoError(t, err)
	assert.Len(t, byUser, 1)

	byPatient, err := repo.ListLinksByPatient(ctx, patientID)
	require.NoError(t, err)
	assert.Len(t, byPatient, 1)
}

func TestDeviceLinkRepository_DeviceOwnership(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	logger := zap.NewNop()
	repo := NewDeviceLinkRepository(pool, logger)

	patientID := uuid.New().String()
	deviceID := uuid.New().String()

	_, err := pool.Exec(ctx, `INSERT INTO devices (id, owner_id) VALUES ($1, $2)`, deviceID, patientID)
	require.NoError(t, err)

	owner, err := repo.DeviceOwner(ctx, deviceID)
	require.NoError(t, err)
	assert.Equal(t, patientID, owner)

	found, err := repo.DeviceForPatient(ctx, patientID)
	require.NoError(t, err)
	assert.Equal(t, deviceID, found)

	_, err = repo.DeviceOwner(ctx, uuid.New().String())
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = repo.DeviceForPatient(ctx, uuid.New().String())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestIntakeRepository_WindowQueries(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	logger := zap.NewNop()
	medRepo := NewMedicationRepository(pool, logger)
	intakeRepo := NewIntakeRepository(pool, logger)

	patientID := uuid.New().String()
	med := newTestMedication(patientID)
	insertMedication(t, medRepo, med)

	base := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(12 * time.Hour), base.Add(24 * time.Hour)}

	tx, err := medRepo.Begin(ctx)
	require.NoError(t, err)
	for i, takenAt := range times {
		rec := &model.IntakeRecord{
			ID:            uuid.New().String(),
			MedicationID:  med.ID,
			PatientID:     patientID,
			ActorID:       patientID,
			ScheduledTime: "08:00",
			Status:        model.IntakeTaken,
			TakenAt:       takenAt,
		}
		if i == 1 {
			rec.Status = model.IntakeMissed
		}
		require.NoError(t, intakeRepo.Create(ctx, tx, rec))
	}
	require.NoError(t, tx.Commit(ctx))

	// Window end is exclusive: the record at +24h falls outside
	records, err := intakeRepo.ListByPatient(ctx, patientID, base, base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].TakenAt.Before(records[1].TakenAt), "oldest first")
	assert.Equal(t, model.IntakeTaken, records[0].Status)
	assert.Equal(t, model.IntakeMissed, records[1].Status)

	records, err = intakeRepo.ListByMedication(ctx, med.ID, base, base.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Len(t, records, 3)

	records, err = intakeRepo.ListByPatient(ctx, uuid.New().String(), base, base.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, records)
}
