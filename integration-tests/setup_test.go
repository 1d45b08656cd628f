package integration_tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pildhora/backend/internal/audit"
	"github.com/pildhora/backend/internal/config"
	"github.com/pildhora/backend/internal/handler"
	"github.com/pildhora/backend/internal/pdf"
	"github.com/pildhora/backend/internal/repository"
	"github.com/pildhora/backend/internal/service"
	"github.com/pildhora/backend/pkg/model"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// setupTestDatabase creates a PostgreSQL testcontainer and returns the
// connection pool
func setupTestDatabase(t *testing.T) (*pgxpool.Pool, func()) {
	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("pildhora_flows"),
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

// runMigrations creates the tables the flows depend on
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
		`CREATE TABLE IF NOT EXISTS reports (
			id VARCHAR(255) PRIMARY KEY,
			patient_id VARCHAR(255) NOT NULL,
			date_range_start TIMESTAMP NOT NULL,
			date_range_end TIMESTAMP NOT NULL,
			file_path VARCHAR(512) NOT NULL,
			generated_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id SERIAL PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			operation_type VARCHAR(50) NOT NULL,
			resource_type VARCHAR(50) NOT NULL,
			resource_id VARCHAR(255) NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			ip_address VARCHAR(64),
			user_agent VARCHAR(512),
			additional_data JSONB
		)`,
	}

	for _, migration := range migrations {
		_, err := pool.Exec(ctx, migration)
		require.NoError(t, err)
	}
}

// stubDispenser stands in for the Redis-backed registry so alarm
// registration works without a live dispenser
type stubDispenser struct {
	mu         sync.Mutex
	registered map[string]model.AlarmConfig
	topologies int
}

func newStubDispenser() *stubDispenser {
	return &stubDispenser{registered: make(map[string]model.AlarmConfig)}
}

func (s *stubDispenser) RegisterAlarm(_ context.Context, _ string, cfg model.AlarmConfig) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New().String()
	s.registered[id] = cfg
	return id, nil
}

func (s *stubDispenser) CancelAlarm(_ context.Context, _ string, registrationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.registered, registrationID)
	return nil
}

func (s *stubDispenser) PushTopology(_ context.Context, _ string, _ string, _ []model.AlarmConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topologies++
	return nil
}

// recordingPublisher captures delivered events instead of pushing them
// to a caregiver feed
type recordingPublisher struct {
	mu     sync.Mutex
	events []model.MedicationEvent
}

func (p *recordingPublisher) PublishEvent(_ context.Context, event *model.MedicationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *event)
	return nil
}

func (p *recordingPublisher) delivered() []model.MedicationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.MedicationEvent, len(p.events))
	copy(out, p.events)
	return out
}

// testEnv bundles the wired application for one flow test
type testEnv struct {
	router    *gin.Engine
	pool      *pgxpool.Pool
	sync      *service.SyncService
	publisher *recordingPublisher
	blobStore *MockBlobStorageClient
	dispenser *stubDispenser
}

// newTestServer wires the real repositories, services, and handlers
// over the test database, with the dispenser and blob storage stubbed
func newTestServer(t *testing.T, pool *pgxpool.Pool) *testEnv {
	logger := zap.NewNop()

	medicationRepo := repository.NewMedicationRepository(pool, logger)
	eventRepo := repository.NewEventRepository(pool, logger)
	intakeRepo := repository.NewIntakeRepository(pool, logger)
	linkRepo := repository.NewDeviceLinkRepository(pool, logger)
	reportRepo := repository.NewReportRepository(pool, logger)
	auditLogger := audit.NewLogger(pool, logger)

	dispenser := newStubDispenser()
	publisher := &recordingPublisher{}
	blobStore := NewMockBlobStorageClient(logger)

	alarmService := service.NewAlarmService(medicationRepo, linkRepo, dispenser, logger)
	medicationService := service.NewMedicationService(medicationRepo, eventRepo, intakeRepo, alarmService, logger)
	inventoryService := service.NewInventoryService(medicationRepo, logger)
	adherenceService := service.NewAdherenceService(intakeRepo, medicationRepo, logger)
	linkService := service.NewDeviceLinkService(linkRepo, auditLogger, logger)
	syncService := service.NewSyncService(eventRepo, publisher, config.SyncConfig{
		Interval:    time.Second,
		BatchSize:   50,
		MaxAttempts: 10,
		BackoffBase: 2 * time.Second,
		BackoffCap:  60 * time.Second,
	}, logger)
	reportService := service.NewReportService(
		reportRepo,
		eventRepo,
		medicationRepo,
		adherenceService,
		pdf.NewGenerator(logger),
		blobStore,
		logger,
	)

	medicationHandler := handler.NewMedicationHandler(medicationService, inventoryService, linkService, logger)
	eventHandler := handler.NewEventHandler(syncService, adherenceService, linkService, logger)
	linkHandler := handler.NewDeviceLinkHandler(linkService, logger)
	reportHandler := handler.NewReportHandler(reportService, linkService, logger)

	gin.SetMode(gin.TestMode)
	r := gin.New()

	// Requests carry the acting user in headers; token verification has
	// its own middleware tests
	r.Use(func(c *gin.Context) {
		c.Set("user_id", c.GetHeader("X-Actor-ID"))
		c.Set("user_role", c.GetHeader("X-Actor-Role"))
		c.Next()
	})

	v1 := r.Group("/api/v1")
	{
		v1.POST("/medications", medicationHandler.CreateMedication)
		v1.GET("/medications/:id", medicationHandler.GetMedication)
		v1.PUT("/medications/:id", medicationHandler.UpdateMedication)
		v1.DELETE("/medications/:id", medicationHandler.DeleteMedication)
		v1.POST("/medications/:id/intakes", medicationHandler.RecordIntake)
		v1.POST("/medications/:id/refill", medicationHandler.Refill)
		v1.GET("/medications/:id/inventory", medicationHandler.GetInventory)

		v1.GET("/patients/:patientId/medications", medicationHandler.ListMedications)
		v1.GET("/patients/:patientId/inventory/low", medicationHandler.ListLowStock)
		v1.GET("/patients/:patientId/events", eventHandler.ListEvents)
		v1.POST("/patients/:patientId/events/requeue", eventHandler.RequeueEvents)
		v1.GET("/patients/:patientId/adherence", eventHandler.GetAdherence)
		v1.GET("/patients/:patientId/intakes", eventHandler.ListIntakes)

		v1.POST("/devices/codes", linkHandler.IssueCode)
		v1.POST("/devices/links", linkHandler.RedeemCode)
		v1.GET("/devices/links", linkHandler.ListLinks)
		v1.DELETE("/devices/links/:id", linkHandler.RevokeLink)

		v1.POST("/reports", reportHandler.GenerateReport)
		v1.GET("/reports/:id", reportHandler.GetReport)
	}

	return &testEnv{
		router:    r,
		pool:      pool,
		sync:      syncService,
		publisher: publisher,
		blobStore: blobStore,
		dispenser: dispenser,
	}
}

// doJSON performs one request as the given actor and returns the recorder
func (env *testEnv) doJSON(t *testing.T, method, path, actorID string, role model.Role, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-ID", actorID)
	req.Header.Set("X-Actor-Role", string(role))

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

// parseJSON decodes a response body into out
func parseJSON(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), "body: %s", w.Body.String())
}

// insertDevice registers a dispenser owned by a patient
func insertDevice(t *testing.T, pool *pgxpool.Pool, deviceID, ownerID string) {
	_, err := pool.Exec(context.Background(),
		`INSERT INTO devices (id, owner_id) VALUES ($1, $2)`, deviceID, ownerID)
	require.NoError(t, err)
}

func stringPtr(s string) *string {
	return &s
}

func boolPtr(b bool) *bool {
	return &b
}

func intPtr(i int) *int {
	return &i
}
