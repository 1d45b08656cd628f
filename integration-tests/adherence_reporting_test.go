package integration_tests

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime/types"
	"github.com/pildhora/backend/pkg/api"
	"github.com/pildhora/backend/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdherenceReportingFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	env := newTestServer(t, pool)

	patientUUID := uuid.New()
	patientID := patientUUID.String()

	w := env.doJSON(t, http.MethodPost, "/api/v1/medications", patientID, model.RolePatient, api.CreateMedicationRequest{
		PatientId: patientUUID,
		Name:      "Metformin",
		Times:     []string{"08:00", "12:00", "18:00", "20:00"},
		Days:      []int{0, 1, 2, 3, 4, 5, 6},
	})
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())

	var med api.MedicationResponse
	parseJSON(t, w, &med)
	medicationID := med.Id.String()

	recordIntake := func(t *testing.T, scheduledTime, status string) {
		w := env.doJSON(t, http.MethodPost, "/api/v1/medications/"+medicationID+"/intakes", patientID, model.RolePatient, api.RecordIntakeRequest{
			ScheduledTime: scheduledTime,
			Status:        status,
		})
		require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())
	}

	recordIntake(t, "08:00", "taken")
	recordIntake(t, "08:00", "taken") // double tap on the same dose
	recordIntake(t, "12:00", "taken")
	recordIntake(t, "18:00", "taken")
	recordIntake(t, "20:00", "missed")

	window := url.Values{}
	window.Set("from", time.Now().Add(-time.Hour).Format(time.RFC3339))
	window.Set("to", time.Now().Add(time.Hour).Format(time.RFC3339))

	t.Run("summary counts each dose once", func(t *testing.T) {
		w := env.doJSON(t, http.MethodGet, "/api/v1/patients/"+patientID+"/adherence?"+window.Encode(), patientID, model.RolePatient, nil)
		require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())

		var summary api.AdherenceSummaryResponse
		parseJSON(t, w, &summary)
		assert.Equal(t, 3, *summary.TakenCount)
		assert.Equal(t, 1, *summary.MissedCount)
		assert.InDelta(t, 0.75, *summary.Rate, 1e-9)

		require.Len(t, summary.Medications, 1)
		assert.Equal(t, "Metformin", *summary.Medications[0].MedicationName)
		assert.InDelta(t, 0.75, *summary.Medications[0].AdherenceRate, 1e-9)
	})

	t.Run("history is deduplicated", func(t *testing.T) {
		w := env.doJSON(t, http.MethodGet, "/api/v1/patients/"+patientID+"/intakes?"+window.Encode(), patientID, model.RolePatient, nil)
		require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())

		var records []api.IntakeResponse
		parseJSON(t, w, &records)
		require.Len(t, records, 4)

		perTime := make(map[string]int)
		for _, rec := range records {
			perTime[*rec.ScheduledTime]++
		}
		assert.Equal(t, 1, perTime["08:00"], "repeated confirmations collapse to one dose")
	})

	var reportID string
	var filePath string

	t.Run("generate uploads the PDF and records metadata", func(t *testing.T) {
		start := types.Date{Time: time.Now().AddDate(0, 0, -7)}
		end := types.Date{Time: time.Now().AddDate(0, 0, 1)}

		w := env.doJSON(t, http.MethodPost, "/api/v1/reports", patientID, model.RolePatient, api.GenerateReportRequest{
			PatientId:   patientUUID,
			PatientName: stringPtr("Maria Garcia"),
			StartDate:   start,
			EndDate:     &end,
		})
		require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())

		var report api.ReportResponse
		parseJSON(t, w, &report)
		require.NotNil(t, report.Id)
		reportID = report.Id.String()
		require.NotNil(t, report.FilePath)
		filePath = *report.FilePath

		assert.True(t, strings.HasPrefix(filePath, "reports/"))
		assert.True(t, env.blobStore.Stored(filePath), "the PDF lands in blob storage")
	})

	t.Run("download streams the stored PDF", func(t *testing.T) {
		w := env.doJSON(t, http.MethodGet, "/api/v1/reports/"+reportID, patientID, model.RolePatient, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))
	})

	t.Run("unknown report is a 404", func(t *testing.T) {
		w := env.doJSON(t, http.MethodGet, "/api/v1/reports/"+uuid.New().String(), patientID, model.RolePatient, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("strangers cannot request a report", func(t *testing.T) {
		strangerID := uuid.New().String()
		w := env.doJSON(t, http.MethodPost, "/api/v1/reports", strangerID, model.RoleCaregiver, api.GenerateReportRequest{
			PatientId: patientUUID,
			StartDate: types.Date{Time: time.Now().AddDate(0, 0, -7)},
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
