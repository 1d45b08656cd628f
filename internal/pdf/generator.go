package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/pildhora/backend/internal/inventory"
	"github.com/pildhora/backend/internal/schedule"
	"github.com/pildhora/backend/pkg/model"
	"go.uber.org/zap"
)

// Generator renders adherence reports for caregivers and physicians
type Generator struct {
	logger *zap.Logger
}

// NewGenerator creates a new report Generator
func NewGenerator(logger *zap.Logger) *Generator {
	return &Generator{
		logger: logger,
	}
}

// MedicationAdherence summarizes one medication over the report range
type MedicationAdherence struct {
	Medication    model.Medication
	TakenCount    int
	MissedCount   int
	AdherenceRate float64
}

// ReportData contains all data needed for report generation
type ReportData struct {
	PatientName string
	DateRange   string
	Medications []MedicationAdherence
	Events      []model.MedicationEvent
}

// Generate creates a PDF report from the provided data
func (g *Generator) Generate(data *ReportData) ([]byte, error) {
	g.logger.Info("generating adherence report",
		zap.String("patient_name", data.PatientName),
		zap.String("date_range", data.DateRange),
	)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	g.addTitle(pdf, data.PatientName, data.DateRange)
	g.addMedicationList(pdf, data.Medications)
	g.addAdherenceSummary(pdf, data.Medications)
	g.addEventTimeline(pdf, data.Events)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		g.logger.Error("failed to generate PDF", zap.Error(err))
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	g.logger.Info("adherence report generated",
		zap.Int("size_bytes", buf.Len()),
	)

	return buf.Bytes(), nil
}

func (g *Generator) addTitle(pdf *gofpdf.Fpdf, patientName, dateRange string) {
	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(0, 10, "Medication Adherence Report")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Patient: %s", patientName))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Period: %s", dateRange))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Generated: %s", time.Now().Format("2006-01-02 15:04")))
	pdf.Ln(12)
}

func (g *Generator) addMedicationList(pdf *gofpdf.Fpdf, meds []MedicationAdherence) {
	g.addSectionHeader(pdf, "Current Medications")

	if len(meds) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.Cell(0, 6, "No medications recorded in this period.")
		pdf.Ln(10)
		return
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(55, 7, "Name", "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 7, "Dose", "1", 0, "L", false, 0, "")
	pdf.CellFormat(45, 7, "Frequency", "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 7, "Stock", "1", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	for _, ma := range meds {
		med := ma.Medication
		dose := med.DoseValue
		if dose != "" && med.DoseUnit != "" {
			dose += " " + med.DoseUnit
		}
		if dose == "" {
			dose = med.Dosage
		}

		stock := "not tracked"
		if med.TrackInventory {
			status := inventory.StatusFor(med.CurrentQuantity, med.LowQuantityThreshold)
			stock = fmt.Sprintf("%d (%s)", med.CurrentQuantity, status)
		}

		pdf.CellFormat(55, 7, med.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, dose, "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 7, schedule.DaysToFrequency(med.Days), "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 7, stock, "1", 1, "L", false, 0, "")
	}
	pdf.Ln(8)
}

func (g *Generator) addAdherenceSummary(pdf *gofpdf.Fpdf, meds []MedicationAdherence) {
	g.addSectionHeader(pdf, "Adherence Summary")

	if len(meds) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.Cell(0, 6, "No intake data recorded in this period.")
		pdf.Ln(10)
		return
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(70, 7, "Medication", "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 7, "Taken", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 7, "Missed", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 7, "Adherence", "1", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	for _, ma := range meds {
		pdf.CellFormat(70, 7, ma.Medication.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%d", ma.TakenCount), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%d", ma.MissedCount), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 7, fmt.Sprintf("%.0f%%", ma.AdherenceRate*100), "1", 1, "C", false, 0, "")
	}
	pdf.Ln(8)
}

func (g *Generator) addEventTimeline(pdf *gofpdf.Fpdf, events []model.MedicationEvent) {
	g.addSectionHeader(pdf, "Recent Activity")

	if len(events) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.Cell(0, 6, "No activity in this period.")
		pdf.Ln(10)
		return
	}

	pdf.SetFont("Arial", "", 9)
	for _, event := range events {
		line := fmt.Sprintf("%s  %s  %s (%s)",
			event.CreatedAt.Format("2006-01-02 15:04"),
			event.Type,
			event.MedicationName,
			event.ActorRole,
		)
		pdf.Cell(0, 5, line)
		pdf.Ln(5)
	}
	pdf.Ln(5)
}

func (g *Generator) addSectionHeader(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Arial", "B", 13)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(0, 9, title, "", 1, "L", true, 0, "")
	pdf.Ln(3)
}
