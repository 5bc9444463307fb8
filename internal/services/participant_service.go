package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"sms-gateway-dashboard/internal/db"
	"sms-gateway-dashboard/internal/models"
	"sms-gateway-dashboard/internal/phone"
	"sms-gateway-dashboard/pkg/logger"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

var (
	// ErrEmptySpreadsheet is returned when the first sheet has no data rows
	ErrEmptySpreadsheet = errors.New("the spreadsheet is empty")

	// ErrInvalidSpreadsheet is returned when the upload is not a workbook
	ErrInvalidSpreadsheet = errors.New("invalid spreadsheet, use .xlsx")

	// ErrInvalidParticipant is returned when a manual entry lacks a name or phone
	ErrInvalidParticipant = errors.New("first name and phone are required")
)

// Spreadsheet headers accepted for each participant field, first match wins
var (
	firstNameHeaders = []string{"Prenom", "prenom", "Prénom", "FirstName"}
	lastNameHeaders  = []string{"NomDeFamille", "Nom de Famille", "LastName"}
	phoneHeaders     = []string{"NumeroTel", "Numéro Tel", "Numero Tel", "Phone"}
	parkHeaders      = []string{"Park", "parc", "Parc"}
	typeHeaders      = []string{"Type", "type"}
	coachHeaders     = []string{"Coach", "coach"}
	dateHeaders      = []string{"Date Inscription", "DateInscription"}
)

var exportHeader = []string{"Prenom", "NomDeFamille", "NumeroTel", "Park", "Type", "Coach", "DateInscription"}

// ParticipantService manages the participant list
type ParticipantService struct {
	participants db.ParticipantRepository
	sent         db.SentRepository
}

// NewParticipantService creates a new ParticipantService
func NewParticipantService(participants db.ParticipantRepository, sent db.SentRepository) *ParticipantService {
	return &ParticipantService{participants: participants, sent: sent}
}

// List returns every participant with unread counts and display phones
func (s *ParticipantService) List(ctx context.Context) ([]*models.Participant, error) {
	list, err := s.participants.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range list {
		p.Phone = phone.Display(p.Phone)
	}
	return list, nil
}

// Create stores a manually entered participant
func (s *ParticipantService) Create(ctx context.Context, req models.CreateParticipantRequest) (*models.Participant, error) {
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.Phone) == "" {
		return nil, ErrInvalidParticipant
	}
	p := models.NewParticipant(req, phone.ForStorage(req.Phone))
	if err := s.participants.Create(ctx, p); err != nil {
		return nil, err
	}
	logger.Info("Participant created",
		zap.Int64("participant_id", p.ID),
		zap.String("name", p.FullName()),
	)
	return p, nil
}

// History returns what was sent to a participant, newest first
func (s *ParticipantService) History(ctx context.Context, id int64) ([]*models.SentMessage, error) {
	return s.sent.ListByParticipant(ctx, id)
}

// ImportExcel reads the first sheet of a workbook and upserts one participant
// per row, keyed on the formatted phone. Row failures are collected and the
// import carries on.
func (s *ParticipantService) ImportExcel(ctx context.Context, r io.Reader) (*models.ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpreadsheet, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptySpreadsheet
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, ErrEmptySpreadsheet
	}

	header := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		name = strings.TrimSpace(name)
		if _, dup := header[name]; name != "" && !dup {
			header[name] = i
		}
	}
	cell := func(row []string, names []string) string {
		for _, name := range names {
			i, ok := header[name]
			if !ok || i >= len(row) {
				continue
			}
			if v := strings.TrimSpace(row[i]); v != "" {
				return v
			}
		}
		return ""
	}

	result := &models.ImportResult{Success: true}
	for n, row := range rows[1:] {
		if blank(row) {
			continue
		}
		line := n + 2
		req := models.CreateParticipantRequest{
			FirstName:        cell(row, firstNameHeaders),
			LastName:         cell(row, lastNameHeaders),
			Phone:            cell(row, phoneHeaders),
			Park:             cell(row, parkHeaders),
			TrainingType:     cell(row, typeHeaders),
			Coach:            cell(row, coachHeaders),
			RegistrationDate: cell(row, dateHeaders),
		}
		if req.Phone == "" {
			result.ErrorCount++
			result.Errors = append(result.Errors,
				fmt.Sprintf("row %d (%s %s): missing phone number", line, req.FirstName, req.LastName))
			continue
		}

		p := models.NewParticipant(req, phone.ForStorage(req.Phone))
		if _, err := s.participants.Upsert(ctx, p); err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d (%s): %v", line, req.FirstName, err))
			continue
		}
		result.SuccessCount++
	}

	result.Message = fmt.Sprintf("Import finished: %d participant(s) imported", result.SuccessCount)
	if result.ErrorCount > 0 {
		result.Message += fmt.Sprintf(", %d error(s)", result.ErrorCount)
	}
	logger.Info("Excel import completed",
		zap.Int("success_count", result.SuccessCount),
		zap.Int("error_count", result.ErrorCount),
	)
	return result, nil
}

// ExportExcel writes the participant list as a workbook the import accepts
func (s *ParticipantService) ExportExcel(ctx context.Context) ([]byte, error) {
	list, err := s.participants.List(ctx)
	if err != nil {
		return nil, err
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := "Participants"
	xl.SetSheetName(xl.GetSheetName(0), sheet)
	header := exportHeader
	if err := xl.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for i, p := range list {
		record := []string{p.FirstName, p.LastName, p.Phone, p.Park, p.TrainingType, p.Coach, p.RegistrationDate}
		ref, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := xl.SetSheetRow(sheet, ref, &record); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
