package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pildhora/backend/internal/audit"
	"github.com/pildhora/backend/internal/repository"
	"github.com/pildhora/backend/pkg/model"
	"go.uber.org/zap"
)

// Connection codes are short enough to read off a dispenser screen.
const (
	codeLength = 8
	codeTTL    = 15 * time.Minute

	// No ambiguous characters (0/O, 1/I/L).
	codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
)

// ErrNotAuthorized signals the actor may not perform the link operation
var ErrNotAuthorized = errors.New("not authorized for this device link operation")

// DeviceLinkService manages caregiver access to patient dispensers
// through one-time connection codes.
type DeviceLinkService struct {
	linkRepo *repository.DeviceLinkRepository
	auditor  *audit.Logger
	logger   *zap.Logger
}

// NewDeviceLinkService creates a new DeviceLinkService
func NewDeviceLinkService(
	linkRepo *repository.DeviceLinkRepository,
	auditor *audit.Logger,
	logger *zap.Logger,
) *DeviceLinkService {
	return &DeviceLinkService{
		linkRepo: linkRepo,
		auditor:  auditor,
		logger:   logger,
	}
}

// IssueCode creates a short-lived single-use connection code for a
// device. Only the device's owning patient may issue codes for it.
func (s *DeviceLinkService) IssueCode(ctx context.Context, actorID, deviceID string) (*model.ConnectionCode, error) {
	ownerID, err := s.linkRepo.DeviceOwner(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if ownerID != actorID {
		return nil, ErrNotAuthorized
	}

	value, err := generateCode(codeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate connection code: %w", err)
	}

	code := &model.ConnectionCode{
		Code:      value,
		PatientID: ownerID,
		DeviceID:  deviceID,
		ExpiresAt: time.Now().Add(codeTTL),
	}

	if err := s.linkRepo.CreateCode(ctx, code); err != nil {
		return nil, err
	}

	s.logger.Info("connection code issued",
		zap.String("device_id", deviceID),
		zap.String("patient_id", ownerID),
		zap.Time("expires_at", code.ExpiresAt),
	)

	return code, nil
}

// Redeem consumes a connection code and links the actor to the
// patient's dispenser. A second redemption of the same code fails.
func (s *DeviceLinkService) Redeem(ctx context.Context, actorID string, actorRole model.Role, codeValue, ipAddress, userAgent string) (*model.DeviceLink, error) {
	if codeValue == "" {
		return nil, fmt.Errorf("connection code is required")
	}

	code, err := s.linkRepo.FindCode(ctx, codeValue)
	if err != nil {
		return nil, err
	}

	// Patients may only redeem codes for their own device; caregivers
	// may redeem any code handed to them.
	if actorRole == model.RolePatient && code.PatientID != actorID {
		return nil, ErrNotAuthorized
	}

	link := &model.DeviceLink{
		ID:       uuid.New().String(),
		UserID:   actorID,
		Role:     actorRole,
		LinkedBy: actorID,
	}

	if err := s.linkRepo.Redeem(ctx, codeValue, time.Now(), link); err != nil {
		return nil, err
	}

	if err := s.auditor.LogLink(ctx, actorID, link.ID, codeValue, ipAddress, userAgent); err != nil {
		s.logger.Warn("failed to audit device link", zap.Error(err), zap.String("link_id", link.ID))
	}

	s.logger.Info("device link created",
		zap.String("link_id", link.ID),
		zap.String("device_id", link.DeviceID),
		zap.String("user_id", actorID),
	)

	return link, nil
}

// Revoke terminates a device link. Only the linked caregiver or the
// observed patient may revoke it.
func (s *DeviceLinkService) Revoke(ctx context.Context, actorID, linkID, ipAddress, userAgent string) error {
	link, err := s.linkRepo.FindLinkByID(ctx, linkID)
	if err != nil {
		return err
	}

	if actorID != link.UserID && actorID != link.PatientID {
		return ErrNotAuthorized
	}

	if err := s.linkRepo.RevokeLink(ctx, linkID); err != nil {
		return err
	}

	if err := s.auditor.LogRevoke(ctx, actorID, linkID, ipAddress, userAgent); err != nil {
		s.logger.Warn("failed to audit link revocation", zap.Error(err), zap.String("link_id", linkID))
	}

	s.logger.Info("device link revoked",
		zap.String("link_id", linkID),
		zap.String("revoked_by", actorID),
	)

	return nil
}

// List returns the links visible to an actor: links they hold plus
// links observing them.
func (s *DeviceLinkService) List(ctx context.Context, actorID string, actorRole model.Role) ([]model.DeviceLink, error) {
	if actorRole == model.RolePatient {
		return s.linkRepo.ListLinksByPatient(ctx, actorID)
	}
	return s.linkRepo.ListLinksByUser(ctx, actorID)
}

// CanObservePatient reports whether an actor may read a patient's
// medications, events, and device state. Patients always see their own
// data; caregivers need an active link.
func (s *DeviceLinkService) CanObservePatient(ctx context.Context, actorID, patientID string) (bool, error) {
	if actorID == patientID {
		return true, nil
	}

	links, err := s.linkRepo.ListLinksByUser(ctx, actorID)
	if err != nil {
		return false, err
	}

	for _, link := range links {
		if link.PatientID == patientID && link.Status == model.LinkActive {
			return true, nil
		}
	}

	return false, nil
}

// CanAccessDevice reports whether an actor may read a device's state or
// send it commands: either the owning patient or a holder of an active
// link to that patient.
func (s *DeviceLinkService) CanAccessDevice(ctx context.Context, actorID, deviceID string) (bool, error) {
	ownerID, err := s.linkRepo.DeviceOwner(ctx, deviceID)
	if err != nil {
		return false, err
	}

	return s.CanObservePatient(ctx, actorID, ownerID)
}

func generateCode(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}

	return string(buf), nil
}
