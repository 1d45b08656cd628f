package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pildhora/backend/pkg/model"
	"go.uber.org/zap"
)

// DeviceLinkRepository manages device links and the one-time connection
// codes that create them
type DeviceLinkRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewDeviceLinkRepository creates a new DeviceLinkRepository
func NewDeviceLinkRepository(db *pgxpool.Pool, logger *zap.Logger) *DeviceLinkRepository {
	return &DeviceLinkRepository{
		db:     db,
		logger: logger,
	}
}

// CreateCode stores a new unused connection code
func (r *DeviceLinkRepository) CreateCode(ctx context.Context, code *model.ConnectionCode) error {
	query := `
		INSERT INTO connection_codes (code, patient_id, device_id, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, FALSE, NOW())
	`

	_, err := r.db.Exec(ctx, query, code.Code, code.PatientID, code.DeviceID, code.ExpiresAt)
	if err != nil {
		r.logger.Error("failed to create connection code",
			zap.Error(err),
			zap.String("patient_id", code.PatientID),
			zap.String("device_id", code.DeviceID),
		)
		return fmt.Errorf("failed to create connection code: %w", err)
	}

	return nil
}

// Redeem consumes a connection code and creates the resulting device
// link in one transaction. The code row is locked so two caregivers
// redeeming simultaneously cannot both succeed. The link's PatientID
// and DeviceID are filled from the code.
func (r *DeviceLinkRepository) Redeem(ctx context.Context, codeValue string, now time.Time, link *model.DeviceLink) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin redemption: %w", err)
	}
	defer tx.Rollback(ctx)

	var code model.ConnectionCode
	err = tx.QueryRow(ctx,
		`SELECT code, patient_id, device_id, expires_at, used, used_by, created_at
		 FROM connection_codes WHERE code = $1 FOR UPDATE`,
		codeValue,
	).Scan(&code.Code, &code.PatientID, &code.DeviceID, &code.ExpiresAt, &code.Used, &code.UsedBy, &code.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("connection code: %w", ErrNotFound)
		}
		return fmt.Errorf("failed to load connection code: %w", err)
	}

	if code.Used {
		return ErrCodeUsed
	}
	if now.After(code.ExpiresAt) {
		return ErrCodeExpired
	}

	var existing int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM device_links WHERE user_id = $1 AND device_id = $2 AND status = $3`,
		link.UserID, code.DeviceID, model.LinkActive,
	).Scan(&existing)
	if err != nil {
		return fmt.Errorf("failed to check existing links: %w", err)
	}
	if existing > 0 {
		return ErrLinkExists
	}

	_, err = tx.Exec(ctx,
		`UPDATE connection_codes SET used = TRUE, used_by = $1 WHERE code = $2`,
		link.UserID, codeValue,
	)
	if err != nil {
		return fmt.Errorf("failed to consume connection code: %w", err)
	}

	link.PatientID = code.PatientID
	link.DeviceID = code.DeviceID
	link.Status = model.LinkActive

	_, err = tx.Exec(ctx,
		`INSERT INTO device_links (id, user_id, patient_id, device_id, role, status, linked_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
		link.ID, link.UserID, link.PatientID, link.DeviceID, link.Role, link.Status, link.LinkedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to create device link: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit redemption: %w", err)
	}

	return nil
}

// FindLinkByID retrieves a device link
func (r *DeviceLinkRepository) FindLinkByID(ctx context.Context, linkID string) (*model.DeviceLink, error) {
	var link model.DeviceLink
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, patient_id, device_id, role, status, linked_by, created_at, revoked_at
		 FROM device_links WHERE id = $1`,
		linkID,
	).Scan(&link.ID, &link.UserID, &link.PatientID, &link.DeviceID, &link.Role, &link.Status, &link.LinkedBy, &link.CreatedAt, &link.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("device link %s: %w", linkID, ErrNotFound)
		}
		r.logger.Error("failed to find device link", zap.Error(err), zap.String("link_id", linkID))
		return nil, fmt.Errorf("failed to find device link: %w", err)
	}

	return &link, nil
}

// ListLinksByUser returns all links held by a caregiver account
func (r *DeviceLinkRepository) ListLinksByUser(ctx context.Context, userID string) ([]model.DeviceLink, error) {
	return r.listLinks(ctx, `user_id = $1`, userID)
}

// ListLinksByPatient returns all links observing a patient
func (r *DeviceLinkRepository) ListLinksByPatient(ctx context.Context, patientID string) ([]model.DeviceLink, error) {
	return r.listLinks(ctx, `patient_id = $1`, patientID)
}

func (r *DeviceLinkRepository) listLinks(ctx context.Context, where string, arg any) ([]model.DeviceLink, error) {
	query := `SELECT id, user_id, patient_id, device_id, role, status, linked_by, created_at, revoked_at
		FROM device_links WHERE ` + where + ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		r.logger.Error("failed to list device links", zap.Error(err))
		return nil, fmt.Errorf("failed to list device links: %w", err)
	}
	defer rows.Close()

	var links []model.DeviceLink
	for rows.Next() {
		var link model.DeviceLink
		err := rows.Scan(&link.ID, &link.UserID, &link.PatientID, &link.DeviceID, &link.Role, &link.Status, &link.LinkedBy, &link.CreatedAt, &link.RevokedAt)
		if err != nil {
			r.logger.Error("failed to scan device link", zap.Error(err))
			continue
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating device links: %w", err)
	}

	return links, nil
}

// RevokeLink marks an active link revoked. Revocation is terminal.
func (r *DeviceLinkRepository) RevokeLink(ctx context.Context, linkID string) error {
	result, err := r.db.Exec(ctx,
		`UPDATE device_links SET status = $1, revoked_at = NOW() WHERE id = $2 AND status = $3`,
		model.LinkRevoked, linkID, model.LinkActive,
	)
	if err != nil {
		r.logger.Error("failed to revoke device link", zap.Error(err), zap.String("link_id", linkID))
		return fmt.Errorf("failed to revoke device link: %w", err)
	}

	if result.RowsAffected() == 0 {
		if _, findErr := r.FindLinkByID(ctx, linkID); errors.Is(findErr, ErrNotFound) {
			return fmt.Errorf("device link %s: %w", linkID, ErrNotFound)
		}
		return ErrLinkRevoked
	}

	return nil
}

// DeviceOwner returns the patient account owning a device, resolved
// from the devices table.
func (r *DeviceLinkRepository) DeviceOwner(ctx context.Context, deviceID string) (string, error) {
	var ownerID string
	err := r.db.QueryRow(ctx, `SELECT owner_id FROM devices WHERE id = $1`, deviceID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("device %s: %w", deviceID, ErrNotFound)
		}
		return "", fmt.Errorf("failed to resolve device owner: %w", err)
	}

	return ownerID, nil
}

// DeviceForPatient returns the dispenser registered to a patient, or
// ErrNotFound when the patient has no device.
func (r *DeviceLinkRepository) DeviceForPatient(ctx context.Context, patientID string) (string, error) {
	var deviceID string
	err := r.db.QueryRow(ctx, `SELECT id FROM devices WHERE owner_id = $1 ORDER BY created_at LIMIT 1`, patientID).Scan(&deviceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("patient %s device: %w", patientID, ErrNotFound)
		}
		return "", fmt.Errorf("failed to resolve patient device: %w", err)
	}

	return deviceID, nil
}

// FindCode loads a connection code without consuming it, for
// authorization checks ahead of redemption.
func (r *DeviceLinkRepository) FindCode(ctx context.Context, codeValue string) (*model.ConnectionCode, error) {
	var code model.ConnectionCode
	err := r.db.QueryRow(ctx,
		`SELECT code, patient_id, device_id, expires_at, used, used_by, created_at
		 FROM connection_codes WHERE code = $1`,
		codeValue,
	).Scan(&code.Code, &code.PatientID, &code.DeviceID, &code.ExpiresAt, &code.Used, &code.UsedBy, &code.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("connection code: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find connection code: %w", err)
	}

	return &code, nil
}
