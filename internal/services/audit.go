package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/campuslink/internal/logging"
	"github.com/HammerMeetNail/campuslink/internal/models"
)

type AuditLogger interface {
	LogAction(ctx context.Context, actorID uuid.UUID, action, targetType string, targetID *uuid.UUID, details map[string]any) error
}

type AuditService struct {
	db DBConn
}

func NewAuditService(db DBConn) *AuditService {
	return &AuditService{db: db}
}

func (s *AuditService) LogAction(ctx context.Context, actorID uuid.UUID, action, targetType string, targetID *uuid.UUID, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encoding audit details: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO audit_logs (actor_id, action, target_type, target_id, details)
		 VALUES ($1, $2, $3, $4, $5)`,
		actorID, action, targetType, targetID, payload,
	)
	if err != nil {
		return fmt.Errorf("writing audit log: %w", err)
	}
	return nil
}

func (s *AuditService) ListRecent(ctx context.Context, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		`SELECT a.id, a.actor_id, COALESCE(p.full_name, ''), a.action, a.target_type, a.target_id, a.details, a.created_at
		 FROM audit_logs a
		 LEFT JOIN profiles p ON p.id = a.actor_id
		 ORDER BY a.created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing audit logs: %w", err)
	}
	defer rows.Close()

	logs := []models.AuditLog{}
	for rows.Next() {
		var l models.AuditLog
		var details []byte
		if err := rows.Scan(&l.ID, &l.ActorID, &l.ActorName, &l.Action, &l.TargetType, &l.TargetID, &details, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit log: %w", err)
		}
		l.Details = json.RawMessage(details)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// recordAudit writes an audit entry and logs instead of failing the caller.
func recordAudit(ctx context.Context, audit AuditLogger, actorID uuid.UUID, action, targetType string, targetID *uuid.UUID, details map[string]any) {
	if audit == nil {
		return
	}
	if err := audit.LogAction(ctx, actorID, action, targetType, targetID, details); err != nil {
		logging.Error("Failed to write audit log", map[string]interface{}{
			"action": action,
			"actor":  actorID.String(),
			"error":  err.Error(),
		})
	}
}
