package services

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/pandeptwidyaop/pm2-remote/internal/database"
	"github.com/pandeptwidyaop/pm2-remote/internal/models"
)

// AuditService handles audit logging for token and process operations.
type AuditService struct {
	db *database.DB
}

// NewAuditService creates a new AuditService instance.
func NewAuditService(db *database.DB) *AuditService {
	return &AuditService{db: db}
}

// AuditLog represents an audit log entry to be recorded.
type AuditLog struct {
	Details      map[string]interface{}
	Scope        models.Scope
	Action       string
	ResourceType string
	ResourceID   string
	IPAddress    string
	UserAgent    string
}

// Log records an audit log entry to the database.
func (s *AuditService) Log(entry AuditLog) error {
	var detailsJSON string
	if entry.Details != nil {
		bytes, err := json.Marshal(entry.Details)
		if err == nil {
			detailsJSON = string(bytes)
		}
	}

	_, err := s.db.Exec(s.db.Rebind(`
		INSERT INTO audit_logs (actor, namespace, action, resource_type, resource_id, ip_address, user_agent, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), entry.Scope.Actor(), entry.Scope.Namespace, entry.Action, entry.ResourceType, entry.ResourceID, entry.IPAddress, entry.UserAgent, detailsJSON)
	if err != nil {
		log.Printf("[Audit] failed to record %s %s: %v", entry.Action, entry.ResourceType, err)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// LogTokenCreate logs the minting of a namespace token.
func (s *AuditService) LogTokenCreate(scope models.Scope, token *models.CreatedToken, ip, userAgent string) {
	_ = s.Log(AuditLog{
		Scope:        scope,
		Action:       "create",
		ResourceType: "token",
		ResourceID:   token.ID,
		IPAddress:    ip,
		UserAgent:    userAgent,
		Details: map[string]interface{}{
			"namespace": token.Namespace,
		},
	})
}

// LogTokenDelete logs the removal of a namespace token.
func (s *AuditService) LogTokenDelete(scope models.Scope, tokenID, ip, userAgent string) {
	_ = s.Log(AuditLog{
		Scope:        scope,
		Action:       "delete",
		ResourceType: "token",
		ResourceID:   tokenID,
		IPAddress:    ip,
		UserAgent:    userAgent,
	})
}

// LogProcessAction logs a start, stop, restart, reload or delete.
func (s *AuditService) LogProcessAction(scope models.Scope, action string, proc *models.Process, ip, userAgent string) {
	_ = s.Log(AuditLog{
		Scope:        scope,
		Action:       action,
		ResourceType: "process",
		ResourceID:   proc.ID,
		IPAddress:    ip,
		UserAgent:    userAgent,
		Details: map[string]interface{}{
			"process_name": proc.Name,
			"namespace":    proc.Namespace(),
		},
	})
}

// GetLogs retrieves audit logs with pagination, newest first.
func (s *AuditService) GetLogs(limit, offset int) ([]models.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(s.db.Rebind(`
		SELECT id, actor, namespace, action, resource_type, resource_id, ip_address, user_agent, details, created_at
		FROM audit_logs
		ORDER BY id DESC
		LIMIT ? OFFSET ?
	`), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	defer rows.Close()

	// Initialize empty slice instead of nil to return [] instead of null in JSON
	logs := make([]models.AuditLogEntry, 0)
	for rows.Next() {
		var entry models.AuditLogEntry
		var namespace, resourceID, ipAddress, userAgent, details *string

		if err := rows.Scan(
			&entry.ID,
			&entry.Actor,
			&namespace,
			&entry.Action,
			&entry.ResourceType,
			&resourceID,
			&ipAddress,
			&userAgent,
			&details,
			&entry.CreatedAt,
		); err != nil {
			continue
		}

		if namespace != nil {
			entry.Namespace = *namespace
		}
		if resourceID != nil {
			entry.ResourceID = *resourceID
		}
		if ipAddress != nil {
			entry.IPAddress = *ipAddress
		}
		if userAgent != nil {
			entry.UserAgent = *userAgent
		}
		if details != nil {
			entry.Details = *details
		}

		logs = append(logs, entry)
	}

	return logs, rows.Err()
}
