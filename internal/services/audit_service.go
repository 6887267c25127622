package services

import (
	"encoding/json"
	"strings"

	"gorm.io/gorm"

	"solconta/internal/logger"
	"solconta/internal/models"
)

// Keys never written to the audit trail.
var redactedKeys = []string{"password", "token"}

type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log records a mutation. Failures are logged and swallowed so the request
// that triggered the entry still succeeds.
func (s *auditService) Log(userID string, action models.AuditAction, resourceType, resourceID, ipAddress string, changes map[string]any) {
	log := logger.Get().With(
		"user_id", userID,
		"action", action,
		"resource_type", resourceType,
		"resource_id", resourceID,
	)
	if userID == "" {
		log.Warnw("skipping audit entry without a user")
		return
	}

	entry := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
		Changes:      encodeChanges(changes),
	}
	if err := s.db.Create(entry).Error; err != nil {
		log.Errorw("failed to create audit log entry", "error", err)
	}
}

// encodeChanges renders changes as JSON, dropping any key that looks like a
// credential.
func encodeChanges(changes map[string]any) string {
	if len(changes) == 0 {
		return ""
	}

	clean := make(map[string]any, len(changes))
	for k, v := range changes {
		if isRedacted(k) {
			continue
		}
		clean[k] = v
	}

	data, err := json.Marshal(clean)
	if err != nil {
		logger.Get().Errorw("failed to marshal audit log changes", "error", err)
		return "{}"
	}
	return string(data)
}

func isRedacted(key string) bool {
	key = strings.ToLower(key)
	for _, r := range redactedKeys {
		if strings.Contains(key, r) {
			return true
		}
	}
	return false
}
