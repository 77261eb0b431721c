package services

import (
	"encoding/json"

	"gorm.io/gorm"

	"tienda/internal/logger"
	"tienda/internal/models"
)

// auditService handles audit log recording.
type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log records an audit event. Errors are logged but never propagate
// to avoid disrupting the main operation.
func (s *auditService) Log(actorID, action, entityType, entityID, ipAddress string, payload map[string]any) {
	var payloadJSON string
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			logger.Get().Errorw("failed to marshal audit payload", "error", err, "action", action)
			payloadJSON = "{}"
		} else {
			payloadJSON = string(data)
		}
	}

	entry := &models.AuditLog{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		IPAddress:  ipAddress,
		Payload:    payloadJSON,
	}

	if err := s.db.Create(entry).Error; err != nil {
		logger.Get().Errorw("failed to create audit log entry",
			"error", err,
			"actor_id", actorID,
			"action", action,
			"entity_type", entityType,
			"entity_id", entityID,
		)
	}
}
