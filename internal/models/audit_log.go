package models

// AuditLog records sensitive operations for review. Writes are
// fire-and-forget: a failed audit write never rolls back the operation it
// describes.
type AuditLog struct {
	Base
	ActorID    string `gorm:"type:uuid;index" json:"actor_id"`
	Action     string `gorm:"size:80;not null" json:"action"`
	EntityType string `gorm:"size:80;not null" json:"entity_type"`
	EntityID   string `gorm:"size:80;not null" json:"entity_id"`
	IPAddress  string `gorm:"size:45" json:"ip_address,omitempty"`
	Payload    string `json:"payload,omitempty"`
}
