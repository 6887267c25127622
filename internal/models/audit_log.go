package models

// AuditAction names a recorded mutation.
type AuditAction string

const (
	AuditCreate         AuditAction = "CREATE"
	AuditUpdate         AuditAction = "UPDATE"
	AuditDelete         AuditAction = "DELETE"
	AuditSignUp         AuditAction = "SIGN_UP"
	AuditUpdatePassword AuditAction = "UPDATE_PASSWORD"
)

// Audited resource types.
const (
	ResourceUser        = "user"
	ResourceTransaction = "transaction"
	ResourceCategory    = "category"
)

// AuditLog records every mutation a user performs. Changes holds the JSON
// encoded request fields, with secrets removed.
type AuditLog struct {
	Base
	UserID       string      `gorm:"type:uuid;not null;index" json:"user_id"`
	Action       AuditAction `gorm:"not null" json:"action"`
	ResourceType string      `gorm:"not null" json:"resource_type"`
	ResourceID   string      `json:"resource_id"`
	IPAddress    string      `json:"ip_address"`
	Changes      string      `json:"changes,omitempty"`
}
