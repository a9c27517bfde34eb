package models

import "time"

// Audit actions recorded for sensitive operations.
const (
	AuditActionLogin         = "LOGIN"
	AuditActionLogout        = "LOGOUT"
	AuditActionRegister      = "REGISTER"
	AuditActionAdminRegister = "ADMIN_REGISTER"
	AuditActionRoleChange    = "ROLE_CHANGE"
	AuditActionPasswordReset = "PASSWORD_RESET"
	AuditActionCourseCreate  = "COURSE_CREATE"
	AuditActionCourseUpdate  = "COURSE_UPDATE"
	AuditActionCourseDelete  = "COURSE_DELETE"
	AuditActionVideoUpload   = "VIDEO_UPLOAD"
	AuditActionVideoDelete   = "VIDEO_DELETE"
	AuditActionProfileUpdate = "PROFILE_UPDATE"
	AuditActionSubscribe     = "SUBSCRIBE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
