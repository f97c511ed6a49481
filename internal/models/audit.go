package models

// AuditLogEntry represents an audit log record from the database.
type AuditLogEntry struct {
	Actor        string `json:"actor"`
	Namespace    string `json:"namespace"`
	Action       string `json:"action"`
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	IPAddress    string `json:"ip_address"`
	UserAgent    string `json:"user_agent"`
	Details      string `json:"details"`
	CreatedAt    string `json:"created_at"`
	ID           int64  `json:"id"`
}
