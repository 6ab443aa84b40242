package activity

import "time"

// Type is the kind of a logged event.
type Type string

const (
	TypeImportUploaded Type = "import_uploaded"
	TypeImportFailed   Type = "import_failed"
	TypeCaseLookup     Type = "case_lookup"
)

// Known reports whether t is a logged event type.
func (t Type) Known() bool {
	switch t {
	case TypeImportUploaded, TypeImportFailed, TypeCaseLookup:
		return true
	}
	return false
}

// Entry is one event in a tenant's activity log.
type Entry struct {
	ID       int64     `json:"id"`
	TenantID string    `json:"tenant_id"`
	UserID   string    `json:"user_id,omitempty"`
	Type     Type      `json:"type"`
	Screen   string    `json:"screen,omitempty"`
	Summary  string    `json:"summary"`
	Details  string    `json:"details,omitempty"`
	At       time.Time `json:"at"`
}
