package quilt

import "time"

// Status is the current lifecycle status of a quilt.
type Status string

const (
	StatusAvailable   Status = "AVAILABLE"
	StatusStorage     Status = "STORAGE"
	StatusInUse       Status = "IN_USE"
	StatusMaintenance Status = "MAINTENANCE"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusStorage, StatusInUse, StatusMaintenance:
		return true
	}
	return false
}

// IsIdle reports whether the quilt is neither in use nor under maintenance.
// AVAILABLE and STORAGE are interchangeable for usage tracking.
func (s Status) IsIdle() bool {
	return s == StatusAvailable || s == StatusStorage
}

// Quilt is a tracked household item.
type Quilt struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Season    string    `json:"season,omitempty"`
	Location  string    `json:"location,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
