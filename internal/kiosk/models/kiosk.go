// Package models defines the kiosk entity. A kiosk is a shared-secret
// endpoint that authenticates scans; it is never an actor on events.
package models

import "time"

// Status is the kiosk operational state.
type Status string

const (
	StatusActive      Status = "active"
	StatusInactive    Status = "inactive"
	StatusMaintenance Status = "maintenance"
)

func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusInactive || s == StatusMaintenance
}

// Kiosk is one registered check-in point.
type Kiosk struct {
	ID              int64      `json:"id"`
	Code            string     `json:"code"`
	SecretToken     string     `json:"-"`
	Status          Status     `json:"status"`
	LastHeartbeatAt *time.Time `json:"lastHeartbeatAt,omitempty"`
}
