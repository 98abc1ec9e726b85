package models

// SelfCheckRequest is a worker-device scan of a kiosk-displayed code.
type SelfCheckRequest struct {
	DeviceTime     string   `json:"deviceTime"`
	DeviceTimezone string   `json:"deviceTimezone,omitempty"`
	KioskCode      string   `json:"kioskCode"`
	Code           string   `json:"code"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
}

// SelfCheckResult reports the stored event back to the device.
type SelfCheckResult struct {
	EventID          string    `json:"eventId"`
	Direction        Direction `json:"direction"`
	WorkMinutes      *int      `json:"workMinutes,omitempty"`
	IsLate           *bool     `json:"isLate,omitempty"`
	IsEarlyDeparture *bool     `json:"isEarlyDeparture,omitempty"`
}

// RepresentativeSyncItem is one observed event in a representative batch.
type RepresentativeSyncItem struct {
	SubjectID      int64      `json:"subjectId"`
	Direction      *Direction `json:"direction,omitempty"`
	DeviceTime     string     `json:"deviceTime"`
	DeviceTimezone string     `json:"deviceTimezone,omitempty"`
}

// OfflineSyncItem is one kiosk scan queued on the worker device during an
// outage. ScannedCode is the rotating code the kiosk displayed at scan time.
type OfflineSyncItem struct {
	KioskCode      string   `json:"kioskCode"`
	DeviceTime     string   `json:"deviceTime"`
	DeviceTimezone string   `json:"deviceTimezone,omitempty"`
	EventID        string   `json:"eventId,omitempty"`
	ScannedCode    string   `json:"scannedCode,omitempty"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
}

// SyncedItem is one successfully stored batch item.
type SyncedItem struct {
	EventID   string    `json:"eventId"`
	SubjectID int64     `json:"subjectId"`
	Direction Direction `json:"direction"`
	Flagged   bool      `json:"flagged"`
}

// SyncError is one failed batch item. The rest of the batch continues.
type SyncError struct {
	SubjectID     int64  `json:"subjectId,omitempty"`
	ClientEventID string `json:"clientEventId,omitempty"`
	Reason        string `json:"reason"`
}

// SyncResult accumulates per-item outcomes; a batch never fails atomically.
type SyncResult struct {
	SyncedCount    int          `json:"syncedCount"`
	DuplicateCount int          `json:"duplicateCount"`
	ErrorCount     int          `json:"errorCount"`
	Synced         []SyncedItem `json:"synced"`
	Duplicates     []string     `json:"duplicates"`
	Errors         []SyncError  `json:"errors"`
}
