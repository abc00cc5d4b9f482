// Package device tracks registered sensor devices and their liveness.
package device

import (
	"time"
)

// Status defines the reported state of a device
type Status string

const (
	StatusOnline      Status = "ONLINE"
	StatusOffline     Status = "OFFLINE"
	StatusMaintenance Status = "MAINTENANCE"
)

// Device represents a registered water-quality sensor.
// Collection: devices
type Device struct {
	ID           string     `bson:"_id" json:"id"`
	Name         string     `bson:"name,omitempty" json:"name,omitempty"`
	Location     string     `bson:"location,omitempty" json:"location,omitempty"`
	Status       Status     `bson:"status" json:"status"`
	LastSeen     time.Time  `bson:"lastSeen,omitempty" json:"lastSeen,omitempty"`
	OfflineSince *time.Time `bson:"offlineSince,omitempty" json:"offlineSince,omitempty"`
	RegisteredAt time.Time  `bson:"registeredAt" json:"registeredAt"`
	UpdatedAt    time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// HasLocation reports whether the device is placed. Readings from an
// unplaced device refresh its status but are not evaluated for alerts.
func (d *Device) HasLocation() bool {
	return d.Location != ""
}

// IsOnline returns true if the device currently reports online
func (d *Device) IsOnline() bool {
	return d.Status == StatusOnline
}
