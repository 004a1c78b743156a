package models

import "time"

type DeviceStatus string

const (
	DeviceStatusUntrusted DeviceStatus = "untrusted"
	DeviceStatusTrusted   DeviceStatus = "trusted"
	DeviceStatusBlocked   DeviceStatus = "blocked"
)

// Device is one fingerprinted client owned by a single user. Its trust state is
// independent of any session opened from it and only ever moves forward:
// untrusted -> trusted, untrusted|trusted -> blocked.
type Device struct {
	ID           string
	UserID       string
	Fingerprint  string
	Name         string
	Status       DeviceStatus
	LastIP       string
	LastLocation string
	LastSeenAt   time.Time
	TrustedAt    *time.Time
	BlockedAt    *time.Time
	BlockReason  *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func NewDevice(id, userID, fingerprint, name string, now time.Time) Device {
	return Device{
		ID:          id,
		UserID:      userID,
		Fingerprint: fingerprint,
		Name:        name,
		Status:      DeviceStatusUntrusted,
		LastSeenAt:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (d Device) IsBlocked() bool {
	return d.Status == DeviceStatusBlocked
}

func (d Device) IsTrusted() bool {
	return d.Status == DeviceStatusTrusted
}

// Trust promotes an untrusted device. Trusting a trusted device is a no-op;
// a blocked device stays blocked.
func (d *Device) Trust(now time.Time) error {
	switch d.Status {
	case DeviceStatusTrusted:
		return nil
	case DeviceStatusBlocked:
		return ErrDeviceBlocked
	case DeviceStatusUntrusted:
		d.Status = DeviceStatusTrusted
		d.TrustedAt = &now
		d.UpdatedAt = now
		return nil
	}
	return ErrInvalidTransition
}

// Block is terminal. Blocking twice keeps the first reason and timestamp.
func (d *Device) Block(now time.Time, reason string) error {
	switch d.Status {
	case DeviceStatusBlocked:
		return nil
	case DeviceStatusUntrusted, DeviceStatusTrusted:
		d.Status = DeviceStatusBlocked
		d.BlockedAt = &now
		d.BlockReason = &reason
		d.UpdatedAt = now
		return nil
	}
	return ErrInvalidTransition
}

func (d *Device) UpdateLastSeen(now time.Time, ip, location string) {
	d.LastSeenAt = now
	if ip != "" {
		d.LastIP = ip
	}
	if location != "" {
		d.LastLocation = location
	}
	d.UpdatedAt = now
}
