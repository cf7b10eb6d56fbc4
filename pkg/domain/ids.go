// Package domain holds typed identifiers shared across modules. Wrapping
// uuid.UUID in distinct types makes cross-type assignment a compile error,
// so a PatientID can never be passed where an AppointmentID is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "medkiosk/pkg/domain-errors"
)

type (
	// PatientID identifies a patient in the clinic directory.
	PatientID uuid.UUID
	// AppointmentID identifies a scheduled appointment.
	AppointmentID uuid.UUID
	// CheckInID identifies one check-in record.
	CheckInID uuid.UUID
	// DeviceID identifies an enrolled kiosk device.
	DeviceID uuid.UUID
	// ItemID identifies an offline queue item.
	ItemID uuid.UUID
)

func (id PatientID) String() string     { return uuid.UUID(id).String() }
func (id AppointmentID) String() string { return uuid.UUID(id).String() }
func (id CheckInID) String() string     { return uuid.UUID(id).String() }
func (id DeviceID) String() string      { return uuid.UUID(id).String() }
func (id ItemID) String() string        { return uuid.UUID(id).String() }

func (id PatientID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id AppointmentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id CheckInID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id DeviceID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ItemID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }

// The wrapped types do not inherit uuid.UUID's text marshaling, so each
// implements it explicitly. Without these, JSON encoding would emit the
// raw 16-byte array.

func (id PatientID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id AppointmentID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id CheckInID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id DeviceID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id ItemID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }

func (id *PatientID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *AppointmentID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}
func (id *CheckInID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *DeviceID) UnmarshalText(b []byte) error  { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ItemID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }

func NewPatientID() PatientID         { return PatientID(uuid.New()) }
func NewAppointmentID() AppointmentID { return AppointmentID(uuid.New()) }
func NewCheckInID() CheckInID         { return CheckInID(uuid.New()) }
func NewDeviceID() DeviceID           { return DeviceID(uuid.New()) }
func NewItemID() ItemID               { return ItemID(uuid.New()) }

// parseUUID enforces the trust-boundary invariant: IDs must be valid,
// non-empty, non-nil UUIDs.
func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s id is required", kind)
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s id is not a valid UUID", kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s id must not be the nil UUID", kind)
	}
	return parsed, nil
}

func ParsePatientID(s string) (PatientID, error) {
	u, err := parseUUID(s, "patient")
	return PatientID(u), err
}

func ParseAppointmentID(s string) (AppointmentID, error) {
	u, err := parseUUID(s, "appointment")
	return AppointmentID(u), err
}

func ParseCheckInID(s string) (CheckInID, error) {
	u, err := parseUUID(s, "check-in")
	return CheckInID(u), err
}

func ParseDeviceID(s string) (DeviceID, error) {
	u, err := parseUUID(s, "device")
	return DeviceID(u), err
}

func ParseItemID(s string) (ItemID, error) {
	u, err := parseUUID(s, "item")
	return ItemID(u), err
}
