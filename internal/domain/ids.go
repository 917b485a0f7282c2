package domain

// SubjectID is the authenticated subject extracted from JWT claims (typically "sub").
// We model it as an opaque identifier: its format is controlled by the IdP.
type SubjectID string

// UserID is an internal identifier for a provisioned user record.
type UserID string

// EventID is an internal identifier for an event record.
type EventID string
