package contacts

import (
	"errors"
	"time"
)

// Contact is a customer identity keyed by a normalized (E.164) phone number.
//
// Invariants:
// - (tenant_id, phone) is unique.
// - Status is changed only by compliance keywords or an explicit agent action.
// - The pipeline never deletes contacts.
type Contact struct {
	ID          string `json:"id" db:"id"`
	TenantID    string `json:"tenant_id" db:"tenant_id"`
	Phone       string `json:"phone" db:"phone"`
	DisplayName string `json:"display_name,omitempty" db:"display_name"`

	Status Status   `json:"status" db:"status"`
	Tags   []string `json:"tags" db:"tags"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CanReceiveAutomated reports whether non-compliance sends may target this contact.
func (c Contact) CanReceiveAutomated() bool {
	return c.Status == StatusActive
}

type Status string

const (
	StatusActive       Status = "active"
	StatusUnsubscribed Status = "unsubscribed"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusActive, StatusUnsubscribed:
		return Status(s), nil
	default:
		return "", ErrInvalidArgument
	}
}

var (
	ErrNotFound        = errors.New("contacts: not found")
	ErrInvalidArgument = errors.New("contacts: invalid argument")
	ErrInvalidAddress  = errors.New("contacts: invalid address")
)
