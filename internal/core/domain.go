package core

import (
	"errors"
	"strings"
	"time"
)

const (
	StatusPending    ServiceStatus = "pending"
	StatusInProgress ServiceStatus = "in_progress"
	StatusCompleted  ServiceStatus = "completed"
)

const (
	CategoryPersonal    WithdrawalCategory = "personal"
	CategoryOperational WithdrawalCategory = "operational"
	CategoryOther       WithdrawalCategory = "other"
)

// FilterAll is the sentinel filter value matching every status or category.
const FilterAll = "all"

type (
	// ServiceStatus is the lifecycle state of an income record.
	ServiceStatus string

	// WithdrawalCategory classifies an expense record.
	WithdrawalCategory string

	// Date is a calendar date with day precision. The zero value means
	// "absent" for optional dates.
	Date struct {
		time.Time
	}

	// Service is an income record: a billable engagement for a client.
	// Edits replace the record wholesale, keyed by ID.
	Service struct {
		ID          string        `json:"id"`
		Client      string        `json:"client"`
		Description string        `json:"description"`
		Value       Money         `json:"value"`
		StartDate   Date          `json:"startDate"`
		EndDate     Date          `json:"endDate"`
		Status      ServiceStatus `json:"status"`
	}

	// Withdrawal is an expense record. Withdrawals are append/delete-only;
	// there is deliberately no update path for them.
	Withdrawal struct {
		ID          string             `json:"id"`
		Description string             `json:"description"`
		Value       Money              `json:"value"`
		Date        Date               `json:"date"`
		Category    WithdrawalCategory `json:"category"`
	}
)

var (
	ErrEmptyClient      = errors.New("empty client")
	ErrEmptyDescription = errors.New("empty description")
	ErrMissingDate      = errors.New("missing date")
	ErrEndBeforeStart   = errors.New("end date before start date")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidCategory  = errors.New("invalid category")
)

// Valid reports whether s is a member of the closed status enumeration.
func (s ServiceStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

// Valid reports whether c is a member of the closed category enumeration.
func (c WithdrawalCategory) Valid() bool {
	switch c {
	case CategoryPersonal, CategoryOperational, CategoryOther:
		return true
	default:
		return false
	}
}

// NewDate creates a Date from year, month, day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// IsEmpty reports whether the date is absent.
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// dateLayout is the ISO calendar-date wire format.
const dateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// String renders the date as YYYY-MM-DD, or "" when absent.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// MarshalJSON encodes the date as "YYYY-MM-DD", or null when absent.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

// UnmarshalJSON accepts "YYYY-MM-DD", null, or "".
func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		d.Time = time.Time{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Validate checks the record against the domain invariants: non-empty
// client, positive value, present start date, valid status, and end date
// not before start date when present.
func (s Service) Validate() error {
	if strings.TrimSpace(s.Client) == "" {
		return ErrEmptyClient
	}
	if len(s.Client) > 200 {
		return errors.New("client too long (max 200 characters)")
	}
	if len(s.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	if err := s.Value.Validate(); err != nil {
		return err
	}
	if s.StartDate.IsEmpty() {
		return ErrMissingDate
	}
	if !s.EndDate.IsEmpty() && s.EndDate.Before(s.StartDate.Time) {
		return ErrEndBeforeStart
	}
	if !s.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// Validate checks the expense record invariants.
func (w Withdrawal) Validate() error {
	if strings.TrimSpace(w.Description) == "" {
		return ErrEmptyDescription
	}
	if len(w.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	if err := w.Value.Validate(); err != nil {
		return err
	}
	if w.Date.IsEmpty() {
		return ErrMissingDate
	}
	if !w.Category.Valid() {
		return ErrInvalidCategory
	}
	return nil
}
