package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"

	// DefaultKind is the kind preselected on an empty form.
	DefaultKind = Income
)

type (
	Kind string

	// Transaction is one income or expense record. It is never edited in place.
	Transaction struct {
		ID          int64
		Description string
		Amount      decimal.Decimal
		Kind        Kind
	}

	// Draft is a validated candidate that has not been assigned an ID yet.
	Draft struct {
		Description string
		Amount      decimal.Decimal
		Kind        Kind
	}

	// DraftInput is the raw form input as typed by the user.
	DraftInput struct {
		Description string
		Amount      string
		Kind        Kind
	}
)

var (
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidKind      = errors.New("invalid kind")
)

// ParseKind maps a form value to a Kind. An empty value selects DefaultKind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultKind, nil
	case string(Income):
		return Income, nil
	case string(Expense):
		return Expense, nil
	default:
		return "", ErrInvalidKind
	}
}

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

func (k Kind) String() string {
	return string(k)
}

// Label is the capitalized name shown next to an entry.
func (k Kind) Label() string {
	switch k {
	case Income:
		return "Income"
	case Expense:
		return "Expense"
	default:
		return string(k)
	}
}

// Validate checks raw input and returns an admissible draft.
// Only the first failing check is reported: description, then amount, then kind.
func Validate(in DraftInput) (Draft, error) {
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return Draft{}, ErrEmptyDescription
	}
	amount, err := ParseAmount(in.Amount)
	if err != nil {
		return Draft{}, err
	}
	kind := in.Kind
	if kind == "" {
		kind = DefaultKind
	}
	if !kind.Valid() {
		return Draft{}, ErrInvalidKind
	}
	return Draft{Description: desc, Amount: amount, Kind: kind}, nil
}

func (d Draft) Validate() error {
	if strings.TrimSpace(d.Description) == "" {
		return ErrEmptyDescription
	}
	if !d.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !d.Kind.Valid() {
		return ErrInvalidKind
	}
	return nil
}

func (t Transaction) Validate() error {
	return Draft{Description: t.Description, Amount: t.Amount, Kind: t.Kind}.Validate()
}

// Signed returns the amount with the sign implied by its kind.
func (t Transaction) Signed() decimal.Decimal {
	if t.Kind == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}

// UserMessage returns the inline message shown for a validation error.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrEmptyDescription):
		return "Description is required."
	case errors.Is(err, ErrInvalidAmount):
		return "Enter a positive amount."
	case errors.Is(err, ErrInvalidKind):
		return "Choose income or expense."
	case err == nil:
		return ""
	default:
		return "Something went wrong. Please try again."
	}
}

// IsValidationError reports whether err comes from input validation.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyDescription) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidKind)
}
