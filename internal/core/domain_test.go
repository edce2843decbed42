package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		in   DraftInput
		err  error
	}{
		{"ok income", DraftInput{Description: "Salary", Amount: "1000", Kind: Income}, nil},
		{"ok expense trimmed", DraftInput{Description: "  Coffee ", Amount: " 4.5 ", Kind: Expense}, nil},
		{"default kind", DraftInput{Description: "Gift", Amount: "10"}, nil},
		{"empty description", DraftInput{Description: "", Amount: "10", Kind: Income}, ErrEmptyDescription},
		{"blank description", DraftInput{Description: "   ", Amount: "10", Kind: Income}, ErrEmptyDescription},
		{"description wins over amount", DraftInput{Description: " ", Amount: "abc", Kind: Income}, ErrEmptyDescription},
		{"negative amount", DraftInput{Description: "Rent", Amount: "-5", Kind: Expense}, ErrInvalidAmount},
		{"zero amount", DraftInput{Description: "Rent", Amount: "0", Kind: Expense}, ErrInvalidAmount},
		{"empty amount", DraftInput{Description: "Rent", Amount: "", Kind: Expense}, ErrInvalidAmount},
		{"non numeric amount", DraftInput{Description: "Rent", Amount: "ten", Kind: Expense}, ErrInvalidAmount},
		{"unknown kind", DraftInput{Description: "Rent", Amount: "5", Kind: "transfer"}, ErrInvalidKind},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := Validate(tc.in)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("expected %v, got %v", tc.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected ok, got %v", err)
			}
			if err := d.Validate(); err != nil {
				t.Fatalf("draft should be valid: %v", err)
			}
		})
	}
}

func TestValidateTrimsAndKeepsKind(t *testing.T) {
	d, err := Validate(DraftInput{Description: "  Coffee  ", Amount: "4.5", Kind: Expense})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Description != "Coffee" {
		t.Fatalf("description not trimmed: %q", d.Description)
	}
	if !d.Amount.Equal(decimal.RequireFromString("4.5")) {
		t.Fatalf("amount = %s", d.Amount)
	}
	if d.Kind != Expense {
		t.Fatalf("kind = %s", d.Kind)
	}

	d, _ = Validate(DraftInput{Description: "Gift", Amount: "1"})
	if d.Kind != Income {
		t.Fatalf("empty kind should default to income, got %s", d.Kind)
	}
}

func TestParseKind(t *testing.T) {
	cases := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"income", Income, true},
		{"EXPENSE", Expense, true},
		{" expense ", Expense, true},
		{"", DefaultKind, true},
		{"transfer", "", false},
	}
	for _, tc := range cases {
		got, err := ParseKind(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("%q: expected %s, got %s (err=%v)", tc.in, tc.want, got, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidKind) {
			t.Fatalf("%q: expected ErrInvalidKind, got %v", tc.in, err)
		}
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(ErrEmptyDescription); got != "Description is required." {
		t.Fatalf("got %q", got)
	}
	if got := UserMessage(ErrInvalidAmount); got != "Enter a positive amount." {
		t.Fatalf("got %q", got)
	}
	if got := UserMessage(nil); got != "" {
		t.Fatalf("nil error should have no message, got %q", got)
	}
	if !IsValidationError(ErrInvalidKind) || IsValidationError(errors.New("disk full")) {
		t.Fatalf("IsValidationError misclassifies")
	}
}

func TestTransactionSigned(t *testing.T) {
	in := Transaction{Amount: decimal.NewFromInt(10), Kind: Income}
	out := Transaction{Amount: decimal.NewFromInt(10), Kind: Expense}
	if !in.Signed().Equal(decimal.NewFromInt(10)) || !out.Signed().Equal(decimal.NewFromInt(-10)) {
		t.Fatalf("signed: %s %s", in.Signed(), out.Signed())
	}
}
