package validator

import (
	"errors"
	"testing"
)

type address struct {
	City string `json:"city" validate:"required"`
}

type sample struct {
	Phone   string   `json:"phoneNumber" validate:"required,uzphone"`
	Email   string   `json:"email" validate:"required,email"`
	Gender  string   `json:"gender" validate:"omitempty,oneof=Мужской Женский"`
	Address *address `json:"address" validate:"required"`
}

func TestIsPhone(t *testing.T) {
	valid := []string{"+998901234567", "+998331234567", "+998771234567", "+998881234567"}
	invalid := []string{"998901234567", "+99890123456", "+998921234567", "+998961234567", "+7901234567", ""}
	for _, p := range valid {
		if !IsPhone(p) {
			t.Errorf("IsPhone(%q) = false", p)
		}
	}
	for _, p := range invalid {
		if IsPhone(p) {
			t.Errorf("IsPhone(%q) = true", p)
		}
	}
}

func TestFieldErrorsKeyedByJSONName(t *testing.T) {
	v := New()
	err := v.Struct(sample{Phone: "123", Email: "nope", Gender: "other", Address: &address{}})

	fields, ok := FieldErrors(err)
	if !ok {
		t.Fatalf("FieldErrors() ok = false for %v", err)
	}
	for _, key := range []string{"phoneNumber", "email", "gender", "address.city"} {
		if fields[key] == "" {
			t.Errorf("missing error for %q in %v", key, fields)
		}
	}
}

func TestFieldErrorsAcceptsValidStruct(t *testing.T) {
	v := New()
	err := v.Struct(sample{Phone: "+998901234567", Email: "a@x.com", Gender: "Женский", Address: &address{City: "Tashkent"}})
	if err != nil {
		t.Fatalf("Struct() error = %v", err)
	}
}

func TestFieldErrorsIgnoresOtherErrors(t *testing.T) {
	if _, ok := FieldErrors(errors.New("boom")); ok {
		t.Error("plain errors are not validation errors")
	}
}
