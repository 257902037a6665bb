package validate

import (
	"errors"
	"strings"
	"testing"
)

func TestCheckUnknownRuleSet(t *testing.T) {
	err := Check("nope.create", map[string]string{})
	if err == nil {
		t.Fatal("expected error for unknown rule set")
	}
	var fieldErrs FieldErrors
	if errors.As(err, &fieldErrs) {
		t.Errorf("unknown rule set should not produce FieldErrors, got %v", fieldErrs)
	}
}

func TestCheckRequired(t *testing.T) {
	err := Check("city.create", map[string]string{"name": "Dar es Salaam"})
	if err != nil {
		t.Errorf("expected valid city, got %v", err)
	}

	err = Check("city.create", map[string]string{"name": "   "})
	if err == nil {
		t.Fatal("expected whitespace-only name to fail required")
	}
	var fieldErrs FieldErrors
	if !errors.As(err, &fieldErrs) {
		t.Fatalf("expected FieldErrors, got %T", err)
	}
	if msgs := fieldErrs["name"]; len(msgs) != 1 || msgs[0] != "required" {
		t.Errorf("name errors = %v, want [required]", msgs)
	}
}

func TestCheckPersonImport(t *testing.T) {
	tests := []struct {
		name    string
		data    map[string]string
		wantErr string // substring of the error, empty means valid
	}{
		{
			name:    "valid",
			data:    map[string]string{"name": "Asha", "surname": "Mushi", "phone": "+255712345678"},
			wantErr: "",
		},
		{
			name:    "missing surname",
			data:    map[string]string{"name": "Asha", "phone": "255712345678"},
			wantErr: "surname: required",
		},
		{
			name:    "letters in phone",
			data:    map[string]string{"name": "Asha", "surname": "Mushi", "phone": "07x1234"},
			wantErr: "phone: must contain only digits",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check("person.import", tt.data)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected valid, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestCheckMeterTypeCreate(t *testing.T) {
	err := Check("metertype.create", map[string]string{"max_current": "4.35", "phase": "1"})
	if err != nil {
		t.Errorf("expected valid meter type, got %v", err)
	}

	err = Check("metertype.create", map[string]string{"max_current": "-2", "phase": "2"})
	if err == nil {
		t.Fatal("expected invalid meter type to fail")
	}
	var fieldErrs FieldErrors
	if !errors.As(err, &fieldErrs) {
		t.Fatalf("expected FieldErrors, got %T", err)
	}
	if msgs := fieldErrs["max_current"]; len(msgs) == 0 || !strings.Contains(msgs[0], "at least 0") {
		t.Errorf("max_current errors = %v, want minimum violation", msgs)
	}
	if msgs := fieldErrs["phase"]; len(msgs) == 0 || !strings.Contains(msgs[0], "one of") {
		t.Errorf("phase errors = %v, want oneOf violation", msgs)
	}
}

func TestCheckOrderCreate(t *testing.T) {
	err := Check("order.create", map[string]string{"type": "subscription", "amount": "abc"})
	if err == nil {
		t.Fatal("expected invalid order to fail")
	}
	msg := err.Error()
	if !strings.Contains(msg, "type: must be one of") {
		t.Errorf("error %q missing type violation", msg)
	}
	if !strings.Contains(msg, "amount: must be numeric") {
		t.Errorf("error %q missing amount violation", msg)
	}
}

func TestFieldErrorsMessageIsSorted(t *testing.T) {
	errs := FieldErrors{
		"phone": {"required"},
		"name":  {"required", "must be at least 3 characters"},
	}
	got := errs.Error()
	want := "name: required, must be at least 3 characters; phone: required"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
