package validator

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"breez/pkg/logger"
	"breez/pkg/model"
)

func testValidator() *AppointmentValidator {
	return NewAppointmentValidator(logger.New(logger.Config{Level: "error", Output: io.Discard}))
}

func validAppointment() *model.Appointment {
	return &model.Appointment{
		PatientName: "Jane Doe",
		Age:         34,
		Service:     "cleaning",
		StartTime:   time.Date(2099, 1, 10, 9, 0, 0, 0, time.Local),
	}
}

func TestValidate_ValidAppointment(t *testing.T) {
	if err := testValidator().Validate(validAppointment()); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_OptionalFieldsMayBeEmpty(t *testing.T) {
	appt := validAppointment()
	appt.InsuranceProvider = ""
	appt.Notes = ""

	if err := testValidator().Validate(appt); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_FieldConstraints(t *testing.T) {
	cases := []struct {
		name      string
		mutate    func(*model.Appointment)
		wantField string
	}{
		{"missing patient name", func(a *model.Appointment) { a.PatientName = "" }, "PatientName"},
		{"one-character name", func(a *model.Appointment) { a.PatientName = "J" }, "PatientName"},
		{"name too long", func(a *model.Appointment) { a.PatientName = strings.Repeat("a", 101) }, "PatientName"},
		{"zero age", func(a *model.Appointment) { a.Age = 0 }, "Age"},
		{"negative age", func(a *model.Appointment) { a.Age = -5 }, "Age"},
		{"age above bound", func(a *model.Appointment) { a.Age = 121 }, "Age"},
		{"missing service", func(a *model.Appointment) { a.Service = "" }, "Service"},
		{"zero start time", func(a *model.Appointment) { a.StartTime = time.Time{} }, "StartTime"},
		{"malformed object id", func(a *model.Appointment) { a.ID = "nope" }, "ID"},
		{"notes too long", func(a *model.Appointment) { a.Notes = strings.Repeat("n", 501) }, "Notes"},
	}

	v := testValidator()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			appt := validAppointment()
			tc.mutate(appt)

			err := v.Validate(appt)
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}

			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("error type = %T, want ValidationErrors", err)
			}
			found := false
			for _, ve := range verrs {
				if ve.Field == tc.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("no validation error for field %s in %v", tc.wantField, verrs)
			}
		})
	}
}

func TestValidate_BoundaryAges(t *testing.T) {
	v := testValidator()
	for _, age := range []int{1, 120} {
		appt := validAppointment()
		appt.Age = age
		if err := v.Validate(appt); err != nil {
			t.Errorf("Validate() with age %d error = %v, want nil", age, err)
		}
	}
}

func TestValidationErrors_Message(t *testing.T) {
	errs := ValidationErrors{
		{Field: "PatientName", Message: "PatientName is required"},
		{Field: "Age", Message: "Age must be at least 1"},
	}

	msg := errs.Error()
	if !strings.Contains(msg, "2 error(s)") {
		t.Errorf("Error() = %q, want error count", msg)
	}
	if !strings.Contains(msg, "PatientName is required") {
		t.Errorf("Error() = %q, missing field message", msg)
	}
}
