package shift

import (
	"testing"
	"time"
)

func validNewShift() NewShift {
	return NewShift{
		Date:     time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC),
		Duration: FromHours(8),
		Event:    "Stadium first aid",
		Location: "North stand",
		Role:     RoleEAC,
		CrewMate: "Alex",
	}
}

func validNewJob() NewJob {
	return NewJob{
		Category: 3,
		Outcome:  OutcomeConveyed,
		Shift:    "abc123",
	}
}

func fieldsOf(errs []FieldError) []string {
	fields := make([]string, len(errs))
	for i, e := range errs {
		fields[i] = e.Field
	}
	return fields
}

func assertFields(t *testing.T, errs []FieldError, want ...string) {
	t.Helper()
	if len(errs) != len(want) {
		t.Fatalf("expected %d errors on %v, got %v", len(want), want, errs)
	}
	got := map[string]bool{}
	for _, f := range fieldsOf(errs) {
		got[f] = true
	}
	for _, f := range want {
		if !got[f] {
			t.Errorf("expected an error on field %q, got %v", f, errs)
		}
	}
}

func TestValidateNewShift(t *testing.T) {
	tests := []struct {
		name       string
		modify     func(*NewShift)
		wantFields []string
	}{
		{"valid", func(ns *NewShift) {}, nil},
		{"valid without optionals", func(ns *NewShift) { ns.Location = ""; ns.CrewMate = "" }, nil},
		{"zero duration", func(ns *NewShift) { ns.Duration = 0 }, []string{"duration"}},
		{"negative duration", func(ns *NewShift) { ns.Duration = FromHours(-1) }, []string{"duration"}},
		{"empty event", func(ns *NewShift) { ns.Event = "" }, []string{"event"}},
		{"blank event", func(ns *NewShift) { ns.Event = "   " }, []string{"event"}},
		{"unknown role", func(ns *NewShift) { ns.Role = "DRIVER" }, []string{"role"}},
		{"empty role", func(ns *NewShift) { ns.Role = "" }, []string{"role"}},
		{"everything wrong", func(ns *NewShift) { ns.Duration = 0; ns.Event = " "; ns.Role = "x" }, []string{"duration", "event", "role"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ns := validNewShift()
			tt.modify(&ns)
			assertFields(t, ValidateNewShift(&ns), tt.wantFields...)
		})
	}
}

func TestValidateUpdatedShift(t *testing.T) {
	valid := func() UpdatedShift {
		ns := validNewShift()
		return UpdatedShift{
			ID:       "abc123",
			Date:     ns.Date,
			Duration: ns.Duration,
			Event:    ns.Event,
			Location: ns.Location,
			Role:     ns.Role,
			CrewMate: ns.CrewMate,
		}
	}

	tests := []struct {
		name       string
		modify     func(*UpdatedShift)
		wantFields []string
	}{
		{"valid", func(us *UpdatedShift) {}, nil},
		{"missing id", func(us *UpdatedShift) { us.ID = "" }, []string{"id"}},
		{"zero duration", func(us *UpdatedShift) { us.Duration = 0 }, []string{"duration"}},
		{"blank event", func(us *UpdatedShift) { us.Event = "\t" }, []string{"event"}},
		{"unknown role", func(us *UpdatedShift) { us.Role = "ZZZ" }, []string{"role"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			us := valid()
			tt.modify(&us)
			assertFields(t, ValidateUpdatedShift(&us), tt.wantFields...)
		})
	}
}

func TestValidateNewJob(t *testing.T) {
	age := func(n int) *int { return &n }
	gender := GenderMale

	tests := []struct {
		name       string
		modify     func(*NewJob)
		wantFields []string
	}{
		{"valid minimal", func(nj *NewJob) {}, nil},
		{"valid full", func(nj *NewJob) {
			nj.Age = age(23)
			nj.Gender = &gender
			nj.BlueLights = true
			nj.Drove = true
			nj.Notes = "assisted walking wounded"
			nj.ReflectionFlag = true
		}, nil},
		{"nil age allowed", func(nj *NewJob) { nj.Age = nil }, nil},
		{"zero age", func(nj *NewJob) { nj.Age = age(0) }, []string{"age"}},
		{"negative age", func(nj *NewJob) { nj.Age = age(-1) }, []string{"age"}},
		{"category too low", func(nj *NewJob) { nj.Category = 0 }, []string{"category"}},
		{"category too high", func(nj *NewJob) { nj.Category = 6 }, []string{"category"}},
		{"unknown outcome", func(nj *NewJob) { nj.Outcome = "Vanished" }, []string{"outcome"}},
		{"missing shift", func(nj *NewJob) { nj.Shift = "" }, []string{"shift"}},
		{"negative age only failure", func(nj *NewJob) {
			nj.Age = age(-1)
			nj.Category = 1
			nj.Outcome = OutcomeDischargedOnScene
			nj.Shift = "abc"
		}, []string{"age"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nj := validNewJob()
			tt.modify(&nj)
			assertFields(t, ValidateNewJob(&nj), tt.wantFields...)
		})
	}
}

func TestValidationReportsMessages(t *testing.T) {
	ns := validNewShift()
	ns.Role = "DRIVER"
	errs := ValidateNewShift(&ns)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	if errs[0].Field != "role" || errs[0].Message == "" {
		t.Errorf("expected a role error with a message, got %+v", errs[0])
	}
}
