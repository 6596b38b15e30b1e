package shift

import (
	"encoding/json"
	"time"
)

// Role is the capacity the user worked a shift in.
type Role string

const (
	RoleEAC Role = "EAC"
	RoleCRU Role = "CRU"
	RoleAFA Role = "AFA"
)

// Gender of a patient on a job, where recorded.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

// Outcome describes how a job ended.
type Outcome string

const (
	OutcomeStoodDown         Outcome = "StoodDown"
	OutcomeNotFound          Outcome = "NotFound"
	OutcomeDischargedOnScene Outcome = "DischargedOnScene"
	OutcomeConveyed          Outcome = "Conveyed"
	OutcomeOther             Outcome = "Other"
)

// Duration is a shift length. On the wire it is a plain number of hours
// (int or float); any other JSON value decodes to zero rather than erroring.
// The lenient decode is a documented compatibility behavior: historical
// documents carry the duration in either integer or fractional form.
type Duration time.Duration

// Hours returns the duration as a floating-point number of hours.
func (d Duration) Hours() float64 {
	return time.Duration(d).Hours()
}

// FromHours converts a number of hours into a Duration.
func FromHours(hours float64) Duration {
	return Duration(time.Duration(hours * float64(time.Hour)))
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Hours())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var hours float64
	if err := json.Unmarshal(data, &hours); err != nil {
		*d = 0
		return nil
	}
	*d = FromHours(hours)
	return nil
}

// Job is a single incident logged against a shift. Jobs live inside their
// parent shift document and are never addressed independently.
type Job struct {
	ID             string  `json:"id"`
	Age            *int    `json:"age,omitempty"`
	Category       int     `json:"category"`
	Gender         *Gender `json:"gender,omitempty"`
	BlueLights     bool    `json:"blueLights"`
	Drove          bool    `json:"drove"`
	Notes          string  `json:"notes"`
	Outcome        Outcome `json:"outcome"`
	ReflectionFlag bool    `json:"reflectionFlag"`
}

// Shift is the aggregate root: one logged work session and its embedded
// jobs. UserID is the partition key and never changes after creation. A
// soft-deleted shift keeps its document but is excluded from normal reads.
type Shift struct {
	ID       string    `json:"id"`
	UserID   string    `json:"userId"`
	Date     time.Time `json:"date"`
	Duration Duration  `json:"duration"`
	Event    string    `json:"event"`
	Location string    `json:"location,omitempty"`
	Role     Role      `json:"role"`
	CrewMate string    `json:"crewMate,omitempty"`
	Deleted  bool      `json:"deleted,omitempty"`
	Jobs     []Job     `json:"jobs,omitempty"`
}

// NewShift is the request body for logging a shift.
type NewShift struct {
	Date     time.Time `json:"date"`
	Duration Duration  `json:"duration" validate:"gt=0"`
	Event    string    `json:"event" validate:"notblank"`
	Location string    `json:"location"`
	Role     Role      `json:"role" validate:"oneof=EAC CRU AFA"`
	CrewMate string    `json:"crewMate"`
}

// UpdatedShift is the request body for replacing a shift's editable fields.
// It doubles as the response shape for single-shift reads: the jobs list and
// the deleted flag are not part of the editable view.
type UpdatedShift struct {
	ID       string    `json:"id" validate:"required"`
	Date     time.Time `json:"date"`
	Duration Duration  `json:"duration" validate:"gt=0"`
	Event    string    `json:"event" validate:"notblank"`
	Location string    `json:"location,omitempty"`
	Role     Role      `json:"role" validate:"oneof=EAC CRU AFA"`
	CrewMate string    `json:"crewMate,omitempty"`
}

// NewJob is the request body for logging a job against an existing shift.
type NewJob struct {
	Age            *int    `json:"age" validate:"omitnil,gt=0"`
	Category       int     `json:"category" validate:"min=1,max=5"`
	Gender         *Gender `json:"gender"`
	BlueLights     bool    `json:"blueLights"`
	Drove          bool    `json:"drove"`
	Notes          string  `json:"notes"`
	Outcome        Outcome `json:"outcome" validate:"oneof=StoodDown NotFound DischargedOnScene Conveyed Other"`
	ReflectionFlag bool    `json:"reflectionFlag"`
	Shift          string  `json:"shift" validate:"required"`
}

// ShiftSummary is the reduced projection returned from list endpoints.
type ShiftSummary struct {
	ID          string    `json:"id"`
	CrewMate    string    `json:"crewMate,omitempty"`
	Date        time.Time `json:"date"`
	Duration    Duration  `json:"duration"`
	Event       string    `json:"event"`
	Location    string    `json:"location,omitempty"`
	LoggedCalls int       `json:"loggedCalls"`
	Role        Role      `json:"role"`
}

// JobSummary is the reduced projection of a job returned from GetJobs.
// Notes, outcome and the vehicle flags are deliberately omitted.
type JobSummary struct {
	ID             string  `json:"id"`
	Age            *int    `json:"age,omitempty"`
	Category       int     `json:"category"`
	Gender         *Gender `json:"gender,omitempty"`
	ReflectionFlag bool    `json:"reflectionFlag"`
}

// Summary returns the list projection of the shift.
func (s *Shift) Summary() ShiftSummary {
	return ShiftSummary{
		ID:          s.ID,
		CrewMate:    s.CrewMate,
		Date:        s.Date,
		Duration:    s.Duration,
		Event:       s.Event,
		Location:    s.Location,
		LoggedCalls: len(s.Jobs),
		Role:        s.Role,
	}
}

// Editable returns the single-shift read projection.
func (s *Shift) Editable() UpdatedShift {
	return UpdatedShift{
		ID:       s.ID,
		Date:     s.Date,
		Duration: s.Duration,
		Event:    s.Event,
		Location: s.Location,
		Role:     s.Role,
		CrewMate: s.CrewMate,
	}
}

// Summary returns the list projection of the job.
func (j Job) Summary() JobSummary {
	return JobSummary{
		ID:             j.ID,
		Age:            j.Age,
		Category:       j.Category,
		Gender:         j.Gender,
		ReflectionFlag: j.ReflectionFlag,
	}
}
