package program

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/classmeasures/hub/core"
)

// Offered program categories. A closed set; creating a program outside of it
// is a validation error.
const (
	CategoryCoding   = "Coding"
	CategoryChess    = "Chess"
	CategoryRobotics = "Robotics"
	CategoryFrench   = "French"
	CategoryReading  = "Reading"
)

var Categories = []string{CategoryCoding, CategoryChess, CategoryRobotics, CategoryFrench, CategoryReading}

// Availability filter values for program listings.
const (
	AvailabilityAvailable = "available"
	AvailabilityFull      = "full"
)

type AgeRange struct {
	Min int `json:"min" bson:"min" validate:"min=4"`
	Max int `json:"max" bson:"max" validate:"max=18,gtfield=Min"`
}

type Schedule struct {
	Days      []string `json:"days" bson:"days" validate:"required,min=1,dive,oneof=Monday Tuesday Wednesday Thursday Friday Saturday Sunday"`
	StartTime string   `json:"start_time" bson:"start_time" validate:"required,hhmm"`
	EndTime   string   `json:"end_time" bson:"end_time" validate:"required,hhmm"`
}

type Program struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	Category         string    `json:"category"`
	AgeRange         AgeRange  `json:"age_range"`
	Schedule         Schedule  `json:"schedule"`
	Capacity         int       `json:"capacity"`
	TutorID          string    `json:"tutor_id"`
	EnrolledStudents []string  `json:"enrolled_students"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"` // UTC
	UpdatedAt        time.Time `json:"updated_at"` // UTC
}

func (p *Program) EnrolledCount() int { return len(p.EnrolledStudents) }

func (p *Program) IsFull() bool { return len(p.EnrolledStudents) >= p.Capacity }

func (p *Program) IsEnrolled(studentID string) bool {
	for _, id := range p.EnrolledStudents {
		if id == studentID {
			return true
		}
	}
	return false
}

// NewProgram contains information needed to create a new Program.
type NewProgram struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description"`
	Category    string   `json:"category" validate:"required,category"`
	AgeRange    AgeRange `json:"age_range" validate:"required"`
	Schedule    Schedule `json:"schedule" validate:"required"`
	Capacity    int      `json:"capacity" validate:"required,min=1"`
	TutorID     string   `json:"tutor_id" validate:"omitempty"`
}

func (np *NewProgram) Validate(validate *validator.Validate, svc *Service) error {
	np.Name = core.CleanString(np.Name)
	np.Description = core.CleanString(np.Description)

	if err := validate.Struct(np); err != nil {
		return err
	}
	return svc.CheckNameUniqueness(np.Name)
}

// UpdateProgram defines what information may be provided to modify an existing Program.
// Zero-valued fields keep their current value; enrollment is never edited here.
type UpdateProgram struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category" validate:"omitempty,category"`
	AgeRange    *AgeRange `json:"age_range"`
	Schedule    *Schedule `json:"schedule"`
	Capacity    int       `json:"capacity" validate:"omitempty,min=1"`
	TutorID     string    `json:"tutor_id"`
	IsActive    *bool     `json:"is_active"`
}

func (up *UpdateProgram) Validate(validate *validator.Validate, orig Program, svc *Service) error {
	if name := core.CleanString(up.Name); name != "" {
		up.Name = name
	} else {
		up.Name = orig.Name
	}
	if up.Description == "" {
		up.Description = orig.Description
	}
	if up.Category == "" {
		up.Category = orig.Category
	}
	if up.AgeRange == nil {
		cp := orig.AgeRange
		up.AgeRange = &cp
	}
	if up.Schedule == nil {
		cp := orig.Schedule
		up.Schedule = &cp
	}
	if up.Capacity == 0 {
		up.Capacity = orig.Capacity
	}
	if up.TutorID == "" {
		up.TutorID = orig.TutorID
	}

	if err := validate.Struct(up); err != nil {
		return err
	}
	// a capacity reduction may not strand already-enrolled students
	if up.Capacity < orig.EnrolledCount() {
		return core.NewValidationError(nil, core.FieldError{
			Field: "capacity",
			Error: "capacity cannot be lower than the current number of enrolled students",
		})
	}
	return svc.CheckNameUniqueness(up.Name, orig)
}

type QueryFilter struct {
	Category     string `query:"category"`
	IsActive     *bool  `query:"isActive"`
	TutorID      string `query:"tutor"`
	Availability string `query:"availability"` // "available" | "full"
	Search       string `query:"search"`
	Limit        int    `query:"limit"`
	Page         int    `query:"page"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Availability = core.CleanString(qf.Availability, true /* lower */)
	if qf.Limit <= 0 || qf.Limit > 100 {
		qf.Limit = 20
	}
	if qf.Page <= 0 {
		qf.Page = 1
	}
}

// Stats is the aggregate program statistics payload; derived, read-only,
// recomputed on each call.
type Stats struct {
	TotalPrograms     int             `json:"total_programs"`
	ActivePrograms    int             `json:"active_programs"`
	TotalEnrollments  int             `json:"total_enrollments"`
	AverageEnrollment float64         `json:"average_enrollment"` // 1 decimal place
	FullPrograms      int             `json:"full_programs"`
	Categories        []CategoryStats `json:"categories"`
}

type CategoryStats struct {
	Category    string `json:"category"`
	Count       int    `json:"count"`
	Enrollments int    `json:"enrollments"`
}

var (
	categoryTag  = "category"
	categoryText = "invalid program category"
)

// InitValidators registers the program package's custom validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(categoryTag, categoryValidation)
	core.RegisterCustomTranslation(validate, translator, categoryTag, categoryText)
}

func categoryValidation(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	for _, c := range Categories {
		if c == val {
			return true
		}
	}
	return false
}
