package student

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/classmeasures/hub/core"
)

// Enrollment history statuses.
const (
	EnrollmentActive   = "Active"
	EnrollmentInactive = "Inactive"
)

// DefaultLevel is the level a student starts a program at.
const DefaultLevel = "Beginner"

// Membership statuses.
const (
	MembershipActive    = "active"
	MembershipExpired   = "expired"
	MembershipCancelled = "cancelled"
)

// Payment statuses.
const (
	PaymentPaid    = "paid"
	PaymentPending = "pending"
	PaymentOverdue = "overdue"
)

// Enrollment is the history record linking a Student to a Program over time.
// Unenrolling flips Status to Inactive; records are never deleted.
type Enrollment struct {
	Program      string    `json:"program" bson:"program"` // program name
	Level        string    `json:"level" bson:"level"`
	EnrolledDate time.Time `json:"enrolled_date" bson:"enrolled_date"` // UTC
	Status       string    `json:"status" bson:"status"`
}

type EmergencyContact struct {
	Name         string `json:"name" bson:"name" validate:"omitempty"`
	Phone        string `json:"phone" bson:"phone" validate:"omitempty"`
	Relationship string `json:"relationship" bson:"relationship" validate:"omitempty"`
}

type Student struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Age              int              `json:"age"`
	ParentID         string           `json:"parent_id,omitempty"`
	Enrollments      []Enrollment     `json:"enrollments"`
	EmergencyContact EmergencyContact `json:"emergency_contact"`
	MembershipStatus string           `json:"membership_status"`
	PaymentStatus    string           `json:"payment_status"`
	IsActive         bool             `json:"is_active"`
	CreatedAt        time.Time        `json:"created_at"` // UTC
	UpdatedAt        time.Time        `json:"updated_at"` // UTC
}

// ActiveEnrollment returns the active history record for the named program, if any.
func (s *Student) ActiveEnrollment(programName string) (Enrollment, bool) {
	for _, e := range s.Enrollments {
		if e.Program == programName && e.Status == EnrollmentActive {
			return e, true
		}
	}
	return Enrollment{}, false
}

// NewStudent contains information needed to create a new Student.
type NewStudent struct {
	Name             string           `json:"name" validate:"required"`
	Age              int              `json:"age" validate:"required,min=4,max=18"`
	ParentID         string           `json:"parent_id" validate:"omitempty"`
	EmergencyContact EmergencyContact `json:"emergency_contact"`
	MembershipStatus string           `json:"membership_status" validate:"omitempty,oneof=active expired cancelled"`
	PaymentStatus    string           `json:"payment_status" validate:"omitempty,oneof=paid pending overdue"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	return validate.Struct(ns)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
type UpdateStudent struct {
	Name             string            `json:"name"`
	Age              int               `json:"age" validate:"omitempty,min=4,max=18"`
	ParentID         string            `json:"parent_id"`
	EmergencyContact *EmergencyContact `json:"emergency_contact"`
	MembershipStatus string            `json:"membership_status" validate:"omitempty,oneof=active expired cancelled"`
	PaymentStatus    string            `json:"payment_status" validate:"omitempty,oneof=paid pending overdue"`
	IsActive         *bool             `json:"is_active"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate, orig Student) error {
	if name := core.CleanString(us.Name); name != "" {
		us.Name = name
	} else {
		us.Name = orig.Name
	}
	if us.Age == 0 {
		us.Age = orig.Age
	}
	if us.ParentID == "" {
		us.ParentID = orig.ParentID
	}
	if us.EmergencyContact == nil {
		cp := orig.EmergencyContact
		us.EmergencyContact = &cp
	}
	if us.MembershipStatus == "" {
		us.MembershipStatus = orig.MembershipStatus
	}
	if us.PaymentStatus == "" {
		us.PaymentStatus = orig.PaymentStatus
	}
	return validate.Struct(us)
}

type QueryFilter struct {
	Search   string `query:"search"`
	ParentID string `query:"parent"`
	Program  string `query:"program"` // program name in enrollment history
	IsActive *bool  `query:"isActive"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
