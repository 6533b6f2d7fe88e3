package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/classmeasures/hub/core"
	"github.com/classmeasures/hub/core/student"
)

type studentDoc struct {
	ID               primitive.ObjectID       `bson:"_id,omitempty"`
	Name             string                   `bson:"name"`
	Age              int                      `bson:"age"`
	ParentID         primitive.ObjectID       `bson:"parent_id,omitempty"`
	Enrollments      []student.Enrollment     `bson:"enrollments"`
	EmergencyContact student.EmergencyContact `bson:"emergency_contact"`
	MembershipStatus string                   `bson:"membership_status"`
	PaymentStatus    string                   `bson:"payment_status"`
	IsActive         bool                     `bson:"is_active"`
	CreatedAt        time.Time                `bson:"created_at"`
	UpdatedAt        time.Time                `bson:"updated_at"`
}

func (d studentDoc) model() student.Student {
	var parentID string
	if !d.ParentID.IsZero() {
		parentID = d.ParentID.Hex()
	}
	enrollments := d.Enrollments
	if enrollments == nil {
		enrollments = []student.Enrollment{}
	}
	return student.Student{
		ID:               d.ID.Hex(),
		Name:             d.Name,
		Age:              d.Age,
		ParentID:         parentID,
		Enrollments:      enrollments,
		EmergencyContact: d.EmergencyContact,
		MembershipStatus: d.MembershipStatus,
		PaymentStatus:    d.PaymentStatus,
		IsActive:         d.IsActive,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

type studentRepository struct {
	coll *mongo.Collection
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{coll: db.db.Collection(studentsCollection)}
}

func (repo *studentRepository) CreateStudent(ctx context.Context, stu student.Student) (student.Student, error) {
	doc := studentDoc{
		Name:             stu.Name,
		Age:              stu.Age,
		Enrollments:      []student.Enrollment{},
		EmergencyContact: stu.EmergencyContact,
		MembershipStatus: stu.MembershipStatus,
		PaymentStatus:    stu.PaymentStatus,
		IsActive:         stu.IsActive,
		CreatedAt:        stu.CreatedAt,
		UpdatedAt:        stu.UpdatedAt,
	}
	if stu.ParentID != "" {
		oid, err := objectID(stu.ParentID, student.ErrParentNotFound)
		if err != nil {
			return student.Student{}, err
		}
		doc.ParentID = oid
	}

	res, err := repo.coll.InsertOne(ctx, doc)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	stu.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return stu, nil
}

func (repo *studentRepository) GetStudentByID(ctx context.Context, id string) (student.Student, error) {
	oid, err := objectID(id, student.ErrNotFound)
	if err != nil {
		return student.Student{}, err
	}
	var doc studentDoc
	if err := repo.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return student.Student{}, student.ErrNotFound
		}
		return student.Student{}, errors.Wrap(err, "finding student")
	}
	return doc.model(), nil
}

func (repo *studentRepository) FilterStudents(ctx context.Context, filter student.QueryFilter, ordering ...core.DBOrdering) ([]student.Student, error) {
	query := bson.M{}
	if filter.Search != "" {
		query["name"] = bson.M{"$regex": primitive.Regex{Pattern: regexQuote(filter.Search), Options: "i"}}
	}
	if filter.ParentID != "" {
		if oid, err := primitive.ObjectIDFromHex(filter.ParentID); err == nil {
			query["parent_id"] = oid
		}
	}
	if filter.Program != "" {
		query["enrollments"] = bson.M{"$elemMatch": bson.M{
			"program": filter.Program,
			"status":  student.EnrollmentActive,
		}}
	}
	if filter.IsActive != nil {
		query["is_active"] = *filter.IsActive
	} else {
		query["is_active"] = true // deactivated students excluded by default
	}

	cursor, err := repo.coll.Find(ctx, query, findOptions(ordering))
	if err != nil {
		return nil, errors.Wrap(err, "filtering students")
	}
	defer cursor.Close(ctx)

	students := make([]student.Student, 0)
	for cursor.Next(ctx) {
		var doc studentDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decoding student")
		}
		students = append(students, doc.model())
	}
	return students, errors.Wrap(cursor.Err(), "iterating students")
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, stu student.Student, isActive *bool) (student.Student, error) {
	oid, err := objectID(stu.ID, student.ErrNotFound)
	if err != nil {
		return student.Student{}, err
	}

	set := bson.M{"updated_at": stu.UpdatedAt}
	if stu.Name != "" {
		set["name"] = stu.Name
	}
	if stu.Age != 0 {
		set["age"] = stu.Age
	}
	if stu.ParentID != "" {
		parentOID, err := objectID(stu.ParentID, student.ErrParentNotFound)
		if err != nil {
			return student.Student{}, err
		}
		set["parent_id"] = parentOID
	}
	if stu.EmergencyContact != (student.EmergencyContact{}) {
		set["emergency_contact"] = stu.EmergencyContact
	}
	if stu.MembershipStatus != "" {
		set["membership_status"] = stu.MembershipStatus
	}
	if stu.PaymentStatus != "" {
		set["payment_status"] = stu.PaymentStatus
	}
	if isActive != nil {
		set["is_active"] = *isActive
	}

	var doc studentDoc
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := repo.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return student.Student{}, student.ErrNotFound
		}
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	return doc.model(), nil
}

func (repo *studentRepository) AppendEnrollment(ctx context.Context, studentID string, enr student.Enrollment) error {
	oid, err := objectID(studentID, student.ErrNotFound)
	if err != nil {
		return err
	}
	update := bson.M{
		"$push":        bson.M{"enrollments": enr},
		"$currentDate": bson.M{"updated_at": true},
	}
	res, err := repo.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return errors.Wrap(err, "appending enrollment")
	}
	if res.MatchedCount == 0 {
		return student.ErrNotFound
	}
	return nil
}

func (repo *studentRepository) SetEnrollmentStatus(ctx context.Context, studentID, programName, status string) error {
	oid, err := objectID(studentID, student.ErrNotFound)
	if err != nil {
		return err
	}
	update := bson.M{
		"$set":         bson.M{"enrollments.$[e].status": status},
		"$currentDate": bson.M{"updated_at": true},
	}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"e.program": programName}},
	})
	// no-op when no matching history record exists
	if _, err := repo.coll.UpdateOne(ctx, bson.M{"_id": oid}, update, opts); err != nil {
		return errors.Wrap(err, "setting enrollment status")
	}
	return nil
}
