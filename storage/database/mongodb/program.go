package mongodb

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/classmeasures/hub/core"
	"github.com/classmeasures/hub/core/program"
)

type programDoc struct {
	ID               primitive.ObjectID   `bson:"_id,omitempty"`
	Name             string               `bson:"name"`
	Description      string               `bson:"description,omitempty"`
	Category         string               `bson:"category"`
	AgeRange         program.AgeRange     `bson:"age_range"`
	Schedule         program.Schedule     `bson:"schedule"`
	Capacity         int                  `bson:"capacity"`
	TutorID          primitive.ObjectID   `bson:"tutor_id,omitempty"`
	EnrolledStudents []primitive.ObjectID `bson:"enrolled_students"`
	IsActive         bool                 `bson:"is_active"`
	CreatedAt        time.Time            `bson:"created_at"`
	UpdatedAt        time.Time            `bson:"updated_at"`
}

func (d programDoc) model() program.Program {
	enrolled := make([]string, len(d.EnrolledStudents))
	for i, oid := range d.EnrolledStudents {
		enrolled[i] = oid.Hex()
	}
	var tutorID string
	if !d.TutorID.IsZero() {
		tutorID = d.TutorID.Hex()
	}
	return program.Program{
		ID:               d.ID.Hex(),
		Name:             d.Name,
		Description:      d.Description,
		Category:         d.Category,
		AgeRange:         d.AgeRange,
		Schedule:         d.Schedule,
		Capacity:         d.Capacity,
		TutorID:          tutorID,
		EnrolledStudents: enrolled,
		IsActive:         d.IsActive,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

type programRepository struct {
	coll *mongo.Collection
}

var _ program.Repository = (*programRepository)(nil) // interface compliance check

func NewProgramRepository(db *DB) program.Repository {
	return &programRepository{coll: db.db.Collection(programsCollection)}
}

func (repo *programRepository) CheckNameUniqueness(ctx context.Context, name string, excludedPrograms ...program.Program) error {
	filter := bson.M{
		"name":      bson.M{"$regex": primitive.Regex{Pattern: "^" + regexQuote(name) + "$", Options: "i"}},
		"is_active": true,
	}
	exclIDs := make([]primitive.ObjectID, 0, len(excludedPrograms))
	for _, ex := range excludedPrograms {
		if oid, err := primitive.ObjectIDFromHex(ex.ID); err == nil {
			exclIDs = append(exclIDs, oid)
		}
	}
	if len(exclIDs) > 0 {
		filter["_id"] = bson.M{"$nin": exclIDs}
	}

	n, err := repo.coll.CountDocuments(ctx, filter)
	if err != nil {
		return errors.Wrap(err, "counting programs")
	}
	if n > 0 {
		return program.ErrNameExists
	}
	return nil
}

func (repo *programRepository) CreateProgram(ctx context.Context, prog program.Program) (program.Program, error) {
	doc := programDoc{
		Name:             prog.Name,
		Description:      prog.Description,
		Category:         prog.Category,
		AgeRange:         prog.AgeRange,
		Schedule:         prog.Schedule,
		Capacity:         prog.Capacity,
		EnrolledStudents: []primitive.ObjectID{},
		IsActive:         prog.IsActive,
		CreatedAt:        prog.CreatedAt,
		UpdatedAt:        prog.UpdatedAt,
	}
	if prog.TutorID != "" {
		oid, err := objectID(prog.TutorID, program.ErrNotFound)
		if err != nil {
			return program.Program{}, err
		}
		doc.TutorID = oid
	}

	res, err := repo.coll.InsertOne(ctx, doc)
	if err != nil {
		return program.Program{}, errors.Wrap(err, "inserting program")
	}
	prog.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return prog, nil
}

func (repo *programRepository) GetProgramByID(ctx context.Context, id string) (program.Program, error) {
	oid, err := objectID(id, program.ErrNotFound)
	if err != nil {
		return program.Program{}, err
	}
	var doc programDoc
	if err := repo.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return program.Program{}, program.ErrNotFound
		}
		return program.Program{}, errors.Wrap(err, "finding program")
	}
	return doc.model(), nil
}

func (repo *programRepository) FilterPrograms(ctx context.Context, filter program.QueryFilter, ordering ...core.DBOrdering) ([]program.Program, error) {
	query := bson.M{}
	if filter.IsActive != nil {
		query["is_active"] = *filter.IsActive
	} else {
		query["is_active"] = true // deactivated programs excluded by default
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.TutorID != "" {
		if oid, err := primitive.ObjectIDFromHex(filter.TutorID); err == nil {
			query["tutor_id"] = oid
		}
	}
	switch filter.Availability {
	case program.AvailabilityAvailable:
		query["$expr"] = bson.M{"$lt": bson.A{bson.M{"$size": "$enrolled_students"}, "$capacity"}}
	case program.AvailabilityFull:
		query["$expr"] = bson.M{"$gte": bson.A{bson.M{"$size": "$enrolled_students"}, "$capacity"}}
	}
	if filter.Search != "" {
		regex := bson.M{"$regex": primitive.Regex{Pattern: regexQuote(filter.Search), Options: "i"}}
		query["$or"] = bson.A{bson.M{"name": regex}, bson.M{"description": regex}}
	}

	opts := findOptions(ordering).
		SetSkip(int64((filter.Page - 1) * filter.Limit)).
		SetLimit(int64(filter.Limit))

	cursor, err := repo.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, errors.Wrap(err, "filtering programs")
	}
	defer cursor.Close(ctx)

	progs := make([]program.Program, 0)
	for cursor.Next(ctx) {
		var doc programDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decoding program")
		}
		progs = append(progs, doc.model())
	}
	return progs, errors.Wrap(cursor.Err(), "iterating programs")
}

func (repo *programRepository) UpdateProgram(ctx context.Context, prog program.Program, isActive *bool) (program.Program, error) {
	oid, err := objectID(prog.ID, program.ErrNotFound)
	if err != nil {
		return program.Program{}, err
	}

	set := bson.M{"updated_at": prog.UpdatedAt}
	if prog.Name != "" {
		set["name"] = prog.Name
	}
	if prog.Description != "" {
		set["description"] = prog.Description
	}
	if prog.Category != "" {
		set["category"] = prog.Category
	}
	if prog.AgeRange != (program.AgeRange{}) {
		set["age_range"] = prog.AgeRange
	}
	if prog.Schedule.Days != nil {
		set["schedule"] = prog.Schedule
	}
	if prog.Capacity != 0 {
		set["capacity"] = prog.Capacity
	}
	if prog.TutorID != "" {
		tutorOID, err := objectID(prog.TutorID, program.ErrNotFound)
		if err != nil {
			return program.Program{}, err
		}
		set["tutor_id"] = tutorOID
	}
	if isActive != nil {
		set["is_active"] = *isActive
	}

	var doc programDoc
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := repo.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return program.Program{}, program.ErrNotFound
		}
		return program.Program{}, errors.Wrap(err, "updating program")
	}
	return doc.model(), nil
}

// AppendEnrolledStudent pushes studentID onto the enrollment set; the filter
// re-checks active/membership/capacity at write time so the precondition and
// the append are one atomic step.
func (repo *programRepository) AppendEnrolledStudent(ctx context.Context, programID, studentID string) error {
	oid, err := objectID(programID, program.ErrNotFound)
	if err != nil {
		return err
	}
	soid, err := objectID(studentID, program.ErrEnrollmentNotCommitted)
	if err != nil {
		return err
	}

	filter := bson.M{
		"_id":               oid,
		"is_active":         true,
		"enrolled_students": bson.M{"$ne": soid},
		"$expr":             bson.M{"$lt": bson.A{bson.M{"$size": "$enrolled_students"}, "$capacity"}},
	}
	update := bson.M{
		"$push":        bson.M{"enrolled_students": soid},
		"$currentDate": bson.M{"updated_at": true},
	}
	res, err := repo.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return errors.Wrap(err, "appending enrolled student")
	}
	if res.MatchedCount == 0 {
		return program.ErrEnrollmentNotCommitted
	}
	return nil
}

func (repo *programRepository) RemoveEnrolledStudent(ctx context.Context, programID, studentID string) error {
	oid, err := objectID(programID, program.ErrNotFound)
	if err != nil {
		return err
	}
	soid, err := primitive.ObjectIDFromHex(studentID)
	if err != nil {
		return nil // nothing to pull
	}

	update := bson.M{
		"$pull":        bson.M{"enrolled_students": soid},
		"$currentDate": bson.M{"updated_at": true},
	}
	if _, err := repo.coll.UpdateOne(ctx, bson.M{"_id": oid}, update); err != nil {
		return errors.Wrap(err, "removing enrolled student")
	}
	return nil
}

func (repo *programRepository) ProgramStats(ctx context.Context) (program.Stats, error) {
	stats := program.Stats{Categories: []program.CategoryStats{}}

	// overall numbers
	overall := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":         nil,
			"total":       bson.M{"$sum": 1},
			"active":      bson.M{"$sum": bson.M{"$cond": bson.A{"$is_active", 1, 0}}},
			"enrollments": bson.M{"$sum": bson.M{"$size": "$enrolled_students"}},
			"full": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$gte": bson.A{bson.M{"$size": "$enrolled_students"}, "$capacity"}}, 1, 0,
			}}},
		}}},
	}
	cursor, err := repo.coll.Aggregate(ctx, overall)
	if err != nil {
		return program.Stats{}, errors.Wrap(err, "aggregating program stats")
	}
	defer cursor.Close(ctx)

	if cursor.Next(ctx) {
		var row struct {
			Total       int `bson:"total"`
			Active      int `bson:"active"`
			Enrollments int `bson:"enrollments"`
			Full        int `bson:"full"`
		}
		if err := cursor.Decode(&row); err != nil {
			return program.Stats{}, errors.Wrap(err, "decoding program stats")
		}
		stats.TotalPrograms = row.Total
		stats.ActivePrograms = row.Active
		stats.TotalEnrollments = row.Enrollments
		stats.FullPrograms = row.Full
		if row.Total > 0 {
			avg := float64(row.Enrollments) / float64(row.Total)
			stats.AverageEnrollment = math.Round(avg*10) / 10
		}
	}
	if err := cursor.Err(); err != nil {
		return program.Stats{}, errors.Wrap(err, "iterating program stats")
	}

	// category breakdown
	byCategory := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":         "$category",
			"count":       bson.M{"$sum": 1},
			"enrollments": bson.M{"$sum": bson.M{"$size": "$enrolled_students"}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	catCursor, err := repo.coll.Aggregate(ctx, byCategory)
	if err != nil {
		return program.Stats{}, errors.Wrap(err, "aggregating category stats")
	}
	defer catCursor.Close(ctx)

	for catCursor.Next(ctx) {
		var row struct {
			Category    string `bson:"_id"`
			Count       int    `bson:"count"`
			Enrollments int    `bson:"enrollments"`
		}
		if err := catCursor.Decode(&row); err != nil {
			return program.Stats{}, errors.Wrap(err, "decoding category stats")
		}
		stats.Categories = append(stats.Categories, program.CategoryStats{
			Category:    row.Category,
			Count:       row.Count,
			Enrollments: row.Enrollments,
		})
	}
	return stats, errors.Wrap(catCursor.Err(), "iterating category stats")
}
