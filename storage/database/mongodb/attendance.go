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
	"github.com/classmeasures/hub/core/attendance"
)

type attendanceDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	SessionID primitive.ObjectID `bson:"session_id"`
	StudentID primitive.ObjectID `bson:"student_id"`
	Present   bool               `bson:"present"`
	Notes     string             `bson:"notes,omitempty"`
	MarkedBy  primitive.ObjectID `bson:"marked_by,omitempty"`
	MarkedAt  time.Time          `bson:"marked_at"`
}

func (d attendanceDoc) model() attendance.Attendance {
	var markedBy string
	if !d.MarkedBy.IsZero() {
		markedBy = d.MarkedBy.Hex()
	}
	return attendance.Attendance{
		ID:        d.ID.Hex(),
		SessionID: d.SessionID.Hex(),
		StudentID: d.StudentID.Hex(),
		Present:   d.Present,
		Notes:     d.Notes,
		MarkedBy:  markedBy,
		MarkedAt:  d.MarkedAt,
	}
}

type attendanceRepository struct {
	coll *mongo.Collection
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{coll: db.db.Collection(attendanceCollection)}
}

// UpsertAttendance writes the (session, student) record in a single upsert;
// the unique compound index keeps concurrent markers from creating duplicates.
func (repo *attendanceRepository) UpsertAttendance(ctx context.Context, att attendance.Attendance) (bool, error) {
	sessOID, err := objectID(att.SessionID, attendance.ErrNotFound)
	if err != nil {
		return false, err
	}
	stuOID, err := objectID(att.StudentID, attendance.ErrNotFound)
	if err != nil {
		return false, err
	}

	set := bson.M{
		"present":   att.Present,
		"notes":     att.Notes,
		"marked_at": att.MarkedAt,
	}
	if markedByOID, err := primitive.ObjectIDFromHex(att.MarkedBy); err == nil {
		set["marked_by"] = markedByOID
	}

	filter := bson.M{"session_id": sessOID, "student_id": stuOID}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": filter,
	}
	res, err := repo.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return false, errors.Wrap(err, "upserting attendance")
	}
	return res.UpsertedCount > 0, nil
}

func (repo *attendanceRepository) FilterAttendance(ctx context.Context, filter attendance.QueryFilter, ordering ...core.DBOrdering) ([]attendance.Attendance, error) {
	query := bson.M{}
	if filter.SessionID != "" {
		oid, err := objectID(filter.SessionID, attendance.ErrNotFound)
		if err != nil {
			return []attendance.Attendance{}, nil
		}
		query["session_id"] = oid
	}
	if filter.StudentID != "" {
		oid, err := objectID(filter.StudentID, attendance.ErrNotFound)
		if err != nil {
			return []attendance.Attendance{}, nil
		}
		query["student_id"] = oid
	}

	opts := findOptions(ordering)
	if len(ordering) == 0 {
		opts.SetSort(bson.D{{Key: "marked_at", Value: 1}})
	}

	cursor, err := repo.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, errors.Wrap(err, "filtering attendance")
	}
	defer cursor.Close(ctx)

	records := make([]attendance.Attendance, 0)
	for cursor.Next(ctx) {
		var doc attendanceDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decoding attendance")
		}
		records = append(records, doc.model())
	}
	return records, errors.Wrap(cursor.Err(), "iterating attendance")
}

// AttendanceReport joins attendance with sessions to bound records by session
// date, then groups per student; orphaned records whose session no longer
// resolves are dropped by the $unwind.
func (repo *attendanceRepository) AttendanceReport(ctx context.Context, filter attendance.ReportFilter) ([]attendance.StudentReport, error) {
	match := bson.M{}
	if filter.StudentID != "" {
		oid, err := objectID(filter.StudentID, attendance.ErrNotFound)
		if err != nil {
			return []attendance.StudentReport{}, nil
		}
		match["student_id"] = oid
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$lookup", Value: bson.M{
			"from":         sessionsCollection,
			"localField":   "session_id",
			"foreignField": "_id",
			"as":           "session",
		}}},
		{{Key: "$unwind", Value: "$session"}},
	}
	if dateRange := rangeQuery(filter.StartDate, filter.EndDate); dateRange != nil {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{"session.date": dateRange}}})
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$group", Value: bson.M{
			"_id":      "$student_id",
			"total":    bson.M{"$sum": 1},
			"attended": bson.M{"$sum": bson.M{"$cond": bson.A{"$present", 1, 0}}},
		}}},
		bson.D{{Key: "$lookup", Value: bson.M{
			"from":         studentsCollection,
			"localField":   "_id",
			"foreignField": "_id",
			"as":           "student",
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	)

	cursor, err := repo.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Wrap(err, "aggregating attendance report")
	}
	defer cursor.Close(ctx)

	rows := make([]attendance.StudentReport, 0)
	for cursor.Next(ctx) {
		var row struct {
			StudentID primitive.ObjectID `bson:"_id"`
			Total     int                `bson:"total"`
			Attended  int                `bson:"attended"`
			Student   []struct {
				Name string `bson:"name"`
			} `bson:"student"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, errors.Wrap(err, "decoding attendance report row")
		}
		report := attendance.StudentReport{
			StudentID:        row.StudentID.Hex(),
			TotalSessions:    row.Total,
			AttendedSessions: row.Attended,
		}
		if len(row.Student) > 0 {
			report.StudentName = row.Student[0].Name
		}
		rows = append(rows, report)
	}
	return rows, errors.Wrap(cursor.Err(), "iterating attendance report")
}
