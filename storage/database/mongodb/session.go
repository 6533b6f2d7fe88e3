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
	"github.com/classmeasures/hub/core/session"
)

type sessionDoc struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty"`
	ProgramID   primitive.ObjectID   `bson:"program_id"`
	TutorID     primitive.ObjectID   `bson:"tutor_id"`
	Date        time.Time            `bson:"date"`
	StartTime   string               `bson:"start_time"`
	EndTime     string               `bson:"end_time"`
	Students    []primitive.ObjectID `bson:"students"`
	Notes       string               `bson:"notes,omitempty"`
	Attachments []session.Attachment `bson:"attachments"`
	CreatedAt   time.Time            `bson:"created_at"`
	UpdatedAt   time.Time            `bson:"updated_at"`
}

func (d sessionDoc) model() session.Session {
	students := make([]string, len(d.Students))
	for i, oid := range d.Students {
		students[i] = oid.Hex()
	}
	attachments := d.Attachments
	if attachments == nil {
		attachments = []session.Attachment{}
	}
	return session.Session{
		ID:          d.ID.Hex(),
		ProgramID:   d.ProgramID.Hex(),
		TutorID:     d.TutorID.Hex(),
		Date:        d.Date,
		StartTime:   d.StartTime,
		EndTime:     d.EndTime,
		Students:    students,
		Notes:       d.Notes,
		Attachments: attachments,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type sessionRepository struct {
	coll *mongo.Collection
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) session.Repository {
	return &sessionRepository{coll: db.db.Collection(sessionsCollection)}
}

func (repo *sessionRepository) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	progOID, err := objectID(sess.ProgramID, session.ErrNotFound)
	if err != nil {
		return session.Session{}, err
	}
	tutorOID, err := objectID(sess.TutorID, session.ErrNotFound)
	if err != nil {
		return session.Session{}, err
	}
	students := make([]primitive.ObjectID, 0, len(sess.Students))
	for _, id := range sess.Students {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		students = append(students, oid)
	}

	doc := sessionDoc{
		ProgramID:   progOID,
		TutorID:     tutorOID,
		Date:        sess.Date,
		StartTime:   sess.StartTime,
		EndTime:     sess.EndTime,
		Students:    students,
		Notes:       sess.Notes,
		Attachments: sess.Attachments,
		CreatedAt:   sess.CreatedAt,
		UpdatedAt:   sess.UpdatedAt,
	}
	res, err := repo.coll.InsertOne(ctx, doc)
	if err != nil {
		return session.Session{}, errors.Wrap(err, "inserting session")
	}
	sess.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return sess, nil
}

func (repo *sessionRepository) GetSessionByID(ctx context.Context, id string) (session.Session, error) {
	oid, err := objectID(id, session.ErrNotFound)
	if err != nil {
		return session.Session{}, err
	}
	var doc sessionDoc
	if err := repo.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, errors.Wrap(err, "finding session")
	}
	return doc.model(), nil
}

func (repo *sessionRepository) FilterSessions(ctx context.Context, filter session.QueryFilter, ordering ...core.DBOrdering) ([]session.Session, error) {
	query := bson.M{}
	if filter.ProgramID != "" {
		if oid, err := primitive.ObjectIDFromHex(filter.ProgramID); err == nil {
			query["program_id"] = oid
		}
	}
	if filter.TutorID != "" {
		if oid, err := primitive.ObjectIDFromHex(filter.TutorID); err == nil {
			query["tutor_id"] = oid
		}
	}
	if dateRange := rangeQuery(filter.DateFrom, filter.DateTo); dateRange != nil {
		query["date"] = dateRange
	}

	opts := findOptions(ordering)
	if len(ordering) == 0 {
		opts.SetSort(bson.D{{Key: "date", Value: 1}})
	}

	cursor, err := repo.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, errors.Wrap(err, "filtering sessions")
	}
	defer cursor.Close(ctx)

	sessions := make([]session.Session, 0)
	for cursor.Next(ctx) {
		var doc sessionDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decoding session")
		}
		sessions = append(sessions, doc.model())
	}
	return sessions, errors.Wrap(cursor.Err(), "iterating sessions")
}

func (repo *sessionRepository) UpdateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	oid, err := objectID(sess.ID, session.ErrNotFound)
	if err != nil {
		return session.Session{}, err
	}

	// the student snapshot and scheduling identity are immutable
	set := bson.M{
		"notes":       sess.Notes,
		"start_time":  sess.StartTime,
		"end_time":    sess.EndTime,
		"attachments": sess.Attachments,
		"updated_at":  sess.UpdatedAt,
	}

	var doc sessionDoc
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := repo.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, errors.Wrap(err, "updating session")
	}
	return doc.model(), nil
}
