// Package mongodb implements the repositories on MongoDB. Field-scoped
// updates and guarded conditional writes keep per-document mutations atomic;
// the multi-document enrollment commit runs in a session transaction.
package mongodb

import (
	"context"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/classmeasures/hub/core"
)

// collections
const (
	usersCollection      = "users"
	programsCollection   = "programs"
	studentsCollection   = "students"
	sessionsCollection   = "sessions"
	attendanceCollection = "attendance"
)

type DB struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ core.DB = (*DB)(nil)

func Open(ctx context.Context, conf *core.Config) (*DB, error) {
	opts := options.Client().
		ApplyURI(conf.Database.URI).
		SetConnectTimeout(conf.Database.Timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongodb")
	}
	if err := ping(ctx, client); err != nil {
		return nil, err
	}
	return &DB{client: client, db: client.Database(conf.Database.Name)}, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(ctx context.Context, client *mongo.Client) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = client.Ping(ctx, readpref.Primary())
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}
	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

func (d *DB) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

// WithTransaction runs fn inside a session transaction; repositories pick the
// session up from the context they are handed.
func (d *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := d.client.StartSession()
	if err != nil {
		return errors.Wrap(err, "starting session")
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	return err
}

// EnsureIndexes creates the indexes the repositories rely on:
// unique active program name, unique (session_id, student_id) attendance pair,
// unique user username/email.
func (d *DB) EnsureIndexes(ctx context.Context) error {
	progIdx := mongo.IndexModel{
		Keys: bson.D{{Key: "name", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"is_active": true}),
	}
	if _, err := d.db.Collection(programsCollection).Indexes().CreateOne(ctx, progIdx); err != nil {
		return errors.Wrap(err, "creating program name index")
	}

	attIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "session_id", Value: 1}, {Key: "student_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := d.db.Collection(attendanceCollection).Indexes().CreateOne(ctx, attIdx); err != nil {
		return errors.Wrap(err, "creating attendance index")
	}

	usrIdxs := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"username": bson.M{"$gt": ""}}),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"email": bson.M{"$gt": ""}}),
		},
	}
	if _, err := d.db.Collection(usersCollection).Indexes().CreateMany(ctx, usrIdxs); err != nil {
		return errors.Wrap(err, "creating user indexes")
	}
	return nil
}

// objectID parses a domain id; an unparseable id cannot match any document.
func objectID(id string, notFound error) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, notFound
	}
	return oid, nil
}

// regexQuote escapes user input destined for a $regex clause.
func regexQuote(s string) string {
	return regexp.QuoteMeta(s)
}

// rangeQuery builds a [$gte, $lte] filter; nil when both bounds are zero.
func rangeQuery(from, to time.Time) bson.M {
	if from.IsZero() && to.IsZero() {
		return nil
	}
	q := bson.M{}
	if !from.IsZero() {
		q["$gte"] = from
	}
	if !to.IsZero() {
		q["$lte"] = to
	}
	return q
}

func findOptions(ordering []core.DBOrdering) *options.FindOptions {
	opts := options.Find()
	if len(ordering) == 0 {
		return opts
	}
	sort := bson.D{}
	for _, ord := range ordering {
		direction := -1
		if ord.Ascending {
			direction = 1
		}
		sort = append(sort, bson.E{Key: ord.Field, Value: direction})
	}
	return opts.SetSort(sort)
}
