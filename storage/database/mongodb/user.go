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
	"github.com/classmeasures/hub/core/user"
)

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Name         string             `bson:"name"`
	Username     string             `bson:"username"`
	Email        string             `bson:"email"`
	PhoneNumber  string             `bson:"phone_number,omitempty"`
	IsActive     bool               `bson:"is_active"`
	Roles        []string           `bson:"roles"`
	PasswordHash []byte             `bson:"password_hash"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
	LastLogin    time.Time          `bson:"last_login,omitempty"`
}

func (d userDoc) model() user.User {
	return user.User{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Username:     d.Username,
		Email:        d.Email,
		PhoneNumber:  d.PhoneNumber,
		IsActive:     d.IsActive,
		Roles:        d.Roles,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
		LastLogin:    d.LastLogin,
	}
}

type userRepository struct {
	coll *mongo.Collection
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{coll: db.db.Collection(usersCollection)}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	exclIDs := make([]primitive.ObjectID, 0, len(excludedUsers))
	for _, ex := range excludedUsers {
		if oid, err := primitive.ObjectIDFromHex(ex.ID); err == nil {
			exclIDs = append(exclIDs, oid)
		}
	}

	check := func(field, value string, resErr error) error {
		if value == "" {
			return nil
		}
		filter := bson.M{field: value}
		if len(exclIDs) > 0 {
			filter["_id"] = bson.M{"$nin": exclIDs}
		}
		n, err := repo.coll.CountDocuments(ctx, filter)
		if err != nil {
			return errors.Wrap(err, "counting users")
		}
		if n > 0 {
			return resErr
		}
		return nil
	}

	if err := check("username", username, user.ErrUsernameExists); err != nil {
		return err
	}
	return check("email", email, user.ErrEmailExists)
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	doc := userDoc{
		Name:         usr.Name,
		Username:     usr.Username,
		Email:        usr.Email,
		PhoneNumber:  usr.PhoneNumber,
		IsActive:     usr.IsActive,
		Roles:        usr.Roles,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt,
		UpdatedAt:    usr.UpdatedAt,
	}
	res, err := repo.coll.InsertOne(ctx, doc)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	usr.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return usr, nil
}

func (repo *userRepository) getOne(ctx context.Context, filter bson.M) (user.User, error) {
	var doc userDoc
	if err := repo.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "finding user")
	}
	return doc.model(), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	oid, err := objectID(id, user.ErrNotFound)
	if err != nil {
		return user.User{}, err
	}
	return repo.getOne(ctx, bson.M{"_id": oid})
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	if email == "" {
		return user.User{}, user.ErrNotFound
	}
	return repo.getOne(ctx, bson.M{"email": email})
}

func (repo *userRepository) GetUserByUsernameOrEmail(ctx context.Context, uname string) (user.User, error) {
	if uname == "" {
		return user.User{}, user.ErrNotFound
	}
	return repo.getOne(ctx, bson.M{"$or": bson.A{bson.M{"username": uname}, bson.M{"email": uname}}})
}

func (repo *userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	query := bson.M{}
	if filter.Search != "" {
		regex := bson.M{"$regex": primitive.Regex{Pattern: regexQuote(filter.Search), Options: "i"}}
		query["$or"] = bson.A{bson.M{"name": regex}, bson.M{"username": regex}, bson.M{"email": regex}}
	}
	if filter.Roles != nil {
		query["roles"] = bson.M{"$in": filter.Roles}
	}
	if filter.IsActive != nil {
		query["is_active"] = *filter.IsActive
	}
	if dateRange := rangeQuery(filter.CreatedFrom, filter.CreatedTo); dateRange != nil {
		query["created_at"] = dateRange
	}

	cursor, err := repo.coll.Find(ctx, query, findOptions(ordering))
	if err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	defer cursor.Close(ctx)

	users := make([]user.User, 0)
	for cursor.Next(ctx) {
		var doc userDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decoding user")
		}
		users = append(users, doc.model())
	}
	return users, errors.Wrap(cursor.Err(), "iterating users")
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	oid, err := objectID(usr.ID, user.ErrNotFound)
	if err != nil {
		return user.User{}, err
	}

	set := bson.M{"updated_at": usr.UpdatedAt}
	if usr.Name != "" {
		set["name"] = usr.Name
	}
	if usr.Username != "" {
		set["username"] = usr.Username
	}
	if usr.Email != "" {
		set["email"] = usr.Email
	}
	if usr.PhoneNumber != "" {
		set["phone_number"] = usr.PhoneNumber
	}
	if usr.Roles != nil {
		set["roles"] = usr.Roles
	}
	if usr.PasswordHash != nil {
		set["password_hash"] = usr.PasswordHash
	}
	if isActive != nil {
		set["is_active"] = *isActive
	}

	var doc userDoc
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := repo.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return doc.model(), nil
}

func (repo *userRepository) SetLastLogin(ctx context.Context, id string, t time.Time) error {
	oid, err := objectID(id, user.ErrNotFound)
	if err != nil {
		return err
	}
	res, err := repo.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"last_login": t}})
	if err != nil {
		return errors.Wrap(err, "setting last_login")
	}
	if res.MatchedCount == 0 {
		return user.ErrNotFound
	}
	return nil
}
