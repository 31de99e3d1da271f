// Package data provides DB models and stores.
package data

import (
	"context"
	"errors"
	"time"

	"github.com/PaulBabatuyi/socialchat/internal/normalize"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

var (
	// ErrUserExists is returned when the email or username is already taken.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")
)

// UsersStore performs user DB operations.
type UsersStore struct {
	coll *mongo.Collection
}

// NewUsersStore returns a UsersStore using the provided collection.
func NewUsersStore(coll *mongo.Collection) *UsersStore {
	return &UsersStore{coll: coll}
}

// CreateUser inserts a new user document with an already-hashed password.
// Uniqueness of email and username is enforced by indexes.
func (u *UsersStore) CreateUser(ctx context.Context, username, email, hashedPassword string) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		Username:  username,
		Email:     normalize.Email(email), // stored normalized so lookups match regardless of case
		Password:  hashedPassword,         // already hashed by auth.HashPassword()
		CreatedAt: now,
		UpdatedAt: now, // initially same as CreatedAt
	}

	// InsertOne adds the document to the "users" collection
	result, err := u.coll.InsertOne(ctx, user)
	if err != nil {
		// Unique index on email or username was violated
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrUserExists
		}
		// Other database errors (connection, timeout, etc)
		return nil, err
	}

	// MongoDB generated the _id; it becomes the user id in JWT claims
	user.ID = result.InsertedID.(bson.ObjectID)
	return user, nil
}

// GetUserByEmail finds a user by email.
func (u *UsersStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	// {email: "..."} matches the normalized form written by CreateUser
	err := u.coll.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&user)
	if err != nil {
		// No document found: the email is not registered
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByID finds a user by ObjectID.
func (u *UsersStore) GetUserByID(ctx context.Context, id bson.ObjectID) (*User, error) {
	var user User
	// {_id: ObjectID(...)} is served by the primary key index
	err := u.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UserExists reports whether a user with the given hex id exists. Ids that
// are not valid ObjectIDs cannot exist and report false without a query.
func (u *UsersStore) UserExists(ctx context.Context, id string) (bool, error) {
	oid, err := bson.ObjectIDFromHex(normalize.ID(id))
	if err != nil {
		return false, nil
	}
	// CountDocuments is enough when only existence matters; no decoding needed
	count, err := u.coll.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, err
	}
	// At least one matching document means the user exists
	return count > 0, nil
}
