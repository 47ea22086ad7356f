package repository

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/GTDGit/apparel_tracker/internal/models"
)

const usersCollection = "users"

// UserRepository handles data access for store users
type UserRepository struct {
	coll    *mongo.Collection
	timeout time.Duration
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *mongo.Database, timeout time.Duration) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection), timeout: timeout}
}

// UserProfileUpdate lists editable profile fields; nil pointers are left unchanged.
type UserProfileUpdate struct {
	FullName  *string
	StoreName *string
	Phone     *string
	Address   *string
	Settings  *models.StoreSettings
}

// Create inserts a user. An owner account gets OwnerID = ID.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if u.OwnerID.IsZero() {
		u.OwnerID = u.ID
	}
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	_, err := r.coll.InsertOne(ctx, u)
	return translate(err, "insert user")
}

// GetByID finds a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id}, "find user by id")
}

// GetByUsername finds a user by username, case-insensitively
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"username": strings.ToLower(strings.TrimSpace(username))}, "find user by username")
}

// UpdateLastLogin stamps the login time
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"lastLogin": at, "updatedAt": at}})
	return translate(err, "update last login")
}

// UpdateProfile applies the non-nil fields of u and returns the updated user
func (r *UserRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, u UserProfileUpdate) (*models.User, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	set := bson.M{"updatedAt": time.Now().UTC()}
	if u.FullName != nil {
		set["fullName"] = *u.FullName
	}
	if u.StoreName != nil {
		set["storeName"] = *u.StoreName
	}
	if u.Phone != nil {
		set["phone"] = *u.Phone
	}
	if u.Address != nil {
		set["address"] = *u.Address
	}
	if u.Settings != nil {
		set["settings"] = *u.Settings
	}

	var user models.User
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if err != nil {
		return nil, translate(err, "update user profile")
	}
	return &user, nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M, op string) (*models.User, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var u models.User
	if err := r.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, translate(err, op)
	}
	return &u, nil
}
