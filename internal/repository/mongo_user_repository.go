package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/spot-sort/issue-service/internal/domain"
)

// Collection names shared by the Mongo repositories.
const (
	UsersCollection  = "users"
	IssuesCollection = "issues"
)

type userDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Name         string             `bson:"name"`
	Email        string             `bson:"email"`
	MobileNumber string             `bson:"mobileNumber"`
	Gender       string             `bson:"gender"`
	DateOfBirth  *time.Time         `bson:"dateOfBirth,omitempty"`
	Password     string             `bson:"password"`
	Role         string             `bson:"role"`
	Zone         string             `bson:"zone,omitempty"`
	Verified     bool               `bson:"verified"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
}

type mongoUserRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoUserRepository returns a MongoDB-backed implementation.
func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepository{coll: db.Collection(UsersCollection), now: time.Now}
}

func (r *mongoUserRepository) Create(ctx context.Context, user *domain.User) error {
	now := r.now().UTC()
	doc := toUserDocument(user)
	doc.ID = primitive.NewObjectID()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return translateMongoError(err)
	}
	user.ID = doc.ID.Hex()
	user.Email = doc.Email
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (r *mongoUserRepository) Update(ctx context.Context, user *domain.User) error {
	oid, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		return ErrNotFound
	}
	now := r.now().UTC()
	set := bson.M{
		"name":         user.Name,
		"email":        domain.NormalizeEmail(user.Email),
		"mobileNumber": user.MobileNumber,
		"gender":       string(user.Gender),
		"dateOfBirth":  user.DateOfBirth,
		"password":     user.PasswordHash,
		"role":         string(user.Role),
		"zone":         user.Zone,
		"verified":     user.Verified,
		"updatedAt":    now,
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return translateMongoError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	user.UpdatedAt = now
	return nil
}

func (r *mongoUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *mongoUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": domain.NormalizeEmail(email)})
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, translateMongoError(err)
	}
	return doc.toDomain(), nil
}

func toUserDocument(u *domain.User) userDocument {
	return userDocument{
		Name:         u.Name,
		Email:        domain.NormalizeEmail(u.Email),
		MobileNumber: u.MobileNumber,
		Gender:       string(u.Gender),
		DateOfBirth:  u.DateOfBirth,
		Password:     u.PasswordHash,
		Role:         string(u.Role),
		Zone:         u.Zone,
		Verified:     u.Verified,
	}
}

func (d userDocument) toDomain() *domain.User {
	return &domain.User{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		MobileNumber: d.MobileNumber,
		Gender:       domain.Gender(d.Gender),
		DateOfBirth:  d.DateOfBirth,
		PasswordHash: d.Password,
		Role:         domain.Role(d.Role),
		Zone:         d.Zone,
		Verified:     d.Verified,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func translateMongoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}
