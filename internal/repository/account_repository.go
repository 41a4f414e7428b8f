package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/premiumpay/premium-pay-api/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("account not found")

// DuplicateKeyError reports a unique index violation. Field is empty when the
// index name could not be recovered from the server message.
type DuplicateKeyError struct {
	Field string
	Err   error
}

func (e *DuplicateKeyError) Error() string {
	if e.Field == "" {
		return "duplicate key"
	}
	return "duplicate key on " + e.Field
}

func (e *DuplicateKeyError) Unwrap() error {
	return e.Err
}

var dupIndexPattern = regexp.MustCompile(`index: (\w+?)_-?\d+`)

// AccountRepository stores one role's accounts in a single collection.
type AccountRepository struct {
	coll *mongo.Collection
}

func NewAccountRepository(db *mongo.Database, collection string) *AccountRepository {
	return &AccountRepository{coll: db.Collection(collection)}
}

// EnsureIndexes creates the unique indexes backing the uniqueness invariants.
func (r *AccountRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "loginName", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "phoneNumber", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("create indexes on %s: %w", r.coll.Name(), err)
	}
	return nil
}

func (r *AccountRepository) Insert(ctx context.Context, acc *models.Account) error {
	if acc.ID.IsZero() {
		acc.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	acc.CreatedAt = now
	acc.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, acc); err != nil {
		return translateWriteError(err)
	}
	return nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *AccountRepository) FindByLoginName(ctx context.Context, loginName string) (*models.Account, error) {
	return r.findOne(ctx, bson.M{"loginName": loginName})
}

func (r *AccountRepository) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"phoneNumber": phone}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count by phone: %w", err)
	}
	return n > 0, nil
}

// List returns every account, newest first. A non-empty role narrows the result.
func (r *AccountRepository) List(ctx context.Context, role string) ([]models.Account, error) {
	filter := bson.M{}
	if role != "" {
		filter["role"] = role
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.coll.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("find accounts: %w", err)
	}
	defer cursor.Close(ctx)

	accounts := make([]models.Account, 0)
	if err := cursor.All(ctx, &accounts); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}
	return accounts, nil
}

// UpdateDetails writes the editable fields of acc and bumps updatedAt.
// Credentials and the session id are left untouched so a concurrent login
// is never rolled back.
func (r *AccountRepository) UpdateDetails(ctx context.Context, acc *models.Account) error {
	acc.UpdatedAt = time.Now().UTC()

	set := bson.M{
		"fullName":    acc.FullName,
		"phoneNumber": acc.PhoneNumber,
		"email":       acc.Email,
		"imageUrl":    acc.ImageURL,
		"updatedAt":   acc.UpdatedAt,
	}
	if acc.BirthDate != nil {
		set["birthDate"] = acc.BirthDate
	}
	if acc.Gender != "" {
		set["gender"] = acc.Gender
	}
	if acc.Address != nil {
		set["address"] = acc.Address
	}
	if acc.Description != "" {
		set["description"] = acc.Description
	}

	result, err := r.coll.UpdateOne(ctx, bson.M{"_id": acc.ID}, bson.M{"$set": set})
	if err != nil {
		return translateWriteError(err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetSession records sessionID as the only valid session for the account.
func (r *AccountRepository) SetSession(ctx context.Context, id primitive.ObjectID, sessionID string) error {
	result, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"sessionId": sessionID}})
	if err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AccountRepository) findOne(ctx context.Context, filter bson.M) (*models.Account, error) {
	var acc models.Account
	err := r.coll.FindOne(ctx, filter).Decode(&acc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	return &acc, nil
}

func translateWriteError(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("write account: %w", err)
	}
	dup := &DuplicateKeyError{Err: err}
	if m := dupIndexPattern.FindStringSubmatch(err.Error()); m != nil {
		dup.Field = m[1]
	}
	return dup
}
