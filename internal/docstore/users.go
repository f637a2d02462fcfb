package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"tesouraria/internal/auth"
)

type userDoc struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"passwordHash"`
	CreatedAt    time.Time `bson:"createdAt"`
}

// Users is the MongoDB auth.UserStore. Emails are stored lower-cased so the
// unique index compares them case-insensitively.
type Users struct {
	users DataStore
}

func NewUsers(provider CollectionProvider) *Users {
	return &Users{users: provider.Collection(UsersCollection)}
}

func (u *Users) CreateUser(ctx context.Context, user auth.User) error {
	_, err := u.users.InsertOne(ctx, userDoc{
		ID:           user.ID,
		Email:        strings.ToLower(user.Email),
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt.UTC(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return auth.ErrEmailInUse
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (u *Users) UserByEmail(ctx context.Context, email string) (auth.User, error) {
	var doc userDoc
	err := u.users.FindOne(ctx, bson.M{"email": strings.ToLower(email)}, &doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return auth.User{}, auth.ErrUserNotFound
	}
	if err != nil {
		return auth.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return auth.User{ID: doc.ID, Email: doc.Email, PasswordHash: doc.PasswordHash, CreatedAt: doc.CreatedAt}, nil
}

var _ auth.UserStore = (*Users)(nil)
