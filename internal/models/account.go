package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

type Address struct {
	Region      string `bson:"region" json:"region"`
	City        string `bson:"city" json:"city"`
	HomeAddress string `bson:"homeAddress" json:"homeAddress"`
}

// Account is the document stored in the users, admins and supers collections.
// The profile fields below Role are only populated for users.
type Account struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	LoginName         string             `bson:"loginName" json:"loginName"`
	LoginPasswordHash string             `bson:"loginPasswordHash" json:"-"`
	SessionID         string             `bson:"sessionId,omitempty" json:"-"`
	ImageURL          string             `bson:"imageUrl,omitempty" json:"imageUrl"`
	FullName          string             `bson:"fullName" json:"fullName"`
	PhoneNumber       string             `bson:"phoneNumber" json:"phoneNumber"`
	Email             string             `bson:"email" json:"email"`
	Role              string             `bson:"role" json:"role"`

	BirthDate   *time.Time `bson:"birthDate,omitempty" json:"birthDate,omitempty"`
	Gender      string     `bson:"gender,omitempty" json:"gender,omitempty"`
	Address     *Address   `bson:"address,omitempty" json:"address,omitempty"`
	Description string     `bson:"description,omitempty" json:"description,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Profile is the public subset returned on login.
type Profile struct {
	FullName string `json:"fullName"`
	ImageURL string `json:"imageUrl"`
	Role     string `json:"role"`
}

func (a *Account) Profile() Profile {
	return Profile{FullName: a.FullName, ImageURL: a.ImageURL, Role: a.Role}
}
