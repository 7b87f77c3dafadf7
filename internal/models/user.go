package models

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID                   primitive.ObjectID   `bson:"_id,omitempty" json:"id,omitempty"`
	Email                string               `bson:"email" json:"email" validate:"required,email"`
	Name                 string               `bson:"name" json:"name" validate:"required"`
	Password             string               `bson:"password,omitempty" json:"-"`
	ResetPasswordToken   string               `bson:"resetPasswordToken,omitempty" json:"-"`
	ResetPasswordExpires time.Time            `bson:"resetPasswordExpires,omitempty" json:"-"`
	Hearts               []primitive.ObjectID `bson:"hearts" json:"hearts"`
	CreatedAt            time.Time            `bson:"created" json:"created"`
}

// Gravatar returns the avatar URL derived from the user's email.
func (u User) Gravatar() string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(u.Email))))
	return "https://gravatar.com/avatar/" + hex.EncodeToString(sum[:]) + "?s=200"
}

// HasHearted reports whether the store is in the user's hearts set.
func (u User) HasHearted(storeID primitive.ObjectID) bool {
	for _, id := range u.Hearts {
		if id == storeID {
			return true
		}
	}
	return false
}
