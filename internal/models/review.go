package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Review struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Author    primitive.ObjectID `bson:"author" json:"author"`
	Store     primitive.ObjectID `bson:"store" json:"store"`
	Rating    int                `bson:"rating" json:"rating" validate:"required,min=1,max=5"`
	Text      string             `bson:"text" json:"text" validate:"required"`
	CreatedAt time.Time          `bson:"created" json:"created"`

	AuthorUser *User `bson:"authorUser,omitempty" json:"authorUser,omitempty"`
}
