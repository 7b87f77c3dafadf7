package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Location is a GeoJSON point plus the human-readable address.
type Location struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates" validate:"required,len=2"`
	Address     string    `bson:"address" json:"address" validate:"required"`
}

type Store struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name        string             `bson:"name" json:"name" validate:"required"`
	Slug        string             `bson:"slug" json:"slug"`
	Description string             `bson:"description" json:"description"`
	Tags        []string           `bson:"tags" json:"tags"`
	CreatedAt   time.Time          `bson:"created" json:"created"`
	Location    Location           `bson:"location" json:"location"`
	Photo       string             `bson:"photo,omitempty" json:"photo,omitempty"`
	Author      primitive.ObjectID `bson:"author" json:"author"`

	// Populated on reads that join related documents.
	AuthorUser *User    `bson:"authorUser,omitempty" json:"authorUser,omitempty"`
	Reviews    []Review `bson:"reviews,omitempty" json:"reviews,omitempty"`
}

// TagCount is one row of the tag aggregation: a tag and how many stores carry it.
type TagCount struct {
	Tag   string `bson:"_id" json:"tag"`
	Count int    `bson:"count" json:"count"`
}

// TopStore is one row of the top-rated aggregation.
type TopStore struct {
	ID            primitive.ObjectID `bson:"_id" json:"id"`
	Name          string             `bson:"name" json:"name"`
	Slug          string             `bson:"slug" json:"slug"`
	Photo         string             `bson:"photo,omitempty" json:"photo,omitempty"`
	Reviews       []Review           `bson:"reviews" json:"reviews"`
	AverageRating float64            `bson:"averageRating" json:"averageRating"`
}

// StorePage is a page of the store listing along with pagination totals.
type StorePage struct {
	Stores []Store `json:"stores"`
	Page   int64   `json:"page"`
	Pages  int64   `json:"pages"`
	Count  int64   `json:"count"`
}
