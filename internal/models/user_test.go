package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestGravatarNormalizesEmail(t *testing.T) {
	a := User{Email: "wes@example.com"}.Gravatar()
	b := User{Email: "  WES@Example.COM "}.Gravatar()

	assert.Equal(t, a, b)
	assert.Contains(t, a, "https://gravatar.com/avatar/")
	assert.Contains(t, a, "?s=200")
}

func TestHasHearted(t *testing.T) {
	storeID := primitive.NewObjectID()
	user := User{Hearts: []primitive.ObjectID{storeID}}

	assert.True(t, user.HasHearted(storeID))
	assert.False(t, user.HasHearted(primitive.NewObjectID()))
}
