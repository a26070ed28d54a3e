package user

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	apperrors "user-doc-service/pkg/errors"
)

// NewID returns a fresh store identifier.
func NewID() primitive.ObjectID {
	return primitive.NewObjectID()
}

// ParseID parses a client supplied identifier.
// A malformed identifier yields a ValidationError.
func ParseID(s string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID, apperrors.NewValidationError("id",
			fmt.Sprintf("invalid user id %q: must be a 24 character hex string", s))
	}
	return id, nil
}
