package user

import "go.mongodb.org/mongo-driver/bson/primitive"

// User represents a user document in the system.
type User struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`                    // ID is assigned by the store on creation
	Name    string             `bson:"name" json:"name"`                           // Name is the full name of the user
	Email   string             `bson:"email" json:"email"`                         // Email is unique across all users
	Age     *int               `bson:"age,omitempty" json:"age,omitempty"`         // Age is optional
	Address *Address           `bson:"address,omitempty" json:"address,omitempty"` // Address is optional
}

// Address is the nested postal address of a user.
type Address struct {
	Street      string       `bson:"street,omitempty" json:"street,omitempty"`
	City        string       `bson:"city,omitempty" json:"city,omitempty"`
	Coordinates *Coordinates `bson:"coordinates,omitempty" json:"coordinates,omitempty"`
}

// AgeStats is the result of the average age aggregation.
type AgeStats struct {
	Users      int64    // number of user documents
	AverageAge *float64 // mean over users that have an age, nil when none do
}
