package user

// Address represents the nested address in requests and responses.
type Address struct {
	Street      string
	City        string
	Coordinates []float64 `validate:"omitempty,len=2"`
}

// CreateUserRequest represents the request payload for creating a new user.
type CreateUserRequest struct {
	Name    string `validate:"required"`
	Email   string `validate:"required"`
	Age     *int
	Address *Address
}

// UpdateUserRequest represents a partial update. Nil fields are left untouched.
type UpdateUserRequest struct {
	ID      string
	Name    *string `validate:"omitnil,min=1"`
	Email   *string `validate:"omitnil,min=1"`
	Age     *int
	Address *AddressPatch
}

// AddressPatch carries the nested address fields of a partial update.
type AddressPatch struct {
	Street      *string
	City        *string
	Coordinates []float64 `validate:"omitempty,len=2"`
}

// GetUserRequest represents the request payload for retrieving a user.
type GetUserRequest struct {
	ID string
}

// DeleteUserRequest represents the request payload for deleting a user.
type DeleteUserRequest struct {
	ID string
}

// DeleteUserResponse represents the response payload after deleting a user.
type DeleteUserResponse struct {
	ID string
}

// ListUsersResponse represents every stored user in storage order.
type ListUsersResponse struct {
	Users []User
}

// FindNearbyRequest represents a proximity search around a point.
type FindNearbyRequest struct {
	Longitude   float64
	Latitude    float64
	MaxDistance float64 // meters
}

// AgeStatsResponse represents the result of the average age aggregation.
type AgeStatsResponse struct {
	Users      int64
	AverageAge *float64
}

// User represents a user DTO (Data Transfer Object) for API responses.
type User struct {
	ID      string
	Name    string
	Email   string
	Age     *int
	Address *Address
}
