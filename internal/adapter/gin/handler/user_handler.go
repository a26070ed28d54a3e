package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domain "user-doc-service/internal/domain/user"
	"user-doc-service/internal/usecase/user"
	apperrors "user-doc-service/pkg/errors"
	"user-doc-service/pkg/logger"
)

// UserHandler handles HTTP requests for user operations
type UserHandler struct {
	uc  user.Usecase
	log *zap.Logger
}

// NewUserHandler creates a new UserHandler instance
func NewUserHandler(uc user.Usecase, log *zap.Logger) *UserHandler {
	return &UserHandler{
		uc:  uc,
		log: log,
	}
}

// AddressBody is the nested address of a user in request and response bodies
type AddressBody struct {
	Street      string    `json:"street,omitempty"`
	City        string    `json:"city,omitempty"`
	Coordinates []float64 `json:"coordinates,omitempty"`
}

// CreateUserRequest represents the HTTP request body for creating a user
type CreateUserRequest struct {
	Name    string       `json:"name"`
	Email   string       `json:"email"`
	Age     *int         `json:"age,omitempty"`
	Address *AddressBody `json:"address,omitempty"`
}

// AddressPatchBody carries the address fields of a partial update
type AddressPatchBody struct {
	Street      *string   `json:"street"`
	City        *string   `json:"city"`
	Coordinates []float64 `json:"coordinates"`
}

// UpdateUserRequest represents the HTTP request body for updating a user.
// Absent fields are left untouched.
type UpdateUserRequest struct {
	Name    *string           `json:"name"`
	Email   *string           `json:"email"`
	Age     *int              `json:"age"`
	Address *AddressPatchBody `json:"address"`
}

// UserResponse represents the HTTP response for user data
type UserResponse struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Email   string       `json:"email"`
	Age     *int         `json:"age,omitempty"`
	Address *AddressBody `json:"address,omitempty"`
}

// AgeStatsResponse represents the HTTP response of the average age aggregation
type AgeStatsResponse struct {
	Users      int64    `json:"users"`
	AverageAge *float64 `json:"averageAge"`
}

// MessageResponse represents a bare confirmation message
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// CreateUser handles POST /users
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid create user body", err)
		return
	}

	in := user.CreateUserRequest{
		Name:  req.Name,
		Email: req.Email,
		Age:   req.Age,
	}
	if req.Address != nil {
		in.Address = &user.Address{
			Street:      req.Address.Street,
			City:        req.Address.City,
			Coordinates: req.Address.Coordinates,
		}
	}

	resp, err := h.uc.CreateUser(c.Request.Context(), in)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toUserResponse(*resp))
}

// ListUsers handles GET /users
func (h *UserHandler) ListUsers(c *gin.Context) {
	resp, err := h.uc.ListUsers(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponses(resp.Users))
}

// GetUser handles GET /users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	resp, err := h.uc.GetUser(c.Request.Context(), user.GetUserRequest{ID: c.Param("id")})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(*resp))
}

// UpdateUser handles PUT /users/:id
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req UpdateUserRequest
	// A missing body is an empty patch.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.badRequest(c, "invalid update user body", err)
		return
	}

	in := user.UpdateUserRequest{
		ID:    c.Param("id"),
		Name:  req.Name,
		Email: req.Email,
		Age:   req.Age,
	}
	if req.Address != nil {
		in.Address = &user.AddressPatch{
			Street:      req.Address.Street,
			City:        req.Address.City,
			Coordinates: req.Address.Coordinates,
		}
	}

	resp, err := h.uc.UpdateUser(c.Request.Context(), in)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(*resp))
}

// DeleteUser handles DELETE /users/:id
func (h *UserHandler) DeleteUser(c *gin.Context) {
	if _, err := h.uc.DeleteUser(c.Request.Context(), user.DeleteUserRequest{ID: c.Param("id")}); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "User deleted successfully"})
}

// AverageAge handles GET /users/stats/age
func (h *UserHandler) AverageAge(c *gin.Context) {
	resp, err := h.uc.AverageAge(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, AgeStatsResponse{Users: resp.Users, AverageAge: resp.AverageAge})
}

// FindNearby handles GET /users/near?lng=&lat=&maxDistance=
func (h *UserHandler) FindNearby(c *gin.Context) {
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		h.badRequest(c, "invalid lng", apperrors.NewValidationError("lng", "must be a number"))
		return
	}
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		h.badRequest(c, "invalid lat", apperrors.NewValidationError("lat", "must be a number"))
		return
	}
	maxDistance := domain.DefaultMaxDistance
	if raw := c.Query("maxDistance"); raw != "" {
		maxDistance, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			h.badRequest(c, "invalid maxDistance", apperrors.NewValidationError("maxDistance", "must be a number"))
			return
		}
	}

	resp, err := h.uc.FindNearby(c.Request.Context(), user.FindNearbyRequest{
		Longitude:   lng,
		Latitude:    lat,
		MaxDistance: maxDistance,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponses(resp.Users))
}

func (h *UserHandler) badRequest(c *gin.Context, msg string, err error) {
	logger.WithContext(c.Request.Context(), h.log).Warn(msg, zap.Error(err))
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   apperrors.KindValidation.String(),
		Message: err.Error(),
	})
}

// handleError converts usecase errors to HTTP responses by error kind.
// A duplicate email is a constraint failure on the request and maps to 400.
func (h *UserHandler) handleError(c *gin.Context, err error) {
	_ = c.Error(err)

	kind := apperrors.KindOf(err)
	switch kind {
	case apperrors.KindValidation, apperrors.KindConflict:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: kind.String(), Message: err.Error()})
	case apperrors.KindNotFound:
		c.JSON(http.StatusNotFound, ErrorResponse{Error: kind.String(), Message: "User not found"})
	default:
		logger.WithContext(c.Request.Context(), h.log).Error("request failed",
			zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   apperrors.KindInternal.String(),
			Message: "An internal error occurred",
		})
	}
}

func toUserResponse(u user.User) UserResponse {
	resp := UserResponse{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Age:   u.Age,
	}
	if u.Address != nil {
		resp.Address = &AddressBody{
			Street:      u.Address.Street,
			City:        u.Address.City,
			Coordinates: u.Address.Coordinates,
		}
	}
	return resp
}

func toUserResponses(users []user.User) []UserResponse {
	out := make([]UserResponse, len(users))
	for i, u := range users {
		out[i] = toUserResponse(u)
	}
	return out
}
