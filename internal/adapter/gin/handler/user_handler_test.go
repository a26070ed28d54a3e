package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	usecase "user-doc-service/internal/usecase/user"
	pkgerrors "user-doc-service/pkg/errors"
)

// MockUserUsecase is a mock implementation of user.Usecase
type MockUserUsecase struct {
	mock.Mock
}

func (m *MockUserUsecase) CreateUser(ctx context.Context, req usecase.CreateUserRequest) (*usecase.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.User), args.Error(1)
}

func (m *MockUserUsecase) ListUsers(ctx context.Context) (*usecase.ListUsersResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.ListUsersResponse), args.Error(1)
}

func (m *MockUserUsecase) GetUser(ctx context.Context, req usecase.GetUserRequest) (*usecase.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.User), args.Error(1)
}

func (m *MockUserUsecase) UpdateUser(ctx context.Context, req usecase.UpdateUserRequest) (*usecase.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.User), args.Error(1)
}

func (m *MockUserUsecase) DeleteUser(ctx context.Context, req usecase.DeleteUserRequest) (*usecase.DeleteUserResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.DeleteUserResponse), args.Error(1)
}

func (m *MockUserUsecase) AverageAge(ctx context.Context) (*usecase.AgeStatsResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.AgeStatsResponse), args.Error(1)
}

func (m *MockUserUsecase) FindNearby(ctx context.Context, req usecase.FindNearbyRequest) (*usecase.ListUsersResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.ListUsersResponse), args.Error(1)
}

const testID = "64b7f0c2a1b2c3d4e5f60718"

func setupTest(t *testing.T) (*gin.Engine, *MockUserUsecase) {
	gin.SetMode(gin.TestMode)
	mockUsecase := new(MockUserUsecase)
	h := NewUserHandler(mockUsecase, zaptest.NewLogger(t))

	r := gin.New()
	r.POST("/users", h.CreateUser)
	r.GET("/users", h.ListUsers)
	r.GET("/users/near", h.FindNearby)
	r.GET("/users/stats/age", h.AverageAge)
	r.GET("/users/:id", h.GetUser)
	r.PUT("/users/:id", h.UpdateUser)
	r.DELETE("/users/:id", h.DeleteUser)
	return r, mockUsecase
}

func do(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func TestCreateUser(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("CreateUser", mock.Anything, usecase.CreateUserRequest{
			Name:  "Aparna Ghose",
			Email: "aparna@example.com",
			Age:   intPtr(30),
			Address: &usecase.Address{
				Street:      "123 Main St",
				City:        "Metropolis",
				Coordinates: []float64{77.1234, 28.7041},
			},
		}).Return(&usecase.User{
			ID:    testID,
			Name:  "Aparna Ghose",
			Email: "aparna@example.com",
			Age:   intPtr(30),
			Address: &usecase.Address{
				Street:      "123 Main St",
				City:        "Metropolis",
				Coordinates: []float64{77.1234, 28.7041},
			},
		}, nil)

		w := do(r, http.MethodPost, "/users", `{
			"name": "Aparna Ghose",
			"email": "aparna@example.com",
			"age": 30,
			"address": {"street": "123 Main St", "city": "Metropolis", "coordinates": [77.1234, 28.7041]}
		}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.JSONEq(t, `{
			"id": "`+testID+`",
			"name": "Aparna Ghose",
			"email": "aparna@example.com",
			"age": 30,
			"address": {"street": "123 Main St", "city": "Metropolis", "coordinates": [77.1234, 28.7041]}
		}`, w.Body.String())
		mockUsecase.AssertExpectations(t)
	})

	t.Run("Malformed JSON", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		w := do(r, http.MethodPost, "/users", `{"name":`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "validation_error", resp.Error)
		mockUsecase.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
	})

	t.Run("Missing fields", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("CreateUser", mock.Anything, mock.Anything).
			Return(nil, pkgerrors.NewValidationError("", "Email is required"))

		w := do(r, http.MethodPost, "/users", map[string]string{"name": "No Email"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"validation_error","message":"validation failed: Email is required"}`, w.Body.String())
	})

	t.Run("Duplicate email", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("CreateUser", mock.Anything, mock.Anything).Return(nil, pkgerrors.ErrEmailExists)

		w := do(r, http.MethodPost, "/users", map[string]string{"name": "Sam", "email": "sam@example.com"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"already_exists","message":"email already exists"}`, w.Body.String())
	})
}

func TestListUsers(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("ListUsers", mock.Anything).Return(&usecase.ListUsersResponse{
			Users: []usecase.User{{ID: testID, Name: "John Doe", Email: "john@example.com"}},
		}, nil)

		w := do(r, http.MethodGet, "/users", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[{"id":"`+testID+`","name":"John Doe","email":"john@example.com"}]`, w.Body.String())
	})

	t.Run("Empty collection renders an empty array", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("ListUsers", mock.Anything).Return(&usecase.ListUsersResponse{Users: []usecase.User{}}, nil)

		w := do(r, http.MethodGet, "/users", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "[]", w.Body.String())
	})

	t.Run("Storage failure", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("ListUsers", mock.Anything).
			Return(nil, pkgerrors.NewInternalError("failed to list users", errors.New("connection refused")))

		w := do(r, http.MethodGet, "/users", nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"error":"internal_error","message":"An internal error occurred"}`, w.Body.String())
	})
}

func TestGetUser(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("GetUser", mock.Anything, usecase.GetUserRequest{ID: testID}).
			Return(&usecase.User{ID: testID, Name: "John Doe", Email: "john@example.com", Age: intPtr(25)}, nil)

		w := do(r, http.MethodGet, "/users/"+testID, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp UserResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, testID, resp.ID)
		assert.Equal(t, 25, *resp.Age)
		assert.Nil(t, resp.Address)
	})

	t.Run("Not found", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("GetUser", mock.Anything, mock.Anything).Return(nil, pkgerrors.ErrUserNotFound)

		w := do(r, http.MethodGet, "/users/"+testID, nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"not_found","message":"User not found"}`, w.Body.String())
	})

	t.Run("Malformed id", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("GetUser", mock.Anything, usecase.GetUserRequest{ID: "abc"}).
			Return(nil, pkgerrors.NewValidationError("id", `invalid user id "abc"`))

		w := do(r, http.MethodGet, "/users/abc", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `invalid user id`)
	})
}

func TestUpdateUser(t *testing.T) {
	t.Run("Only supplied fields are forwarded", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("UpdateUser", mock.Anything, usecase.UpdateUserRequest{ID: testID, Age: intPtr(29)}).
			Return(&usecase.User{ID: testID, Name: "Jane Doe", Email: "jane@example.com", Age: intPtr(29)}, nil)

		w := do(r, http.MethodPut, "/users/"+testID, `{"age":29}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"id":"`+testID+`","name":"Jane Doe","email":"jane@example.com","age":29}`, w.Body.String())
		mockUsecase.AssertExpectations(t)
	})

	t.Run("Address sub-fields", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("UpdateUser", mock.Anything, usecase.UpdateUserRequest{
			ID:      testID,
			Address: &usecase.AddressPatch{City: strPtr("Gotham")},
		}).Return(&usecase.User{ID: testID, Name: "Jane Doe", Email: "jane@example.com"}, nil)

		w := do(r, http.MethodPut, "/users/"+testID, `{"address":{"city":"Gotham"}}`)

		assert.Equal(t, http.StatusOK, w.Code)
		mockUsecase.AssertExpectations(t)
	})

	t.Run("Not found", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("UpdateUser", mock.Anything, mock.Anything).Return(nil, pkgerrors.ErrUserNotFound)

		w := do(r, http.MethodPut, "/users/"+testID, `{"age":29}`)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Missing body is an empty patch", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("UpdateUser", mock.Anything, usecase.UpdateUserRequest{ID: testID}).
			Return(&usecase.User{ID: testID, Name: "Jane Doe", Email: "jane@example.com"}, nil)

		w := do(r, http.MethodPut, "/users/"+testID, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"id":"`+testID+`","name":"Jane Doe","email":"jane@example.com"}`, w.Body.String())
		mockUsecase.AssertExpectations(t)
	})

	t.Run("Malformed body", func(t *testing.T) {
		r, mockUsecase := setupTest(t)

		w := do(r, http.MethodPut, "/users/"+testID, `{"age":"old"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockUsecase.AssertNotCalled(t, "UpdateUser", mock.Anything, mock.Anything)
	})
}

func TestDeleteUser(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("DeleteUser", mock.Anything, usecase.DeleteUserRequest{ID: testID}).
			Return(&usecase.DeleteUserResponse{ID: testID}, nil)

		w := do(r, http.MethodDelete, "/users/"+testID, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"message":"User deleted successfully"}`, w.Body.String())
	})

	t.Run("Not found", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("DeleteUser", mock.Anything, mock.Anything).Return(nil, pkgerrors.ErrUserNotFound)

		w := do(r, http.MethodDelete, "/users/"+testID, nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"not_found","message":"User not found"}`, w.Body.String())
	})
}

func TestAverageAge(t *testing.T) {
	t.Run("Mean age", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		avg := 27.5
		mockUsecase.On("AverageAge", mock.Anything).Return(&usecase.AgeStatsResponse{Users: 2, AverageAge: &avg}, nil)

		w := do(r, http.MethodGet, "/users/stats/age", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"users":2,"averageAge":27.5}`, w.Body.String())
	})

	t.Run("No ages renders null", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("AverageAge", mock.Anything).Return(&usecase.AgeStatsResponse{}, nil)

		w := do(r, http.MethodGet, "/users/stats/age", nil)

		assert.JSONEq(t, `{"users":0,"averageAge":null}`, w.Body.String())
	})
}

func TestFindNearby(t *testing.T) {
	t.Run("Default radius", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("FindNearby", mock.Anything, usecase.FindNearbyRequest{
			Longitude:   77.1234,
			Latitude:    28.7041,
			MaxDistance: 1000,
		}).Return(&usecase.ListUsersResponse{Users: []usecase.User{{ID: testID, Name: "Geo User"}}}, nil)

		w := do(r, http.MethodGet, "/users/near?lng=77.1234&lat=28.7041", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp []UserResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp, 1)
		assert.Equal(t, "Geo User", resp[0].Name)
		mockUsecase.AssertExpectations(t)
	})

	t.Run("Explicit radius", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("FindNearby", mock.Anything, usecase.FindNearbyRequest{Longitude: 1, Latitude: 2, MaxDistance: 50}).
			Return(&usecase.ListUsersResponse{Users: []usecase.User{}}, nil)

		w := do(r, http.MethodGet, "/users/near?lng=1&lat=2&maxDistance=50", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "[]", w.Body.String())
	})

	t.Run("Bad parameters", func(t *testing.T) {
		for _, q := range []string{"", "?lng=x&lat=1", "?lng=1", "?lng=1&lat=1&maxDistance=far"} {
			r, mockUsecase := setupTest(t)

			w := do(r, http.MethodGet, "/users/near"+q, nil)

			assert.Equal(t, http.StatusBadRequest, w.Code, q)
			mockUsecase.AssertNotCalled(t, "FindNearby", mock.Anything, mock.Anything)
		}
	})

	t.Run("Out of range", func(t *testing.T) {
		r, mockUsecase := setupTest(t)
		mockUsecase.On("FindNearby", mock.Anything, mock.Anything).
			Return(nil, pkgerrors.NewValidationError("", "longitude 200 out of range [-180, 180]"))

		w := do(r, http.MethodGet, "/users/near?lng=200&lat=0", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
