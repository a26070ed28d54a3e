package grpc

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"user-doc-service/internal/usecase/user"
	apperrors "user-doc-service/pkg/errors"
	"user-doc-service/pkg/logger"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "userdoc.v1.UserService"

// UserServiceAPI is the server side of userdoc.v1.UserService. Messages are
// protobuf well-known types so no generated stubs are needed.
type UserServiceAPI interface {
	CreateUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetUser(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ListUsers(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	UpdateUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteUser(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
}

// UserServiceServer implements the gRPC user service
type UserServiceServer struct {
	uc  user.Usecase
	log *zap.Logger
}

var _ UserServiceAPI = (*UserServiceServer)(nil)

// NewUserServiceServer creates a new gRPC user service server
func NewUserServiceServer(uc user.Usecase, log *zap.Logger) *UserServiceServer {
	return &UserServiceServer{uc: uc, log: log}
}

// Register attaches the user service to a gRPC server.
func Register(s grpc.ServiceRegistrar, srv UserServiceAPI) {
	s.RegisterService(&UserServiceDesc, srv)
}

type addressMessage struct {
	Street      *string   `json:"street"`
	City        *string   `json:"city"`
	Coordinates []float64 `json:"coordinates"`
}

type userMessage struct {
	ID      string          `json:"id"`
	Name    *string         `json:"name"`
	Email   *string         `json:"email"`
	Age     *int            `json:"age"`
	Address *addressMessage `json:"address"`
}

// decodeUser maps a Struct onto typed fields through its JSON form.
func decodeUser(s *structpb.Struct) (userMessage, error) {
	var m userMessage
	raw, err := protojson.Marshal(s)
	if err != nil {
		return m, apperrors.NewValidationError("", err.Error())
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return m, apperrors.NewValidationError("", err.Error())
	}
	return m, nil
}

// CreateUser handles gRPC CreateUser request
func (s *UserServiceServer) CreateUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	m, err := decodeUser(req)
	if err != nil {
		return nil, err
	}

	in := user.CreateUserRequest{Age: m.Age}
	if m.Name != nil {
		in.Name = *m.Name
	}
	if m.Email != nil {
		in.Email = *m.Email
	}
	if a := m.Address; a != nil {
		in.Address = &user.Address{Coordinates: a.Coordinates}
		if a.Street != nil {
			in.Address.Street = *a.Street
		}
		if a.City != nil {
			in.Address.City = *a.City
		}
	}

	u, err := s.uc.CreateUser(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.encodeUser(ctx, *u)
}

// GetUser handles gRPC GetUser request
func (s *UserServiceServer) GetUser(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	u, err := s.uc.GetUser(ctx, user.GetUserRequest{ID: req.GetValue()})
	if err != nil {
		return nil, err
	}
	return s.encodeUser(ctx, *u)
}

// ListUsers handles gRPC ListUsers request
func (s *UserServiceServer) ListUsers(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	resp, err := s.uc.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	values := make([]*structpb.Value, len(resp.Users))
	for i, u := range resp.Users {
		st, err := s.encodeUser(ctx, u)
		if err != nil {
			return nil, err
		}
		values[i] = structpb.NewStructValue(st)
	}
	return &structpb.ListValue{Values: values}, nil
}

// UpdateUser handles gRPC UpdateUser request. The id travels in the Struct.
func (s *UserServiceServer) UpdateUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	m, err := decodeUser(req)
	if err != nil {
		return nil, err
	}

	in := user.UpdateUserRequest{
		ID:    m.ID,
		Name:  m.Name,
		Email: m.Email,
		Age:   m.Age,
	}
	if a := m.Address; a != nil {
		in.Address = &user.AddressPatch{
			Street:      a.Street,
			City:        a.City,
			Coordinates: a.Coordinates,
		}
	}

	u, err := s.uc.UpdateUser(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.encodeUser(ctx, *u)
}

// DeleteUser handles gRPC DeleteUser request
func (s *UserServiceServer) DeleteUser(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if _, err := s.uc.DeleteUser(ctx, user.DeleteUserRequest{ID: req.GetValue()}); err != nil {
		return nil, err
	}
	return &emptypb.Empty{}, nil
}

func (s *UserServiceServer) encodeUser(ctx context.Context, u user.User) (*structpb.Struct, error) {
	fields := map[string]any{
		"id":    u.ID,
		"name":  u.Name,
		"email": u.Email,
	}
	if u.Age != nil {
		fields["age"] = *u.Age
	}
	if a := u.Address; a != nil {
		addr := map[string]any{"street": a.Street, "city": a.City}
		if len(a.Coordinates) > 0 {
			coords := make([]any, len(a.Coordinates))
			for i, c := range a.Coordinates {
				coords[i] = c
			}
			addr["coordinates"] = coords
		}
		fields["address"] = addr
	}

	st, err := structpb.NewStruct(fields)
	if err != nil {
		logger.WithContext(ctx, s.log).Error("failed to encode user", zap.String("id", u.ID), zap.Error(err))
		return nil, apperrors.NewInternalError("failed to encode user", err)
	}
	return st, nil
}

func _UserService_CreateUser_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(UserServiceAPI).CreateUser(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/CreateUser"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(UserServiceAPI).CreateUser(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _UserService_GetUser_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(UserServiceAPI).GetUser(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/GetUser"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(UserServiceAPI).GetUser(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _UserService_ListUsers_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(UserServiceAPI).ListUsers(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/ListUsers"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(UserServiceAPI).ListUsers(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _UserService_UpdateUser_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(UserServiceAPI).UpdateUser(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/UpdateUser"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(UserServiceAPI).UpdateUser(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _UserService_DeleteUser_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(UserServiceAPI).DeleteUser(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/DeleteUser"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(UserServiceAPI).DeleteUser(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// UserServiceDesc is the grpc.ServiceDesc for userdoc.v1.UserService.
var UserServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*UserServiceAPI)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateUser", Handler: _UserService_CreateUser_Handler},
		{MethodName: "GetUser", Handler: _UserService_GetUser_Handler},
		{MethodName: "ListUsers", Handler: _UserService_ListUsers_Handler},
		{MethodName: "UpdateUser", Handler: _UserService_UpdateUser_Handler},
		{MethodName: "DeleteUser", Handler: _UserService_DeleteUser_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "userdoc/v1/user_service",
}
