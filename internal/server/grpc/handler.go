package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const serviceName = "authkeeper.service.AuthKeeperService"

// Wire messages of AuthKeeperService, carried with the JSON codec.

type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutResponse struct{}

type RequestResetRequest struct {
	Email string `json:"email"`
}

type RequestResetResponse struct{}

type ResetPasswordRequest struct {
	ResetToken  string `json:"reset_token"`
	NewPassword string `json:"new_password"`
}

type ResetPasswordResponse struct{}

// AuthKeeperServiceServer is the server API of the credential service.
type AuthKeeperServiceServer interface {
	SignUp(ctx context.Context, req *SignUpRequest) (*AuthResponse, error)
	SignIn(ctx context.Context, req *SignInRequest) (*AuthResponse, error)
	Refresh(ctx context.Context, req *RefreshRequest) (*TokenPairResponse, error)
	Logout(ctx context.Context, req *LogoutRequest) (*LogoutResponse, error)
	RequestReset(ctx context.Context, req *RequestResetRequest) (*RequestResetResponse, error)
	ResetPassword(ctx context.Context, req *ResetPasswordRequest) (*ResetPasswordResponse, error)
}

var _ AuthKeeperServiceServer = (*GRPCServer)(nil)

func (s *GRPCServer) SignUp(ctx context.Context, req *SignUpRequest) (*AuthResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "email and password are required")
	}
	res, err := s.session.SignUp(ctx, req.Email, req.Password, req.Name)
	if err != nil {
		return nil, statusFromError(err)
	}
	return &AuthResponse{
		UserID:       res.User.ID,
		Email:        res.User.Email,
		Name:         res.User.Name,
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	}, nil
}

func (s *GRPCServer) SignIn(ctx context.Context, req *SignInRequest) (*AuthResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "email and password are required")
	}
	res, err := s.session.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return nil, statusFromError(err)
	}
	return &AuthResponse{
		UserID:       res.User.ID,
		Email:        res.User.Email,
		Name:         res.User.Name,
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	}, nil
}

func (s *GRPCServer) Refresh(ctx context.Context, req *RefreshRequest) (*TokenPairResponse, error) {
	if req.RefreshToken == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh_token is required")
	}
	pair, err := s.session.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return nil, statusFromError(err)
	}
	return &TokenPairResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

func (s *GRPCServer) Logout(ctx context.Context, req *LogoutRequest) (*LogoutResponse, error) {
	ownerID, ok := UserIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	if req.RefreshToken == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh_token is required")
	}
	if err := s.session.Logout(ctx, ownerID, req.RefreshToken); err != nil {
		return nil, statusFromError(err)
	}
	return &LogoutResponse{}, nil
}

func (s *GRPCServer) RequestReset(ctx context.Context, req *RequestResetRequest) (*RequestResetResponse, error) {
	if req.Email == "" {
		return nil, status.Error(codes.InvalidArgument, "email is required")
	}
	if err := s.reset.RequestReset(ctx, req.Email); err != nil {
		return nil, statusFromError(err)
	}
	return &RequestResetResponse{}, nil
}

func (s *GRPCServer) ResetPassword(ctx context.Context, req *ResetPasswordRequest) (*ResetPasswordResponse, error) {
	if req.ResetToken == "" || req.NewPassword == "" {
		return nil, status.Error(codes.InvalidArgument, "reset_token and new_password are required")
	}
	if err := s.reset.ResetPassword(ctx, req.ResetToken, req.NewPassword); err != nil {
		return nil, statusFromError(err)
	}
	return &ResetPasswordResponse{}, nil
}

// statusFromError converts the service-layer sentinel errors to gRPC
// status codes without leaking internal failure kinds.
func statusFromError(err error) error {
	switch {
	case errors.Is(err, common.ErrDuplicateUser):
		return status.Error(codes.AlreadyExists, "email already registered")
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrResetTokenInvalid):
		return status.Error(codes.InvalidArgument, "reset token invalid")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func signUpHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SignUpRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthKeeperServiceServer).SignUp(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/SignUp"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AuthKeeperServiceServer).SignUp(ctx, req.(*SignUpRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func signInHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SignInRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthKeeperServiceServer).SignIn(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/SignIn"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AuthKeeperServiceServer).SignIn(ctx, req.(*SignInRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func refreshHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RefreshRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthKeeperServiceServer).Refresh(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Refresh"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AuthKeeperServiceServer).Refresh(ctx, req.(*RefreshRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func logoutHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(LogoutRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthKeeperServiceServer).Logout(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Logout"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AuthKeeperServiceServer).Logout(ctx, req.(*LogoutRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func requestResetHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RequestResetRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthKeeperServiceServer).RequestReset(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/RequestReset"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AuthKeeperServiceServer).RequestReset(ctx, req.(*RequestResetRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func resetPasswordHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ResetPasswordRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthKeeperServiceServer).ResetPassword(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ResetPassword"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AuthKeeperServiceServer).ResetPassword(ctx, req.(*ResetPasswordRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var authKeeperServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*AuthKeeperServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SignUp", Handler: signUpHandler},
		{MethodName: "SignIn", Handler: signInHandler},
		{MethodName: "Refresh", Handler: refreshHandler},
		{MethodName: "Logout", Handler: logoutHandler},
		{MethodName: "RequestReset", Handler: requestResetHandler},
		{MethodName: "ResetPassword", Handler: resetPasswordHandler},
	},
	Streams: []grpc.StreamDesc{},
}
