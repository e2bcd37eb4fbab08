package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/fanders/microfinance/pkg/auth"
)

// MethodRoles restricts the supervisory and field operations. Everything
// else is open to any authenticated user.
var MethodRoles = auth.MethodRoles{
	FullMethod("ApproveLoan"):            supervisors,
	FullMethod("MarkLoanDefaulted"):      supervisors,
	FullMethod("FinalizeBlotter"):        supervisors,
	FullMethod("RecalculateBlotters"):    {auth.RoleSuperAdmin, auth.RoleAdmin},
	FullMethod("CreateCollectionSheet"):  fieldStaff,
	FullMethod("AddSheetLoans"):          fieldStaff,
	FullMethod("RecordCollection"):       fieldStaff,
	FullMethod("SubmitCollectionSheet"):  fieldStaff,
	FullMethod("ApproveCollectionSheet"): supervisors,
}

var (
	supervisors = []string{auth.RoleSuperAdmin, auth.RoleAdmin, auth.RoleManager}
	fieldStaff  = []string{auth.RoleSuperAdmin, auth.RoleAdmin, auth.RoleManager, auth.RoleCashier, auth.RoleAccountOfficer}
)

// ServerOptions configures the optional parts of the server.
type ServerOptions struct {
	// Creds enables TLS when set.
	Creds      credentials.TransportCredentials
	Reflection bool
}

// Server wraps a gRPC server with the ledger handler registered.
type Server struct {
	gs     *grpclib.Server
	health *health.Server
	logger *slog.Logger
}

// NewServer creates and configures the gRPC server.
func NewServer(handler LedgerServiceServer, logger *slog.Logger, jwtService *auth.JWTService, opts ServerOptions) *Server {
	authInterceptor := auth.UnaryAuthInterceptor(jwtService, []string{
		"/grpc.health.v1.Health/Check",
		"/grpc.health.v1.Health/Watch",
	})

	serverOpts := []grpclib.ServerOption{
		grpclib.ChainUnaryInterceptor(
			loggingInterceptor(logger),
			authInterceptor,
			auth.UnaryRoleInterceptor(MethodRoles),
		),
	}
	if opts.Creds != nil {
		serverOpts = append(serverOpts, grpclib.Creds(opts.Creds))
		logger.Info("gRPC TLS enabled")
	} else {
		logger.Info("gRPC TLS not configured, running without TLS")
	}

	gs := grpclib.NewServer(serverOpts...)

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(gs, healthSrv)
	healthSrv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	if opts.Reflection {
		reflection.Register(gs)
	}

	RegisterLedgerServiceServer(gs, handler)

	return &Server{gs: gs, health: healthSrv, logger: logger}
}

// Serve starts the gRPC server on the specified address.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	s.logger.Info("gRPC server listening", "addr", addr)
	return s.gs.Serve(lis)
}

// GracefulStop marks the service not serving and drains in-flight calls.
func (s *Server) GracefulStop() {
	s.logger.Info("gRPC server shutting down")
	s.health.Shutdown()
	s.gs.GracefulStop()
}

// loggingInterceptor records every call with its outcome code.
func loggingInterceptor(logger *slog.Logger) grpclib.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpclib.UnaryServerInfo, handler grpclib.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		level := slog.LevelInfo
		if err != nil {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "grpc call",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}
