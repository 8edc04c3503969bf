package main

import (
	"fmt"
	"net"

	"serialpha/src/acquisition"
	pb "serialpha/src/grpc_control"
	"serialpha/src/logger"
	"serialpha/src/models"
	"serialpha/src/server"

	"google.golang.org/grpc"
)

// -----------------------------------------------------------------------------

// startServers orchestrates the startup of all server components
func startServers(
	srv *server.ControlServer,
	ctrl *acquisition.Controller,
	config *models.MConfig,
	appLogger *logger.Logger,
) *grpc.Server {

	// 1. REST + WebSocket control server
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Critical("Control server failed: %v", err)
		}
	}()

	// 2. gRPC Control Server
	addr := fmt.Sprintf("%s:%d", config.GrpcHost, config.GrpcPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		appLogger.Error("gRPC control disabled, failed to listen on %s: %v", addr, err)
		return nil
	}

	grpcServer := grpc.NewServer()
	controlService := pb.NewControlService(ctrl, logger.NewLogger(config, "ControlService"))
	pb.RegisterAcquisitionControlServer(grpcServer, controlService)

	go func() {
		appLogger.Info("Starting gRPC Control Server on %s", addr)
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Error("gRPC control server stopped: %v", err)
		}
	}()
	return grpcServer
}
