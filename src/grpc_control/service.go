package grpc_control

import (
	"context"
	"encoding/json"
	"strconv"

	"serialpha/src/acquisition"
	"serialpha/src/export"
	"serialpha/src/helpers"
	"serialpha/src/logger"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ControlService implements AcquisitionControlServer on top of the controller.
type ControlService struct {
	Controller *acquisition.Controller
	Logger     *logger.Logger
}

// NewControlService creates a new instance of ControlService
func NewControlService(ctrl *acquisition.Controller, log *logger.Logger) *ControlService {
	return &ControlService{
		Controller: ctrl,
		Logger:     log,
	}
}

// -----------------------------------------------------------------------------

func (s *ControlService) GetStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(s.Controller.State(acquisition.TypeUpdate, ""))
}

// -----------------------------------------------------------------------------

func (s *ControlService) ListProfiles(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	profiles, selected := s.Controller.Profiles()
	return toStruct(map[string]interface{}{
		"profiles": profiles,
		"selected": selected,
	})
}

// -----------------------------------------------------------------------------

func (s *ControlService) SelectProfile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	v, ok := req.GetFields()["index"]
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "index is required")
	}
	index := int(v.GetNumberValue())
	if err := s.Controller.SelectProfile(index); err != nil {
		return nil, s.toStatus("SelectProfile", err)
	}
	return s.ListProfiles(ctx, &emptypb.Empty{})
}

// -----------------------------------------------------------------------------

func (s *ControlService) Connect(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	conn := acquisition.ConnectRequest{
		Port:          stringField(req, "port"),
		IntervalValue: stringField(req, "interval_value"),
		IntervalUnit:  stringField(req, "interval_unit"),
	}
	if conn.IntervalValue == "" {
		return nil, status.Error(codes.InvalidArgument, "interval_value is required")
	}
	if err := s.Controller.Connect(ctx, conn); err != nil {
		return nil, s.toStatus("Connect", err)
	}
	s.Logger.Info("gRPC: connected every %s %s", conn.IntervalValue, conn.IntervalUnit)
	return s.GetStatus(ctx, &emptypb.Empty{})
}

// -----------------------------------------------------------------------------

func (s *ControlService) Disconnect(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.Controller.Disconnect(); err != nil {
		return nil, s.toStatus("Disconnect", err)
	}
	return s.GetStatus(ctx, req)
}

// -----------------------------------------------------------------------------

func (s *ControlService) AddPoint(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	row, err := s.Controller.AddTitrationPoint(stringField(req, "volume"))
	if err != nil {
		return nil, s.toStatus("AddPoint", err)
	}
	return toStruct(row)
}

// -----------------------------------------------------------------------------

func (s *ControlService) ExportNow(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	paths, err := s.Controller.ExportNow(export.PrefixManual)
	if err != nil {
		return nil, s.toStatus("ExportNow", err)
	}
	if paths == nil {
		paths = []string{}
	}
	return toStruct(map[string]interface{}{"files": paths})
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func (s *ControlService) toStatus(method string, err error) error {
	switch {
	case helpers.IsConfigurationError(err):
		return status.Error(codes.FailedPrecondition, err.Error())
	case helpers.IsHardTransportError(err):
		return status.Error(codes.Unavailable, err.Error())
	default:
		s.Logger.Error("gRPC: %s failed: %v", method, err)
		return status.Error(codes.Internal, err.Error())
	}
}

// toStruct converts any JSON-encodable value to a protobuf Struct.
func toStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode reply: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode reply: %v", err)
	}
	return out, nil
}

// stringField reads key as text; numbers are formatted the way they were typed.
func stringField(req *structpb.Struct, key string) string {
	v, ok := req.GetFields()[key]
	if !ok {
		return ""
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(k.NumberValue, 'f', -1, 64)
	default:
		return ""
	}
}
