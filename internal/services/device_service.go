package services

import (
	"context"

	"sms-gateway-dashboard/pkg/logger"

	"go.uber.org/zap"
)

// DeviceStatus is the reachability of the gateway phone
type DeviceStatus struct {
	Connected bool           `json:"connected"`
	Status    map[string]any `json:"status,omitempty"`
	Error     string         `json:"error,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// DeviceService reports whether the gateway phone answers
type DeviceService struct {
	gw Gateway
}

// NewDeviceService creates a new DeviceService
func NewDeviceService(gw Gateway) *DeviceService {
	return &DeviceService{gw: gw}
}

// Health calls the device health endpoint. An unreachable device is a
// status, not an error.
func (s *DeviceService) Health(ctx context.Context) *DeviceStatus {
	body, err := s.gw.Health(ctx)
	if err != nil {
		logger.Warn("Device health check failed", zap.Error(err))
		return &DeviceStatus{Connected: false, Error: err.Error()}
	}
	logger.Debug("Device health check successful")
	return &DeviceStatus{Connected: true, Status: body}
}

// Connection is Health reduced to a yes/no with a readable message
func (s *DeviceService) Connection(ctx context.Context) *DeviceStatus {
	st := s.Health(ctx)
	out := &DeviceStatus{Connected: st.Connected, Message: "Gateway device connected"}
	if !st.Connected {
		out.Message = "Gateway device not detected"
	}
	return out
}
