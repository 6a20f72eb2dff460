package grpc

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

func TestLoggingInterceptorPassesThrough(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	interceptor := NewLoggingUnaryInterceptor(zap.New(core))
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	resp, err := interceptor(context.Background(), "req", info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return "ok", nil
	})
	if err != nil || resp != "ok" {
		t.Fatalf("unexpected result %v %v", resp, err)
	}

	_, err = interceptor(context.Background(), "req", info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.Unavailable, "down")
	})
	if status.Code(err) != codes.Unavailable {
		t.Fatalf("expected unavailable, got %v", err)
	}

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[1].ContextMap()["code"] != "Unavailable" {
		t.Fatalf("expected code field, got %v", entries[1].ContextMap())
	}
}

func TestHealthFollowsProbe(t *testing.T) {
	h := NewHealth(nil)
	ctx := context.Background()

	resp, err := h.server.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil || resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected serving, got %v %v", resp, err)
	}

	h.check(ctx, func(context.Context) error { return errors.New("store down") }, time.Second)
	resp, _ = h.server.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if resp.Status != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected not serving, got %v", resp.Status)
	}

	h.check(ctx, func(context.Context) error { return nil }, time.Second)
	resp, _ = h.server.Check(ctx, &healthpb.HealthCheckRequest{Service: ""})
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected serving again, got %v", resp.Status)
	}
}
