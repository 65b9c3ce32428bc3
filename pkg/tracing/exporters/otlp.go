// Package exporters builds span exporters for tracing.Setup.
package exporters

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Supported collector protocols
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"
)

// OTLPConfig describes the collector spans are shipped to
type OTLPConfig struct {
	// Endpoint is host:port of the collector, e.g. "localhost:4317" for gRPC or "localhost:4318" for HTTP
	Endpoint string
	Protocol string
	// Insecure disables TLS
	Insecure bool
	Headers  map[string]string
	Timeout  time.Duration
}

// NewOTLPExporter creates an OTLP span exporter for the configured protocol.
// An empty protocol means gRPC. The exporter connects lazily.
func NewOTLPExporter(ctx context.Context, cfg OTLPConfig) (*otlptrace.Exporter, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("otlp endpoint is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	switch cfg.Protocol {
	case ProtocolGRPC, "":
		return newGRPCExporter(ctx, cfg)
	case ProtocolHTTP:
		return newHTTPExporter(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported otlp protocol %q (use %q or %q)", cfg.Protocol, ProtocolGRPC, ProtocolHTTP)
	}
}

func newGRPCExporter(ctx context.Context, cfg OTLPConfig) (*otlptrace.Exporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithTimeout(cfg.Timeout),
	}
	if cfg.Insecure {
		opts = append(opts,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	return otlptracegrpc.New(ctx, opts...)
}

func newHTTPExporter(ctx context.Context, cfg OTLPConfig) (*otlptrace.Exporter, error) {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithTimeout(cfg.Timeout),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}
	return otlptracehttp.New(ctx, opts...)
}
