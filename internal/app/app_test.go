package app

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/agentmemory/memsvc/internal/config"
	"github.com/agentmemory/memsvc/internal/observe"
	embeddingmock "github.com/agentmemory/memsvc/pkg/embedding/mock"
	memorymock "github.com/agentmemory/memsvc/pkg/memory/mock"
	"github.com/agentmemory/memsvc/pkg/service"
)

// newTestApp builds an App entirely from injected mocks, so New never
// reaches for PostgreSQL, a real embedding backend, or the global OTel SDK.
func newTestApp(t *testing.T) *App {
	t.Helper()

	metrics, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("observe.NewMetrics: %v", err)
	}

	stores := service.Stores{
		Vector:   &memorymock.VectorStore{},
		FullText: &memorymock.FullTextStore{},
		Graph:    &memorymock.GraphStore{},
		Sessions: &memorymock.SessionIndex{},
	}
	embedder := &embeddingmock.Provider{DimensionsValue: 3, ModelIDValue: "test-embed-v1"}

	cfg := &config.Config{}

	a, err := New(context.Background(), cfg,
		WithStores(stores),
		WithEmbedder(embedder),
		WithMetrics(metrics),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestNew_WiresServiceAndClient(t *testing.T) {
	a := newTestApp(t)
	if a.Service() == nil {
		t.Fatal("expected a non-nil Service")
	}
	if a.Client() == nil {
		t.Fatal("expected a non-nil Client")
	}
}

func TestNew_RememberSucceeds(t *testing.T) {
	a := newTestApp(t)

	result := a.Service().Remember(context.Background(), service.RememberInput{
		Content:    "the castle gate opens at dawn",
		SourceType: "note",
	})
	if result.Err != nil {
		t.Fatalf("Remember: %v", result.Err)
	}
	if !result.Success {
		t.Fatal("expected Remember to succeed")
	}
}

// TestNew_MissingStorageRequiresDSN verifies that New refuses to construct a
// storage layer from an empty config when no stores were injected.
func TestNew_MissingStorageRequiresDSN(t *testing.T) {
	metrics, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("observe.NewMetrics: %v", err)
	}

	_, err = New(context.Background(), &config.Config{}, WithMetrics(metrics))
	if err == nil {
		t.Fatal("expected an error when storage.postgres_dsn is unset and no stores were injected")
	}
}

// TestShutdown_Idempotent verifies Shutdown can be called more than once
// without error or panic.
func TestShutdown_Idempotent(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}
