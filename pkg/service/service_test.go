package service

import (
	"log/slog"

	"github.com/agentmemory/memsvc/pkg/dedup"
	embeddingmock "github.com/agentmemory/memsvc/pkg/embedding/mock"
	"github.com/agentmemory/memsvc/pkg/extractor"
	memorymock "github.com/agentmemory/memsvc/pkg/memory/mock"
)

// harness bundles the mocks behind a [Service] for tests.
type harness struct {
	vector   *memorymock.VectorStore
	fulltext *memorymock.FullTextStore
	graph    *memorymock.GraphStore
	embedder *embeddingmock.Provider
	svc      *Service
}

func newHarness() *harness {
	h := &harness{
		vector:   &memorymock.VectorStore{},
		fulltext: &memorymock.FullTextStore{},
		graph:    &memorymock.GraphStore{},
		embedder: &embeddingmock.Provider{DimensionsValue: 3, ModelIDValue: "test-embed-v1"},
	}

	dedupEngine, err := dedup.New(h.vector, dedup.Config{})
	if err != nil {
		panic(err)
	}

	h.svc = New(
		Stores{Vector: h.vector, FullText: h.fulltext, Graph: h.graph},
		h.embedder,
		dedupEngine,
		extractor.New(),
		Config{Logger: slog.Default()},
	)
	return h
}
