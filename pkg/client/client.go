// Package client implements the learned-retrieval client layer: the query
// cache, query expander, and feedback-weighted reranker of spec §4.8, wired
// in front of a [service.Service]'s core recall operation and guarded by the
// safeguard stack of spec §4.9. It exists as a layer outside pkg/service
// because both the learned layer and the safeguard stack key their state by
// session/turn, which the core recall contract of spec §6.1 deliberately
// does not take.
package client

import (
	"context"
	"log/slog"

	"github.com/agentmemory/memsvc/pkg/learned"
	"github.com/agentmemory/memsvc/pkg/safeguard"
	"github.com/agentmemory/memsvc/pkg/service"
)

// Client wraps a [service.Service] with the learned-retrieval layer and the
// safeguard stack, exposing a session-scoped Recall suitable for a
// conversational agent.
type Client struct {
	svc        *service.Service
	queryCache *learned.QueryCache
	expander   *learned.Expander
	feedback   *learned.FeedbackTracker
	guards     *safeguard.Stack
	log        *slog.Logger
}

// Learned bundles the optional learned-retrieval layer for [New]. A nil
// field disables that specific behavior (cache lookup, expansion, or
// feedback reranking) while still allowing the others.
type Learned struct {
	QueryCache *learned.QueryCache
	Expander   *learned.Expander
	Feedback   *learned.FeedbackTracker
}

// New constructs a [Client] wrapping svc. learnedLayer and guards may be nil
// to disable the corresponding behavior entirely.
func New(svc *service.Service, learnedLayer *Learned, guards *safeguard.Stack, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	c := &Client{svc: svc, guards: guards, log: log}
	if learnedLayer != nil {
		c.queryCache = learnedLayer.QueryCache
		c.expander = learnedLayer.Expander
		c.feedback = learnedLayer.Feedback
	}
	return c
}
