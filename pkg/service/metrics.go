package service

import "context"

// These wrappers no-op when s.metrics is nil (the default for a [Service]
// built without [Config.Metrics]), so every call site below can record
// unconditionally instead of guarding on nilness at every use.

func (s *Service) recordRecallRequest(ctx context.Context, status string) {
	if s.metrics != nil {
		s.metrics.RecordRecallRequest(ctx, status)
	}
}

func (s *Service) recordRecallDuration(ctx context.Context, seconds float64) {
	if s.metrics != nil {
		s.metrics.RecordRecallDuration(ctx, seconds)
	}
}

func (s *Service) recordRememberRequest(ctx context.Context, status string) {
	if s.metrics != nil {
		s.metrics.RecordRememberRequest(ctx, status)
	}
}

func (s *Service) recordRememberDuration(ctx context.Context, seconds float64) {
	if s.metrics != nil {
		s.metrics.RecordRememberDuration(ctx, seconds)
	}
}

func (s *Service) recordEmbeddingDuration(ctx context.Context, seconds float64) {
	if s.metrics != nil {
		s.metrics.RecordEmbeddingDuration(ctx, seconds)
	}
}

func (s *Service) recordEmbeddingError(ctx context.Context, provider string) {
	if s.metrics != nil {
		s.metrics.RecordEmbeddingError(ctx, provider)
	}
}

func (s *Service) recordDedupDuration(ctx context.Context, seconds float64) {
	if s.metrics != nil {
		s.metrics.RecordDedupDuration(ctx, seconds)
	}
}

func (s *Service) recordDedupRejection(ctx context.Context, reason string) {
	if s.metrics != nil {
		s.metrics.RecordDedupRejection(ctx, reason)
	}
}

func (s *Service) recordGraphExpansionDuration(ctx context.Context, seconds float64) {
	if s.metrics != nil {
		s.metrics.RecordGraphExpansionDuration(ctx, seconds)
	}
}

func (s *Service) recordStoreError(ctx context.Context, store, op string) {
	if s.metrics != nil {
		s.metrics.RecordStoreError(ctx, store, op)
	}
}
