package usage

import "time"

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the event publisher.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithCacheInvalidator sets the analytics cache to invalidate after transitions.
func WithCacheInvalidator(c CacheInvalidator) Option {
	return func(s *Service) { s.invalidator = c }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.nowFn = now }
}

// WithStatusRetry sets how often a failed status write is retried and the
// base backoff between attempts.
func WithStatusRetry(attempts int, backoff time.Duration) Option {
	return func(s *Service) {
		if attempts > 0 {
			s.statusAttempts = attempts
		}
		if backoff >= 0 {
			s.statusBackoff = backoff
		}
	}
}

// WithRepairGrace sets how old an open period must be before a status
// mismatch is treated as drift rather than an in-flight transition.
func WithRepairGrace(d time.Duration) Option {
	return func(s *Service) { s.repairGrace = d }
}
