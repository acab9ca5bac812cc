package authcore

import (
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/wrenhollow/authcore/audit"
	"github.com/wrenhollow/authcore/breach"
	"github.com/wrenhollow/authcore/identity"
	"github.com/wrenhollow/authcore/internal/rate"
	"github.com/wrenhollow/authcore/mail"
	"github.com/wrenhollow/authcore/password"
	"github.com/wrenhollow/authcore/session"
	"github.com/wrenhollow/authcore/token"
	"github.com/wrenhollow/authcore/verify"
)

// Builder assembles an Engine. Dependencies are injected here once at
// process start; the resulting Engine holds no global state.
type Builder struct {
	config    Config
	store     Store
	redis     redis.UniversalClient
	mailer    mail.Mailer
	logger    *slog.Logger
	auditSink audit.Sink
	breach    BreachChecker
	registry  prometheus.Registerer
	providers []identity.Provider

	built bool
}

// New returns a Builder preloaded with defaults.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithTokenSecret sets the HMAC key for signed carrier tokens.
func (b *Builder) WithTokenSecret(secret []byte) *Builder {
	b.config.TokenSecret = append([]byte(nil), secret...)
	return b
}

// WithStore sets the account store. Required.
func (b *Builder) WithStore(store Store) *Builder {
	b.store = store
	return b
}

// WithRedis sets the client backing verification records and the resend
// limiter. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithMailer sets the outbound mail seam. Defaults to mail.LogMailer.
func (b *Builder) WithMailer(m mail.Mailer) *Builder {
	b.mailer = m
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit sink and enables audit dispatch.
func (b *Builder) WithAuditSink(sink audit.Sink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

// WithBreachChecker overrides the breached-password checker. Passing a
// non-nil checker enables the check regardless of config.
func (b *Builder) WithBreachChecker(c BreachChecker) *Builder {
	b.breach = c
	return b
}

// WithMetrics registers engine metrics against reg.
func (b *Builder) WithMetrics(reg prometheus.Registerer) *Builder {
	b.registry = reg
	return b
}

// WithProvider registers an external identity provider.
func (b *Builder) WithProvider(p identity.Provider) *Builder {
	if p != nil {
		b.providers = append(b.providers, p)
	}
	return b
}

// Build validates the configuration, wires every component, and returns
// the Engine. A Builder is single-use.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.store == nil {
		return nil, errors.New("account store is required")
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if err := validateConfig(b.config); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	mailer := b.mailer
	if mailer == nil {
		mailer = mail.LogMailer{Logger: logger}
	}

	hasher, err := password.NewHasher(b.config.Password)
	if err != nil {
		return nil, err
	}
	codec, err := token.NewCodec(b.config.TokenSecret)
	if err != nil {
		return nil, err
	}
	verifier, err := verify.NewEngine(verify.NewRedisStore(b.redis, "vrf"), codec, b.config.Verify)
	if err != nil {
		return nil, err
	}
	sessions, err := session.NewManager(b.store.Sessions(), b.config.Session.Lifetime)
	if err != nil {
		return nil, err
	}

	var resend *rate.Limiter
	if b.config.Resend.Enabled {
		resend = rate.New(b.redis, rate.Config{
			Enabled:    true,
			MaxResends: b.config.Resend.Max,
			Window:     b.config.Resend.Window,
		})
	}

	checker := b.breach
	if checker == nil && b.config.Breach.Enabled {
		checker = breach.NewChecker(breach.Config{
			Endpoint: b.config.Breach.Endpoint,
			Timeout:  b.config.Breach.Timeout,
		}, logger)
	}

	metrics := NewMetrics(b.registry)

	registry := identity.NewRegistry()
	for _, p := range b.providers {
		registry.Register(p)
	}

	b.built = true
	return &Engine{
		config:    b.config,
		logger:    logger,
		store:     b.store,
		mailer:    mailer,
		hasher:    hasher,
		codec:     codec,
		verifier:  verifier,
		sessions:  sessions,
		resend:    resend,
		breach:    checker,
		providers: registry,
		audit:     audit.NewDispatcher(b.config.Audit, b.auditSink),
		metrics:   metrics,
	}, nil
}
