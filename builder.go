package authcore

import (
	"errors"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/taskgrid/authcore/jwt"
	"github.com/taskgrid/authcore/password"
	"github.com/taskgrid/authcore/totp"
)

// Builder assembles an Engine from explicit dependencies. Construction is
// allocation-only; no I/O happens before the first Engine call.
type Builder struct {
	cfg      Config
	repo     Repository
	notifier ResetNotifier
	sink     AuditSink
	logger   *logrus.Logger
}

// NewBuilder starts a build with production defaults.
func NewBuilder() *Builder {
	return &Builder{cfg: Config{}.withDefaults()}
}

// WithConfig replaces the configuration. Zero fields keep their defaults.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg.withDefaults()
	return b
}

// WithRepository sets the persistence adapter. Required.
func (b *Builder) WithRepository(repo Repository) *Builder {
	b.repo = repo
	return b
}

// WithResetNotifier sets the collaborator that delivers reset tokens.
// Required only when the password-reset operations are used.
func (b *Builder) WithResetNotifier(n ResetNotifier) *Builder {
	b.notifier = n
	return b
}

// WithAuditSink sets the audit destination. Defaults to a no-op sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithLogger sets the structured logger used for security-internal
// diagnostics. Defaults to a silent logger.
func (b *Builder) WithLogger(logger *logrus.Logger) *Builder {
	b.logger = logger
	return b
}

// Build validates the wiring and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.repo == nil {
		return nil, errors.New("authcore: repository is required")
	}

	tokens, err := jwt.NewManager(b.cfg.JWT)
	if err != nil {
		return nil, err
	}
	hasher, err := password.NewHasher(b.cfg.Password)
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	return &Engine{
		config:   b.cfg,
		repo:     b.repo,
		hasher:   hasher,
		breach:   password.NewBreachClient(b.cfg.Breach, logger),
		totp:     totp.NewGenerator(b.cfg.TOTP),
		tokens:   tokens,
		notifier: b.notifier,
		audit:    newAuditDispatcher(b.cfg.Audit, b.sink),
		metrics:  NewMetrics(),
		logger:   logger,
	}, nil
}
