package authcore

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nearbyhub/authcore/internal/metrics"
	"github.com/nearbyhub/authcore/internal/rate"
	"github.com/nearbyhub/authcore/internal/stores"
	"github.com/nearbyhub/authcore/password"
	"github.com/nearbyhub/authcore/session"
	"github.com/nearbyhub/authcore/token"
)

// Deps are the collaborators the account service orchestrates. Users,
// Redis, Tokens, and Sessions are required; Mailer, AuditSink, and
// Logger are optional.
type Deps struct {
	Users    UserStore
	Redis    redis.UniversalClient
	Tokens   *token.Service
	Sessions *session.Service

	Mailer    Mailer
	AuditSink AuditSink
	Logger    *zerolog.Logger
}

// Service implements the account state machine: registration, login with
// lockout, email verification, password reset, email change, and
// grace-period deletion. Instances are safe for concurrent use.
type Service struct {
	config Config
	log    zerolog.Logger

	users    UserStore
	tokens   *token.Service
	sessions *session.Service

	hasher  *password.Hasher
	lockout *rate.LockoutLimiter
	onetime *stores.OneTimeStore
	outbox  *outbox
	audit   *auditDispatcher
	metrics *metrics.Metrics

	// dummyHash is verified against on the unknown-email login path so
	// its cost matches the wrong-password path.
	dummyHash string
}

// NewService validates cfg, fills defaults where the zero value is
// unusable, and wires the collaborators.
func NewService(cfg Config, deps Deps) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Users == nil {
		return nil, errors.New("user store required")
	}
	if deps.Redis == nil {
		return nil, errors.New("redis client required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("token service required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("session service required")
	}

	if cfg.PasswordHash == (password.Config{}) {
		cfg.PasswordHash = password.DefaultConfig()
	}
	if cfg.PasswordPolicy == (password.Policy{}) {
		cfg.PasswordPolicy = password.DefaultPolicy()
	}
	hasher, err := password.NewHasher(cfg.PasswordHash)
	if err != nil {
		return nil, err
	}
	dummyHash, err := hasher.Hash("authcore-timing-equalizer")
	if err != nil {
		return nil, err
	}

	log := zerolog.Nop()
	if deps.Logger != nil {
		log = *deps.Logger
	}

	m := metrics.New(metrics.Config{Enabled: cfg.EnableMetrics})

	s := &Service{
		config:   cfg,
		log:      log,
		users:    deps.Users,
		tokens:   deps.Tokens,
		sessions: deps.Sessions,
		hasher:   hasher,
		lockout: rate.NewLockoutLimiter(deps.Redis, rate.LockoutConfig{
			Threshold: cfg.Lockout.Threshold,
			Window:    cfg.Lockout.Window,
		}),
		onetime:   stores.NewOneTimeStore(deps.Redis),
		metrics:   m,
		dummyHash: dummyHash,
	}
	s.outbox = newOutbox(deps.Mailer, cfg.Outbox, log, m)
	s.audit = newAuditDispatcher(deps.AuditSink, cfg.Outbox.Buffer)

	return s, nil
}

// Close drains and stops the outbox and audit workers. Call once on
// shutdown; the service must not be used afterwards.
func (s *Service) Close() {
	s.outbox.close()
	s.audit.close()
}

// Metrics returns the service's counter set for exporting.
func (s *Service) Metrics() *metrics.Metrics { return s.metrics }

// DroppedMail returns how many outbound messages were dropped because
// the outbox buffer was full.
func (s *Service) DroppedMail() uint64 { return s.outbox.droppedCount() }

// DroppedAuditEvents returns how many audit events were dropped because
// the dispatcher buffer was full.
func (s *Service) DroppedAuditEvents() uint64 { return s.audit.droppedCount() }

func (s *Service) emitAudit(ctx context.Context, event AuditEvent) {
	event.IP = ClientIP(ctx)
	event.UserAgent = UserAgent(ctx)
	s.audit.emit(event)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
