// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("classgate/auth")

// errAccessDenied aborts a session update in Authorize.
var errAccessDenied = errors.New("access denied")

// dummyPasswordHash is verified when an account doesn't exist so that a login
// for an unknown email takes as long as one for a known email.
// This is NOT a real credential.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Service runs registration, OTP verification, login and logout for both
// principal kinds.
type Service struct {
	accounts map[Kind]AccountRepository
	sessions SessionStore
	hasher   PasswordHasher
	notifier Notifier
	otps     OTPGenerator
	policy   *EmailPolicy
	logger   *slog.Logger
	clock    func() time.Time
	ttl      time.Duration

	rollbackOnNotifyFailure bool
}

// ServiceOption configures a Service during construction.
type ServiceOption func(*Service)

// WithLogger sets the service logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock replaces time.Now. Used by tests to control challenge expiry.
func WithClock(clock func() time.Time) ServiceOption {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithOTPGenerator replaces the crypto/rand code generator.
func WithOTPGenerator(g OTPGenerator) ServiceOption {
	return func(s *Service) {
		s.otps = g
	}
}

// WithChallengeTTL overrides the five minute challenge lifetime.
func WithChallengeTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.ttl = ttl
	}
}

// WithEmailPolicy restricts which addresses may register.
func WithEmailPolicy(p *EmailPolicy) ServiceOption {
	return func(s *Service) {
		s.policy = p
	}
}

// WithRollbackOnNotifyFailure makes Register delete the new account when the
// passcode cannot be delivered. By default the account is kept.
func WithRollbackOnNotifyFailure(enabled bool) ServiceOption {
	return func(s *Service) {
		s.rollbackOnNotifyFailure = enabled
	}
}

// NewService creates a Service. All dependencies are required.
func NewService(
	students, teachers AccountRepository,
	sessions SessionStore,
	hasher PasswordHasher,
	notifier Notifier,
	opts ...ServiceOption,
) (*Service, error) {
	if students == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("students repository is required")
	}
	if teachers == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("teachers repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("session store is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("password hasher is required")
	}
	if notifier == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("notifier is required")
	}

	s := &Service{
		accounts: map[Kind]AccountRepository{
			KindStudent: students,
			KindTeacher: teachers,
		},
		sessions: sessions,
		hasher:   hasher,
		notifier: notifier,
		otps:     CryptoOTPGenerator{},
		logger:   slog.Default(),
		clock:    time.Now,
		ttl:      ChallengeTTL,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("logger cannot be nil")
	}
	if s.clock == nil || s.otps == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("clock and OTP generator cannot be nil")
	}
	if s.ttl <= 0 {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").With("ttl", s.ttl).Errorf("challenge TTL must be positive")
	}
	return s, nil
}

// Register creates an account and sends it a passcode. The pending challenge
// is bound to the session behind token.
//
// A NotificationError leaves the account persisted unless the service was
// built WithRollbackOnNotifyFailure.
func (s *Service) Register(ctx context.Context, token string, reg Registration) (account *Account, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "auth.register",
		trace.WithAttributes(attribute.String("auth.kind", reg.Kind.String())),
	)
	defer func() { finish(span, "register", reg.Kind, start, err) }()

	repo, err := s.repo(reg.Kind)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, validationError(invalid("session", "session token is required"))
	}
	if err := reg.Validate(); err != nil {
		return nil, validationError(err)
	}
	if !s.policy.Allows(reg.Email) {
		return nil, validationError(invalid("email", "This email address is not allowed to register."))
	}

	hash, err := s.hasher.Hash(reg.Password)
	if err != nil {
		return nil, storageError("hash password", err)
	}

	account, err = NewAccount(reg.Kind, reg.Email, hash, reg.Profile)
	if err != nil {
		return nil, validationError(err)
	}

	if err := repo.Create(ctx, account); err != nil {
		if errors.Is(err, ErrDuplicateIdentity) {
			return nil, oops.Code(CodeDuplicateIdentity).
				With("kind", reg.Kind.String()).
				With("email", reg.Email).
				Wrap(ErrDuplicateIdentity)
		}
		return nil, storageError("create account", err)
	}

	code, err := s.otps.Generate()
	if err != nil {
		s.abandonRegistration(ctx, repo, token, account)
		return nil, storageError("generate otp", err)
	}

	now := s.clock()
	challenge := &PendingChallenge{
		Code:      code,
		AccountID: account.ID,
		Kind:      account.Kind,
		IssuedAt:  now,
	}
	err = s.sessions.Update(ctx, SessionKey(token), func(cur *Session) (*Session, error) {
		if cur == nil {
			cur = NewSession(now)
		}
		cur.Challenge = challenge
		cur.LastSeenAt = now
		return cur, nil
	})
	if err != nil {
		s.abandonRegistration(ctx, repo, token, account)
		return nil, storageError("store challenge", err)
	}

	if err := s.notifier.Notify(ctx, OTPMessage(account.Email, code, s.ttl)); err != nil {
		s.logger.ErrorContext(ctx, "failed to deliver passcode",
			"kind", account.Kind.String(),
			"account_id", account.ID.String(),
			"error", err,
		)
		s.abandonRegistration(ctx, repo, token, account)
		return nil, oops.Code(CodeNotification).
			With("account_id", account.ID.String()).
			With("account_persisted", !s.rollbackOnNotifyFailure).
			Wrap(fmt.Errorf("%w: %w", ErrNotification, err))
	}

	s.logger.InfoContext(ctx, "account registered, passcode sent",
		"kind", account.Kind.String(),
		"account_id", account.ID.String(),
	)
	return account, nil
}

// abandonRegistration runs the compensating delete when rollback is enabled.
// It outlives the request context so a disconnecting client cannot leave it
// half done.
func (s *Service) abandonRegistration(ctx context.Context, repo AccountRepository, token string, account *Account) {
	if !s.rollbackOnNotifyFailure {
		return
	}
	ctx = context.WithoutCancel(ctx)

	if err := repo.Delete(ctx, account.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to roll back account",
			"account_id", account.ID.String(),
			"error", err,
		)
	}
	err := s.sessions.Update(ctx, SessionKey(token), func(cur *Session) (*Session, error) {
		if cur != nil && cur.Challenge != nil && cur.Challenge.AccountID == account.ID {
			cur.Challenge = nil
		}
		return cur, nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to clear abandoned challenge", "error", err)
	}
}

// VerifyOTP consumes the session's pending challenge and authenticates the
// session as the account it was issued for. A wrong code keeps the challenge;
// an expired one is deleted.
func (s *Service) VerifyOTP(ctx context.Context, token, code string) (identity Identity, err error) {
	start := time.Now()
	kind := Kind(0)
	ctx, span := tracer.Start(ctx, "auth.verify_otp")
	defer func() { finish(span, "verify_otp", kind, start, err) }()

	if token == "" {
		return Identity{}, oops.Code(CodeNoPendingChallenge).Wrap(ErrNoPendingChallenge)
	}

	key := SessionKey(token)
	code = strings.TrimSpace(code)
	now := s.clock()

	var consumed *PendingChallenge
	var expired bool
	err = s.sessions.Update(ctx, key, func(cur *Session) (*Session, error) {
		consumed, expired = nil, false
		if cur == nil || cur.Challenge == nil {
			return nil, ErrNoPendingChallenge
		}
		if cur.Challenge.ExpiredAt(now, s.ttl) {
			cur.Challenge = nil
			expired = true
			return cur, nil
		}
		if subtle.ConstantTimeCompare([]byte(code), []byte(cur.Challenge.Code)) != 1 {
			return nil, ErrChallengeMismatch
		}
		consumed = cur.Challenge
		cur.Challenge = nil
		cur.LastSeenAt = now
		return cur, nil
	})
	switch {
	case errors.Is(err, ErrNoPendingChallenge):
		return Identity{}, oops.Code(CodeNoPendingChallenge).Wrap(ErrNoPendingChallenge)
	case errors.Is(err, ErrChallengeMismatch):
		return Identity{}, oops.Code(CodeChallengeMismatch).Wrap(ErrChallengeMismatch)
	case err != nil:
		return Identity{}, storageError("consume challenge", err)
	case expired:
		return Identity{}, oops.Code(CodeExpiredChallenge).
			With("ttl", s.ttl.String()).
			Wrap(ErrExpiredChallenge)
	}

	account, err := s.resolve(ctx, consumed.AccountID)
	if err != nil {
		return Identity{}, err
	}
	kind = account.Kind
	if account.Kind != consumed.Kind {
		s.logger.WarnContext(ctx, "challenge kind disagrees with resolved account",
			"account_id", account.ID.String(),
			"challenge_kind", consumed.Kind.String(),
			"account_kind", account.Kind.String(),
		)
	}

	identity = Identity{AccountID: account.ID, Kind: account.Kind}
	if err := s.bindIdentity(ctx, key, identity, now); err != nil {
		return Identity{}, err
	}

	s.logger.InfoContext(ctx, "passcode verified",
		"kind", identity.Kind.String(),
		"account_id", identity.AccountID.String(),
	)
	return identity, nil
}

// resolve finds an account by ID, probing stores in Kinds order.
func (s *Service) resolve(ctx context.Context, id ulid.ULID) (*Account, error) {
	for _, kind := range Kinds {
		account, err := s.accounts[kind].GetByID(ctx, id)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, storageError("resolve account", err)
		}
	}
	return nil, oops.Code(CodeAccountNotFound).
		With("account_id", id.String()).
		Wrap(ErrAccountNotFound)
}

// Login authenticates the session behind token with an email and password.
// No passcode is sent on login.
func (s *Service) Login(ctx context.Context, token string, kind Kind, email, password string) (identity Identity, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "auth.login",
		trace.WithAttributes(attribute.String("auth.kind", kind.String())),
	)
	defer func() { finish(span, "login", kind, start, err) }()

	repo, err := s.repo(kind)
	if err != nil {
		return Identity{}, err
	}
	if token == "" {
		return Identity{}, validationError(invalid("session", "session token is required"))
	}

	account, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return Identity{}, storageError("get account by email", err)
		}
		_, _ = s.hasher.Verify(password, dummyPasswordHash) //nolint:errcheck // timing only
		return Identity{}, oops.Code(CodeAccountNotFound).
			With("kind", kind.String()).
			Wrap(ErrAccountNotFound)
	}

	ok, verifyErr := s.hasher.Verify(password, account.PasswordHash)
	if verifyErr != nil {
		s.logger.WarnContext(ctx, "stored password hash is malformed",
			"account_id", account.ID.String(),
			"error", verifyErr,
		)
	}
	if !ok {
		return Identity{}, oops.Code(CodeInvalidSecret).
			With("kind", kind.String()).
			Wrap(ErrInvalidSecret)
	}

	if s.hasher.NeedsUpgrade(account.PasswordHash) {
		s.upgradeHash(ctx, repo, account, password)
	}

	identity = Identity{AccountID: account.ID, Kind: account.Kind}
	if err := s.bindIdentity(ctx, SessionKey(token), identity, s.clock()); err != nil {
		return Identity{}, err
	}

	s.logger.InfoContext(ctx, "logged in",
		"kind", identity.Kind.String(),
		"account_id", identity.AccountID.String(),
	)
	return identity, nil
}

// upgradeHash re-hashes a password whose digest uses outdated parameters.
// Failures are logged; login succeeds regardless.
func (s *Service) upgradeHash(ctx context.Context, repo AccountRepository, account *Account, password string) {
	newHash, err := s.hasher.Hash(password)
	if err == nil {
		err = repo.UpdatePasswordHash(ctx, account.ID, newHash)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "password hash upgrade failed",
			"account_id", account.ID.String(),
			"error", err,
		)
	}
}

func (s *Service) bindIdentity(ctx context.Context, key string, identity Identity, now time.Time) error {
	err := s.sessions.Update(ctx, key, func(cur *Session) (*Session, error) {
		if cur == nil {
			cur = NewSession(now)
		}
		cur.Identity = &identity
		cur.LastSeenAt = now
		return cur, nil
	})
	if err != nil {
		return storageError("bind identity", err)
	}
	return nil
}

// Logout destroys the session behind token. It succeeds when no session exists.
func (s *Service) Logout(ctx context.Context, token string) (err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "auth.logout")
	defer func() { finish(span, "logout", 0, start, err) }()

	if token == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, SessionKey(token)); err != nil {
		return oops.Code(CodeSessionTeardown).
			With("operation", "delete session").
			Wrap(fmt.Errorf("%w: %w", ErrSessionTeardown, err))
	}
	s.logger.InfoContext(ctx, "logged out")
	return nil
}

// RotateSession moves the session behind token to a freshly generated token
// and returns it. The web layer calls it whenever a session gains an
// identity, so a token planted before login never becomes authenticated.
// On failure the old token stays valid.
func (s *Service) RotateSession(ctx context.Context, token string) (next string, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "auth.rotate_session")
	defer func() { finish(span, "rotate_session", 0, start, err) }()

	oldKey := SessionKey(token)
	cur, err := s.sessions.Get(ctx, oldKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", oops.Code(CodeStorage).
				With("operation", "rotate session").
				Wrap(fmt.Errorf("%w: session not found", ErrStorage))
		}
		return "", storageError("get session", err)
	}

	next, err = GenerateSessionToken()
	if err != nil {
		return "", storageError("generate session token", err)
	}
	newKey := SessionKey(next)
	moved := cur.Clone()
	moved.LastSeenAt = s.clock()
	if err := s.sessions.Update(ctx, newKey, func(*Session) (*Session, error) {
		return moved, nil
	}); err != nil {
		return "", storageError("store rotated session", err)
	}
	if err := s.sessions.Delete(ctx, oldKey); err != nil {
		if cleanupErr := s.sessions.Delete(ctx, newKey); cleanupErr != nil {
			s.logger.WarnContext(ctx, "failed to discard rotated session", "error", cleanupErr)
		}
		return "", storageError("delete previous session", err)
	}
	return next, nil
}

// Authorize reports whether the session behind token is authenticated as the
// required kind, refreshing its last-seen time when it is. Store failures deny.
func (s *Service) Authorize(ctx context.Context, token string, required Kind) (Identity, bool) {
	if token == "" {
		return Identity{}, false
	}

	now := s.clock()
	var identity Identity
	err := s.sessions.Update(ctx, SessionKey(token), func(cur *Session) (*Session, error) {
		if cur == nil || cur.Identity == nil || cur.Identity.Kind != required {
			return nil, errAccessDenied
		}
		identity = *cur.Identity
		cur.LastSeenAt = now
		return cur, nil
	})
	if err != nil {
		if !errors.Is(err, errAccessDenied) {
			s.logger.WarnContext(ctx, "session lookup failed, denying access", "error", err)
		}
		return Identity{}, false
	}
	return identity, true
}

// Profile loads the account behind an authenticated identity.
func (s *Service) Profile(ctx context.Context, identity Identity) (*Account, error) {
	repo, err := s.repo(identity.Kind)
	if err != nil {
		return nil, err
	}
	account, err := repo.GetByID(ctx, identity.AccountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeAccountNotFound).
				With("account_id", identity.AccountID.String()).
				Wrap(ErrAccountNotFound)
		}
		return nil, storageError("get account by id", err)
	}
	return account, nil
}

// HasPendingChallenge reports whether the session behind token holds an
// unexpired challenge.
func (s *Service) HasPendingChallenge(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	sess, err := s.sessions.Get(ctx, SessionKey(token))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storageError("get session", err)
	}
	return sess.Challenge != nil && !sess.Challenge.ExpiredAt(s.clock(), s.ttl), nil
}

func (s *Service) repo(kind Kind) (AccountRepository, error) {
	repo, ok := s.accounts[kind]
	if !ok {
		return nil, validationError(invalid("kind", "unknown principal kind"))
	}
	return repo, nil
}

func validationError(err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return oops.Code(CodeValidation).With("field", ve.Field).Wrap(ve)
	}
	return oops.Code(CodeValidation).Wrap(fmt.Errorf("%w: %w", ErrValidation, err))
}

func storageError(operation string, err error) error {
	return oops.Code(CodeStorage).
		With("operation", operation).
		Wrap(fmt.Errorf("%w: %w", ErrStorage, err))
}

func finish(span trace.Span, operation string, kind Kind, start time.Time, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	observe(operation, kind, outcomeOf(err), start)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrValidation):
		return OutcomeInvalid
	case errors.Is(err, ErrDuplicateIdentity):
		return OutcomeDuplicate
	case errors.Is(err, ErrAccountNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrInvalidSecret):
		return OutcomeBadSecret
	case errors.Is(err, ErrNoPendingChallenge):
		return OutcomeNoChallenge
	case errors.Is(err, ErrExpiredChallenge):
		return OutcomeExpired
	case errors.Is(err, ErrChallengeMismatch):
		return OutcomeMismatch
	case errors.Is(err, ErrNotification):
		return OutcomeNotifyFailed
	default:
		return OutcomeStorageFailure
	}
}
