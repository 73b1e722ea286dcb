package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/mentis-project/accounts/internal/auth/domain"
	"github.com/mentis-project/accounts/internal/common/clock"
	commoncrypto "github.com/mentis-project/accounts/internal/common/crypto"
	commonerrors "github.com/mentis-project/accounts/internal/common/errors"
	"github.com/mentis-project/accounts/internal/common/logger"
	"github.com/mentis-project/accounts/internal/common/resilience"
	"github.com/mentis-project/accounts/internal/common/tracing"
	"github.com/mentis-project/accounts/internal/observability/metrics"
	userdomain "github.com/mentis-project/accounts/internal/user/domain"
	userrepo "github.com/mentis-project/accounts/internal/user/repository"
)

type Verifier interface {
	Verify(ctx context.Context, raw string, expected domain.TokenType) (domain.Claims, error)
}

type AuthService struct {
	users     userrepo.Repository
	issuer    Issuer
	verifier  Verifier
	ledger    Revoker
	rotator   *RefreshRotator
	hasher    commoncrypto.PasswordHasher
	ids       commoncrypto.IDGenerator
	passwords PasswordValidator
	breaker   *resilience.CircuitBreaker
	clock     clock.Clock
	log       *logger.Logger
	dummyHash string
}

func NewAuthService(
	users userrepo.Repository,
	issuer Issuer,
	verifier Verifier,
	ledger Revoker,
	hasher commoncrypto.PasswordHasher,
	ids commoncrypto.IDGenerator,
	passwords PasswordValidator,
	breaker *resilience.CircuitBreaker,
	clk clock.Clock,
	log *logger.Logger,
) *AuthService {
	s := &AuthService{
		users:     users,
		issuer:    issuer,
		verifier:  verifier,
		ledger:    ledger,
		rotator:   NewRefreshRotator(ledger, issuer, log),
		hasher:    hasher,
		ids:       ids,
		passwords: passwords,
		breaker:   breaker,
		clock:     clk,
		log:       log,
	}
	// Unknown emails are compared against this hash so login latency does not
	// reveal whether an account exists.
	if h, err := hasher.Hash("timing-equalizer-password"); err == nil {
		s.dummyHash = h
	}
	return s
}

type RegisterInput struct {
	Email     string
	FirstName string
	LastName  string
	PhoneNo   string
	Password1 string
	Password2 string
}

type LoginInput struct {
	Email    string
	Password string
}

type UpdatePasswordInput struct {
	OldPassword string
	Password1   string
	Password2   string
}

func (s *AuthService) store(ctx context.Context, fn func(ctx context.Context) error) error {
	return handleStoreError(s.breaker.Call(ctx, fn))
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (profile userdomain.Profile, err error) {
	ctx, span := tracing.StartSpan(ctx, "auth.Register")
	defer func() { tracing.End(span, err) }()

	return s.register(ctx, input, false)
}

// CreateSuperuser registers an active staff account with every admin flag
// set. It is reachable only from the admin CLI.
func (s *AuthService) CreateSuperuser(ctx context.Context, input RegisterInput) (profile userdomain.Profile, err error) {
	ctx, span := tracing.StartSpan(ctx, "auth.CreateSuperuser")
	defer func() { tracing.End(span, err) }()

	return s.register(ctx, input, true)
}

func (s *AuthService) register(ctx context.Context, input RegisterInput, superuser bool) (userdomain.Profile, error) {
	email := userdomain.NormalizeEmail(input.Email)
	s.log.WithFields(ctx, logger.Fields{
		"email":  email,
		"action": "register_attempt",
	}).Info("register attempt")

	if err := s.validateRegistration(email, input); err != nil {
		recordRegistration(resultInvalid)
		s.log.WithFields(ctx, logger.Fields{
			"email":  email,
			"action": "register_validation_failed",
		}).Warnf("register validation failed: %v", err)
		return userdomain.Profile{}, err
	}

	hash, err := s.hasher.Hash(input.Password1)
	if err != nil {
		recordRegistration(resultError)
		s.log.WithFields(ctx, logger.Fields{
			"email":  email,
			"action": "register_hash_failed",
		}).Errorf("register failed: password hash error: %v", err)
		return userdomain.Profile{}, commonerrors.ErrInternalError.WithCause(err)
	}

	id, err := s.ids.NewID()
	if err != nil {
		recordRegistration(resultError)
		s.log.WithFields(ctx, logger.Fields{
			"email":  email,
			"action": "register_id_generation_failed",
		}).Errorf("register failed: id generation error: %v", err)
		return userdomain.Profile{}, commonerrors.ErrInternalError.WithCause(err)
	}

	user := userdomain.User{
		ID:           userdomain.ID(id),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		PhoneNo:      strings.TrimSpace(input.PhoneNo),
		IsActive:     true,
		IsStaff:      superuser,
		IsSuperuser:  superuser,
		DateJoined:   s.clock.Now(),
	}

	err = s.store(ctx, func(ctx context.Context) error {
		return s.users.Create(ctx, user)
	})
	if err != nil {
		if errors.Is(err, commonerrors.ErrEmailAlreadyExists) {
			recordRegistration(resultFailure)
			s.log.WithFields(ctx, logger.Fields{
				"email":  email,
				"action": "register_email_exists",
			}).Warn("register failed: email already exists")
			return userdomain.Profile{}, ErrEmailTaken
		}
		recordRegistration(resultError)
		s.log.WithFields(ctx, logger.Fields{
			"email":  email,
			"action": "register_create_failed",
		}).Errorf("register failed: %v", err)
		return userdomain.Profile{}, err
	}

	recordRegistration(resultSuccess)
	s.log.WithFields(ctx, logger.Fields{
		"user_id":   string(user.ID),
		"superuser": superuser,
		"action":    "register_success",
	}).Info("register success")

	return user.Profile(), nil
}

func (s *AuthService) validateRegistration(email string, input RegisterInput) error {
	if email == "" {
		return validationError("email", msgFieldRequired)
	}
	if err := ValidatePasswordPair(input.Password1, input.Password2); err != nil {
		return err
	}
	return s.passwords.Validate("password2", input.Password1, email)
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (pair domain.TokenPair, err error) {
	ctx, span := tracing.StartSpan(ctx, "auth.Login")
	defer func() { tracing.End(span, err) }()

	email := userdomain.NormalizeEmail(input.Email)
	s.log.WithFields(ctx, logger.Fields{
		"email":  email,
		"action": "login_attempt",
	}).Info("login attempt")

	var user userdomain.User
	err = s.store(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.users.FindByEmail(ctx, email)
		return err
	})
	if err != nil {
		if errors.Is(err, commonerrors.ErrUserNotFound) {
			if s.dummyHash != "" {
				_ = s.hasher.Compare(s.dummyHash, input.Password)
			}
			recordLogin(resultFailure)
			s.log.WithFields(ctx, logger.Fields{
				"email":  email,
				"action": "login_user_not_found",
			}).Warn("login failed: not found")
			return domain.TokenPair{}, ErrInvalidCredentials
		}
		recordLogin(resultError)
		s.log.WithFields(ctx, logger.Fields{
			"email":  email,
			"action": "login_fetch_failed",
		}).Errorf("login failed: %v", err)
		return domain.TokenPair{}, err
	}

	if err := s.hasher.Compare(user.PasswordHash, input.Password); err != nil {
		if !errors.Is(err, commoncrypto.ErrPasswordMismatch) {
			recordLogin(resultError)
			s.log.WithFields(ctx, logger.Fields{
				"user_id": string(user.ID),
				"action":  "login_compare_failed",
			}).Errorf("login failed: password compare error: %v", err)
			return domain.TokenPair{}, commonerrors.ErrInternalError.WithCause(err)
		}
		recordLogin(resultFailure)
		s.log.WithFields(ctx, logger.Fields{
			"user_id": string(user.ID),
			"action":  "login_invalid_password",
		}).Warn("login failed: invalid password")
		return domain.TokenPair{}, ErrInvalidCredentials
	}

	if !user.IsActive {
		recordLogin(resultFailure)
		s.log.WithFields(ctx, logger.Fields{
			"user_id": string(user.ID),
			"action":  "login_inactive_user",
		}).Warn("login failed: account inactive")
		return domain.TokenPair{}, ErrInvalidCredentials
	}

	pair, err = s.issuer.Issue(user)
	if err != nil {
		recordLogin(resultError)
		s.log.WithFields(ctx, logger.Fields{
			"user_id": string(user.ID),
			"action":  "login_token_issue_failed",
		}).Errorf("login failed: token issue error: %v", err)
		return domain.TokenPair{}, commonerrors.ErrInternalError.WithCause(err)
	}

	now := s.clock.Now()
	if err := s.store(ctx, func(ctx context.Context) error {
		return s.users.UpdateLastLogin(ctx, user.ID, now)
	}); err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": string(user.ID),
			"action":  "login_last_login_update_failed",
		}).Warnf("failed to record last login: %v", err)
	}

	recordLogin(resultSuccess)
	s.log.WithFields(ctx, logger.Fields{
		"user_id": string(user.ID),
		"action":  "login_success",
	}).Info("login success")

	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// consumed, so replaying it afterwards is rejected.
func (s *AuthService) Refresh(ctx context.Context, rawRefresh string) (pair domain.TokenPair, err error) {
	ctx, span := tracing.StartSpan(ctx, "auth.Refresh")
	defer func() { tracing.End(span, err) }()

	if rawRefresh == "" {
		return domain.TokenPair{}, validationError("refresh", msgFieldRequired)
	}

	claims, err := s.verifier.Verify(ctx, rawRefresh, domain.RefreshToken)
	if err != nil {
		return domain.TokenPair{}, err
	}
	span.SetAttributes(attribute.String("user.id", claims.Subject))

	var user userdomain.User
	err = s.store(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.users.FindByID(ctx, userdomain.ID(claims.Subject))
		return err
	})
	if err != nil {
		if errors.Is(err, commonerrors.ErrUserNotFound) {
			s.log.WithFields(ctx, logger.Fields{
				"user_id": claims.Subject,
				"action":  "refresh_user_not_found",
			}).Warn("refresh failed: user no longer exists")
			return domain.TokenPair{}, commonerrors.ErrUnauthorized
		}
		s.log.WithFields(ctx, logger.Fields{
			"user_id": claims.Subject,
			"action":  "refresh_user_lookup_failed",
		}).Errorf("refresh failed: user lookup error: %v", err)
		return domain.TokenPair{}, err
	}

	if !user.IsActive || issuedBeforePasswordChange(claims, user) {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": claims.Subject,
			"action":  "refresh_session_invalidated",
		}).Warn("refresh failed: account inactive or password changed since issue")
		return domain.TokenPair{}, commonerrors.ErrUnauthorized
	}

	pair, err = s.rotator.Rotate(ctx, claims, user)
	if err != nil {
		return domain.TokenPair{}, err
	}

	s.log.WithFields(ctx, logger.Fields{
		"user_id": claims.Subject,
		"action":  "refresh_token_success",
	}).Info("refresh token success")

	return pair, nil
}

// issuedBeforePasswordChange compares at the one-second resolution of the
// token's iat claim.
func issuedBeforePasswordChange(claims domain.Claims, user userdomain.User) bool {
	if user.PasswordChangedAt == nil {
		return false
	}
	return claims.IssuedAt.Before(user.PasswordChangedAt.Truncate(time.Second))
}

// Logout revokes the refresh token of the caller identified by userID.
func (s *AuthService) Logout(ctx context.Context, userID, rawRefresh string) (err error) {
	ctx, span := tracing.StartSpan(ctx, "auth.Logout", attribute.String("user.id", userID))
	defer func() { tracing.End(span, err) }()

	if rawRefresh == "" {
		return validationError("refresh", msgFieldRequired)
	}

	claims, err := s.verifier.Verify(ctx, rawRefresh, domain.RefreshToken)
	if err != nil {
		return err
	}

	if claims.Subject != userID {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": userID,
			"action":  "logout_subject_mismatch",
		}).Warn("logout failed: refresh token belongs to another user")
		return commonerrors.ErrUnauthorized
	}

	revoked, err := s.ledger.Revoke(ctx, claims)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": userID,
			"action":  "logout_revoke_failed",
		}).Errorf("logout failed: %v", err)
		return err
	}
	if !revoked {
		s.log.WithFields(ctx, logger.Fields{
			"user_id": userID,
			"action":  "logout_already_revoked",
		}).Warn("logout failed: refresh token already revoked")
		return commonerrors.ErrUnauthorized
	}

	metrics.RefreshTokensRevoked.Inc()
	s.log.WithFields(ctx, logger.Fields{
		"user_id": userID,
		"action":  "refresh_token_revoked",
	}).Info("refresh token revoked")
	return nil
}

func (s *AuthService) loadActiveUser(ctx context.Context, userID string) (userdomain.User, error) {
	var user userdomain.User
	err := s.store(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.users.FindByID(ctx, userdomain.ID(userID))
		return err
	})
	if err != nil {
		if errors.Is(err, commonerrors.ErrUserNotFound) {
			return userdomain.User{}, commonerrors.ErrUnauthorized
		}
		return userdomain.User{}, err
	}
	if !user.IsActive {
		return userdomain.User{}, commonerrors.ErrUnauthorized
	}
	return user, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID string, changes userdomain.ProfileChanges) (profile userdomain.Profile, err error) {
	ctx, span := tracing.StartSpan(ctx, "auth.UpdateProfile", attribute.String("user.id", userID))
	defer func() { tracing.End(span, err) }()

	user, err := s.loadActiveUser(ctx, userID)
	if err != nil {
		return userdomain.Profile{}, err
	}

	updated := changes.Apply(user)
	if updated.Email == "" {
		return userdomain.Profile{}, validationError("email", msgFieldRequired)
	}
	if changes.Empty() || updated.Profile() == user.Profile() {
		return user.Profile(), nil
	}

	err = s.store(ctx, func(ctx context.Context) error {
		return s.users.UpdateProfile(ctx, updated)
	})
	if err != nil {
		if errors.Is(err, commonerrors.ErrEmailAlreadyExists) {
			s.log.WithFields(ctx, logger.Fields{
				"user_id": userID,
				"action":  "update_profile_email_exists",
			}).Warn("update profile failed: email already exists")
			return userdomain.Profile{}, ErrEmailTaken
		}
		if errors.Is(err, commonerrors.ErrUserNotFound) {
			return userdomain.Profile{}, commonerrors.ErrUnauthorized
		}
		s.log.WithFields(ctx, logger.Fields{
			"user_id": userID,
			"action":  "update_profile_failed",
		}).Errorf("update profile failed: %v", err)
		return userdomain.Profile{}, err
	}

	s.log.WithFields(ctx, logger.Fields{
		"user_id": userID,
		"action":  "update_profile_success",
	}).Info("profile updated")

	return updated.Profile(), nil
}

// UpdatePassword re-hashes the password after checking the old one. Refresh
// tokens issued before the change stop working; access tokens run out their
// remaining lifetime.
func (s *AuthService) UpdatePassword(ctx context.Context, userID string, input UpdatePasswordInput) (err error) {
	ctx, span := tracing.StartSpan(ctx, "auth.UpdatePassword", attribute.String("user.id", userID))
	defer func() { tracing.End(span, err) }()

	user, err := s.loadActiveUser(ctx, userID)
	if err != nil {
		return err
	}

	if input.OldPassword == "" {
		recordPasswordChange(resultInvalid)
		return validationError("old_password", msgFieldRequired)
	}

	if err := s.hasher.Compare(user.PasswordHash, input.OldPassword); err != nil {
		if !errors.Is(err, commoncrypto.ErrPasswordMismatch) {
			recordPasswordChange(resultError)
			return commonerrors.ErrInternalError.WithCause(err)
		}
		recordPasswordChange(resultFailure)
		s.log.WithFields(ctx, logger.Fields{
			"user_id": userID,
			"action":  "update_password_old_mismatch",
		}).Warn("update password failed: old password incorrect")
		return ErrOldPasswordIncorrect.WithDetails(fieldError("old_password", "Your old password was entered incorrectly. Please enter it again."))
	}

	if err := ValidatePasswordPair(input.Password1, input.Password2); err != nil {
		recordPasswordChange(resultInvalid)
		return err
	}
	if err := s.passwords.Validate("password2", input.Password1, user.Email); err != nil {
		recordPasswordChange(resultInvalid)
		return err
	}

	hash, err := s.hasher.Hash(input.Password1)
	if err != nil {
		recordPasswordChange(resultError)
		return commonerrors.ErrInternalError.WithCause(err)
	}

	changedAt := s.clock.Now()
	err = s.store(ctx, func(ctx context.Context) error {
		return s.users.UpdatePassword(ctx, user.ID, hash, changedAt)
	})
	if err != nil {
		recordPasswordChange(resultError)
		s.log.WithFields(ctx, logger.Fields{
			"user_id": userID,
			"action":  "update_password_failed",
		}).Errorf("update password failed: %v", err)
		return err
	}

	recordPasswordChange(resultSuccess)
	s.log.WithFields(ctx, logger.Fields{
		"user_id": userID,
		"action":  "update_password_success",
	}).Info("password updated")
	return nil
}
