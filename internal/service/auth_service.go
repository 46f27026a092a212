package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spot-sort/issue-service/internal/auth"
	"github.com/spot-sort/issue-service/internal/domain"
	"github.com/spot-sort/issue-service/internal/repository"
	apperrors "github.com/spot-sort/issue-service/pkg/util/errorutil"
)

const minPasswordLength = 6

// AuthService coordinates signup, OTP account verification and login.
type AuthService struct {
	users       repository.UserRepository
	credentials *auth.CredentialStore
	tokens      *auth.TokenManager
	tickets     TicketIssuer
	logger      *zap.Logger
}

// AuthDependencies bundles collaborators for the auth service.
type AuthDependencies struct {
	UserRepo     repository.UserRepository
	Credentials  *auth.CredentialStore
	TokenManager *auth.TokenManager
	Tickets      TicketIssuer
	Logger       *zap.Logger
}

// SignupInput is a citizen registration.
type SignupInput struct {
	Name         string
	Email        string
	Password     string
	MobileNumber string
	Gender       domain.Gender
	DateOfBirth  *time.Time
}

// AccountInput creates a staff account.
type AccountInput struct {
	Name         string
	Email        string
	Password     string
	MobileNumber string
	Role         domain.Role
	Zone         string
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	return &AuthService{
		users:       deps.UserRepo,
		credentials: deps.Credentials,
		tokens:      deps.TokenManager,
		tickets:     deps.Tickets,
		logger:      orNop(deps.Logger),
	}
}

// Signup registers or refreshes an unverified citizen account and emails
// a verification code. It returns the OTP ticket id.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (string, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = domain.NormalizeEmail(input.Email)
	input.MobileNumber = strings.TrimSpace(input.MobileNumber)
	input.Gender = domain.Gender(strings.ToLower(strings.TrimSpace(string(input.Gender))))
	if err := validateSignup(input); err != nil {
		return "", err
	}

	user, err := s.users.GetByEmail(ctx, input.Email)
	switch {
	case err == nil:
		if user.Verified {
			return "", apperrors.NewConflict("user already exists", map[string]any{"email": input.Email})
		}
		if err := s.refreshUnverified(ctx, user, input); err != nil {
			return "", err
		}
	case errors.Is(err, repository.ErrNotFound):
		user, err = s.createCitizen(ctx, input)
		if err != nil {
			return "", err
		}
	default:
		return "", apperrors.NewStorageError(err)
	}

	return s.issueVerification(ctx, user)
}

// RequestOTP sends a fresh verification code to an unverified account.
func (s *AuthService) RequestOTP(ctx context.Context, email string) (string, error) {
	email = domain.NormalizeEmail(email)
	if !validEmail(email) {
		return "", apperrors.NewValidationError("a valid email is required", map[string]any{"field": "email"})
	}
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return "", apperrors.NewNotFound("user", map[string]any{"email": email})
	}
	if err != nil {
		return "", apperrors.NewStorageError(err)
	}
	if user.Verified {
		return "", apperrors.NewConflict("account is already verified", nil)
	}
	return s.issueVerification(ctx, user)
}

// VerifyOTP redeems an account verification code, marks the account
// verified and signs the caller in.
func (s *AuthService) VerifyOTP(ctx context.Context, ticketID, code string) (*domain.User, domain.Token, error) {
	draft, err := s.tickets.Redeem(ctx, ticketID, code, domain.DraftKindAccountVerification)
	if err != nil {
		return nil, domain.Token{}, err
	}
	if draft.Account == nil {
		return nil, domain.Token{}, apperrors.NewValidationError("ticket does not verify an account", nil)
	}

	user, err := s.users.GetByID(ctx, draft.Account.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.Token{}, apperrors.NewNotFound("user", nil)
	}
	if err != nil {
		return nil, domain.Token{}, apperrors.NewStorageError(err)
	}
	if user.Email != draft.Account.Email {
		return nil, domain.Token{}, apperrors.NewConflict("account email changed since the code was sent", nil)
	}

	if !user.Verified {
		user.Verified = true
		if err := s.users.Update(ctx, user); err != nil {
			return nil, domain.Token{}, apperrors.NewStorageError(err)
		}
		s.logger.Info("account verified", zap.String("user_id", user.ID))
	}
	return s.signIn(user)
}

// Login authenticates by email and password. When role is set it must
// match the account's role.
func (s *AuthService) Login(ctx context.Context, email, password string, role domain.Role) (*domain.User, domain.Token, error) {
	invalid := apperrors.NewUnauthorized("invalid credentials")

	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.Token{}, invalid
	}
	if err != nil {
		return nil, domain.Token{}, apperrors.NewStorageError(err)
	}

	ok, err := s.credentials.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, domain.Token{}, apperrors.NewCredentialError(err)
	}
	if !ok {
		return nil, domain.Token{}, invalid
	}
	if !user.Verified {
		return nil, domain.Token{}, apperrors.NewUnauthorized("account is not verified")
	}
	if role != "" && role != user.Role {
		return nil, domain.Token{}, apperrors.NewUnauthorized("invalid credentials or role mismatch")
	}
	return s.signIn(user)
}

// CreateAccount lets an admin provision an authority or admin account.
// Provisioned accounts are verified.
func (s *AuthService) CreateAccount(ctx context.Context, actor domain.Actor, input AccountInput) (*domain.User, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("only admins may create accounts")
	}
	return s.provision(ctx, input)
}

// EnsureAdmin creates a verified admin account for email unless an account
// with that email already exists.
func (s *AuthService) EnsureAdmin(ctx context.Context, name, email, password string) (*domain.User, bool, error) {
	existing, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, apperrors.NewStorageError(err)
	}
	user, err := s.provision(ctx, AccountInput{Name: name, Email: email, Password: password, Role: domain.RoleAdmin})
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func (s *AuthService) provision(ctx context.Context, input AccountInput) (*domain.User, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = domain.NormalizeEmail(input.Email)
	input.Zone = strings.TrimSpace(input.Zone)
	switch {
	case input.Name == "":
		return nil, apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	case !validEmail(input.Email):
		return nil, apperrors.NewValidationError("a valid email is required", map[string]any{"field": "email"})
	case len(input.Password) < minPasswordLength:
		return nil, apperrors.NewValidationError("password is too short", map[string]any{"min_length": minPasswordLength})
	case input.Role != domain.RoleAuthority && input.Role != domain.RoleAdmin:
		return nil, apperrors.NewValidationError("role must be authority or admin", map[string]any{"field": "role"})
	case input.Role == domain.RoleAuthority && input.Zone == "":
		return nil, apperrors.NewValidationError("zone is required for authorities", map[string]any{"field": "zone"})
	}

	hash, err := s.credentials.Hash(input.Password)
	if err != nil {
		return nil, apperrors.NewCredentialError(err)
	}
	user := &domain.User{
		Name:         input.Name,
		Email:        input.Email,
		MobileNumber: strings.TrimSpace(input.MobileNumber),
		PasswordHash: hash,
		Role:         input.Role,
		Zone:         input.Zone,
		Verified:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("user already exists", map[string]any{"email": input.Email})
		}
		return nil, apperrors.NewStorageError(err)
	}
	s.logger.Info("account provisioned",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
		zap.String("zone", user.Zone),
	)
	return user, nil
}

func (s *AuthService) createCitizen(ctx context.Context, input SignupInput) (*domain.User, error) {
	hash, err := s.credentials.Hash(input.Password)
	if err != nil {
		return nil, apperrors.NewCredentialError(err)
	}
	user := &domain.User{
		Name:         input.Name,
		Email:        input.Email,
		MobileNumber: input.MobileNumber,
		Gender:       input.Gender,
		DateOfBirth:  input.DateOfBirth,
		PasswordHash: hash,
		Role:         domain.RoleCitizen,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("user already exists", map[string]any{"email": input.Email})
		}
		return nil, apperrors.NewStorageError(err)
	}
	s.logger.Info("citizen signed up", zap.String("user_id", user.ID))
	return user, nil
}

// refreshUnverified overwrites the profile of an account nobody has
// verified yet. The hash is only recomputed when the password changed.
func (s *AuthService) refreshUnverified(ctx context.Context, user *domain.User, input SignupInput) error {
	same, err := s.credentials.Verify(input.Password, user.PasswordHash)
	if err != nil {
		return apperrors.NewCredentialError(err)
	}
	if !same {
		hash, err := s.credentials.Hash(input.Password)
		if err != nil {
			return apperrors.NewCredentialError(err)
		}
		user.PasswordHash = hash
	}
	user.Name = input.Name
	user.MobileNumber = input.MobileNumber
	user.Gender = input.Gender
	user.DateOfBirth = input.DateOfBirth
	if err := s.users.Update(ctx, user); err != nil {
		return apperrors.NewStorageError(err)
	}
	return nil
}

func (s *AuthService) issueVerification(ctx context.Context, user *domain.User) (string, error) {
	draft := domain.Draft{
		Kind:    domain.DraftKindAccountVerification,
		Account: &domain.AccountDraft{UserID: user.ID, Email: user.Email},
	}
	return s.tickets.Issue(ctx, draft, user.Email)
}

func (s *AuthService) signIn(user *domain.User) (*domain.User, domain.Token, error) {
	token, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, domain.Token{}, apperrors.NewInternalError(err)
	}
	return user, token, nil
}

func validateSignup(input SignupInput) error {
	switch {
	case input.Name == "":
		return apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	case !validEmail(input.Email):
		return apperrors.NewValidationError("a valid email is required", map[string]any{"field": "email"})
	case len(input.Password) < minPasswordLength:
		return apperrors.NewValidationError("password is too short", map[string]any{"min_length": minPasswordLength})
	case input.MobileNumber == "":
		return apperrors.NewValidationError("mobile number is required", map[string]any{"field": "mobileNumber"})
	case input.Gender != "" && !input.Gender.Valid():
		return apperrors.NewValidationError("gender must be male, female or other", map[string]any{"field": "gender"})
	}
	return nil
}
