package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spot-sort/issue-service/internal/domain"
	apperrors "github.com/spot-sort/issue-service/pkg/util/errorutil"
)

func signupInput() SignupInput {
	dob := time.Date(1990, 12, 10, 0, 0, 0, 0, time.UTC)
	return SignupInput{
		Name:         "Grace Hopper",
		Email:        "Grace@Example.com",
		Password:     "cobol1959",
		MobileNumber: "5550123",
		Gender:       domain.GenderFemale,
		DateOfBirth:  &dob,
	}
}

func TestSignupVerifyLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ticketID, err := f.authSvc.Signup(ctx, signupInput())
	require.NoError(t, err)

	_, _, err = f.authSvc.Login(ctx, "grace@example.com", "cobol1959", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized), "unverified login must fail")

	user, token, err := f.authSvc.VerifyOTP(ctx, ticketID, f.notifier.lastCode(t, "grace@example.com"))
	require.NoError(t, err)
	assert.True(t, user.Verified)
	assert.Equal(t, domain.RoleCitizen, user.Role)
	assert.NotEmpty(t, token.Value)

	claims, err := f.tokens.ParseToken(token.Value)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	user, _, err = f.authSvc.Login(ctx, "GRACE@example.com", "cobol1959", domain.RoleCitizen)
	require.NoError(t, err)
	assert.Equal(t, "grace@example.com", user.Email)

	_, _, err = f.authSvc.Login(ctx, "grace@example.com", "wrong-password", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	_, _, err = f.authSvc.Login(ctx, "grace@example.com", "cobol1959", domain.RoleAuthority)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	_, _, err = f.authSvc.Login(ctx, "nobody@example.com", "cobol1959", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	_, err = f.authSvc.Signup(ctx, signupInput())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	_, err = f.authSvc.RequestOTP(ctx, "grace@example.com")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestSignupAgainKeepsHashWhenPasswordUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.authSvc.Signup(ctx, signupInput())
	require.NoError(t, err)
	before, err := f.users.GetByEmail(ctx, "grace@example.com")
	require.NoError(t, err)

	again := signupInput()
	again.Name = "Grace B. Hopper"
	_, err = f.authSvc.Signup(ctx, again)
	require.NoError(t, err)
	after, err := f.users.GetByEmail(ctx, "grace@example.com")
	require.NoError(t, err)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)
	assert.Equal(t, "Grace B. Hopper", after.Name)
	assert.Equal(t, before.ID, after.ID)

	again.Password = "navy-admiral"
	_, err = f.authSvc.Signup(ctx, again)
	require.NoError(t, err)
	changed, err := f.users.GetByEmail(ctx, "grace@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, before.PasswordHash, changed.PasswordHash)
}

func TestSignupClaimsAnonymousReporterAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	input := anonymousReport()
	input.ReporterEmail = "grace@example.com"
	ticketID, err := f.submitSvc.RequestAnonymous(ctx, input)
	require.NoError(t, err)
	result, err := f.submitSvc.ConfirmAnonymous(ctx, ticketID, f.notifier.lastCode(t, "grace@example.com"), pngEvidence)
	require.NoError(t, err)

	signupTicket, err := f.authSvc.Signup(ctx, signupInput())
	require.NoError(t, err)
	user, _, err := f.authSvc.VerifyOTP(ctx, signupTicket, f.notifier.lastCode(t, "grace@example.com"))
	require.NoError(t, err)
	assert.Equal(t, *result.Issue.ReporterID, user.ID)

	issues, err := f.issueSvc.List(ctx, domain.ActorFromUser(user), IssueListFilter{})
	require.NoError(t, err)
	assert.Len(t, issues, 1)
}

func TestRequestOTPResendsCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.authSvc.Signup(ctx, signupInput())
	require.NoError(t, err)

	ticketID, err := f.authSvc.RequestOTP(ctx, "grace@example.com")
	require.NoError(t, err)
	_, _, err = f.authSvc.VerifyOTP(ctx, ticketID, f.notifier.lastCode(t, "grace@example.com"))
	require.NoError(t, err)

	_, err = f.authSvc.RequestOTP(ctx, "missing@example.com")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestVerifyOTPRejectsReportTicket(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ticketID, err := f.submitSvc.RequestAnonymous(ctx, anonymousReport())
	require.NoError(t, err)

	code := f.notifier.lastCode(t, "ada@example.com")
	_, _, err = f.authSvc.VerifyOTP(ctx, ticketID, code)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	// the report ticket survives and can still be confirmed
	result, err := f.submitSvc.ConfirmAnonymous(ctx, ticketID, code, pngEvidence)
	require.NoError(t, err)
	assert.Regexp(t, potholeTicket, result.Issue.TicketID)
}

func TestSignupValidation(t *testing.T) {
	f := newFixture(t)
	cases := map[string]func(*SignupInput){
		"missing name":   func(in *SignupInput) { in.Name = "" },
		"bad email":      func(in *SignupInput) { in.Email = "grace" },
		"short password": func(in *SignupInput) { in.Password = "abc" },
		"missing mobile": func(in *SignupInput) { in.MobileNumber = "" },
		"bad gender":     func(in *SignupInput) { in.Gender = "robot" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			input := signupInput()
			mutate(&input)
			_, err := f.authSvc.Signup(context.Background(), input)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation), "got %v", err)
		})
	}
}

func TestCreateAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := f.account(t, "admin@example.com", domain.RoleAdmin, "")
	citizen := f.account(t, "citizen@example.com", domain.RoleCitizen, "")

	input := AccountInput{Name: "North Desk", Email: "north@example.com", Password: "roads-r-us", Role: domain.RoleAuthority, Zone: "North"}

	_, err := f.authSvc.CreateAccount(ctx, citizen, input)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	noZone := input
	noZone.Zone = ""
	_, err = f.authSvc.CreateAccount(ctx, admin, noZone)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	citizenRole := input
	citizenRole.Role = domain.RoleCitizen
	_, err = f.authSvc.CreateAccount(ctx, admin, citizenRole)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	user, err := f.authSvc.CreateAccount(ctx, admin, input)
	require.NoError(t, err)
	assert.True(t, user.Verified)
	assert.Equal(t, "North", user.Zone)

	_, err = f.authSvc.CreateAccount(ctx, admin, input)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	logged, _, err := f.authSvc.Login(ctx, "north@example.com", "roads-r-us", domain.RoleAuthority)
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, created, err := f.authSvc.EnsureAdmin(ctx, "Root", "root@example.com", "bootstrap-pass")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.RoleAdmin, first.Role)

	second, created, err := f.authSvc.EnsureAdmin(ctx, "Root", "ROOT@example.com", "other-pass")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}
