package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spot-sort/issue-service/internal/api/dto"
	"github.com/spot-sort/issue-service/internal/domain"
	"github.com/spot-sort/issue-service/internal/service"
	apperrors "github.com/spot-sort/issue-service/pkg/util/errorutil"
)

// AuthHandler exposes signup, account verification and login.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	dob, err := parseDate(req.DateOfBirth)
	if err != nil {
		return err
	}

	ticketID, err := h.auth.Signup(c.UserContext(), service.SignupInput{
		Name:         req.Name,
		Email:        req.Email,
		Password:     req.Password,
		MobileNumber: req.MobileNumber,
		Gender:       domain.Gender(req.Gender),
		DateOfBirth:  dob,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.OTPSentResponse{Message: "Verification code sent to email.", TempID: ticketID},
	})
}

// RequestOTP handles POST /api/auth/otp/request.
func (h *AuthHandler) RequestOTP(c *fiber.Ctx) error {
	var req dto.OTPRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticketID, err := h.auth.RequestOTP(c.UserContext(), req.Email)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.OTPSentResponse{Message: "Verification code sent to email.", TempID: ticketID},
	})
}

// VerifyOTP handles POST /api/auth/otp/verify.
func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var req dto.OTPVerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.TempID == "" || req.EnteredOTP == "" {
		return apperrors.NewValidationError("tempId and enteredOtp required", nil)
	}
	user, token, err := h.auth.VerifyOTP(c.UserContext(), req.TempID, req.EnteredOTP)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{"user": userResponse(user), "auth": authResponse(token)},
	})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}
	user, token, err := h.auth.Login(c.UserContext(), req.Email, req.Password, domain.Role(strings.ToLower(req.Role)))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{"user": userResponse(user), "auth": authResponse(token)},
	})
}

func parseDate(val string) (*time.Time, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, val); err == nil {
			return &t, nil
		}
	}
	return nil, apperrors.NewValidationError("dateOfBirth must be YYYY-MM-DD", map[string]any{"field": "dateOfBirth"})
}
