package dto

import "time"

// SignupRequest payload for citizen registration.
type SignupRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	MobileNumber string `json:"mobileNumber"`
	Gender       string `json:"gender"`
	DateOfBirth  string `json:"dateOfBirth"`
}

// LoginRequest payload for login. Role is optional and must match the account.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// OTPRequest asks for a fresh account verification code.
type OTPRequest struct {
	Email string `json:"email"`
}

// OTPVerifyRequest redeems an account verification code.
type OTPVerifyRequest struct {
	TempID     string `json:"tempId"`
	EnteredOTP string `json:"enteredOtp"`
}

// CreateAccountRequest lets an admin provision staff.
type CreateAccountRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	MobileNumber string `json:"mobileNumber"`
	Role         string `json:"role"`
	Zone         string `json:"zone"`
}

// OTPSentResponse is returned whenever a verification code is emailed.
type OTPSentResponse struct {
	Message string `json:"message"`
	TempID  string `json:"tempId"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	MobileNumber string     `json:"mobileNumber,omitempty"`
	Gender       string     `json:"gender,omitempty"`
	DateOfBirth  *time.Time `json:"dateOfBirth,omitempty"`
	Role         string     `json:"role"`
	Zone         string     `json:"zone,omitempty"`
	Verified     bool       `json:"verified"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Role      string    `json:"role"`
	UserID    string    `json:"userId"`
	Zone      string    `json:"zone,omitempty"`
}
