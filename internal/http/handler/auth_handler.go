package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Khaos-s/car-pass/internal/http/middleware"
	"github.com/Khaos-s/car-pass/internal/service"
)

// AuthHandler exposes the account endpoints.
type AuthHandler struct {
	Auth   *service.AuthService
	Logger *zap.Logger
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(auth *service.AuthService, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.L()
	}
	return &AuthHandler{Auth: auth, Logger: logger}
}

type registerRequest struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	StudentID  string `json:"studentId"`
	Role       string `json:"role"`
	SecretCode string `json:"secretCode"`
	Department string `json:"department"`
	Course     string `json:"course"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request payload"})
		return
	}

	result, err := h.Auth.Register(c.Request.Context(), service.RegistrationInput{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Password:   req.Password,
		StudentID:  req.StudentID,
		Role:       req.Role,
		SecretCode: req.SecretCode,
		Department: req.Department,
		Course:     req.Course,
	})
	if err != nil {
		h.respondError(c, err, "Registration failed. Please try again.")
		return
	}

	body := gin.H{
		"success": true,
		"message": "Registration successful! Please check your email to verify your account.",
		"data": gin.H{
			"userId": result.AccountID,
			"email":  result.Email,
			"name":   result.Name,
			"role":   result.Role,
		},
	}
	if result.VerificationLink != "" {
		body["verificationLink"] = result.VerificationLink
	}
	c.JSON(http.StatusCreated, body)
}

// VerifyEmail handles GET /api/auth/verify-email/:token.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	if err := h.Auth.VerifyEmail(c.Request.Context(), c.Param("token")); err != nil {
		h.respondError(c, err, "Verification failed. Please try again.")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Email verified successfully. You can now log in.",
	})
}

// ResendVerification handles POST /api/auth/resend-verification.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request payload"})
		return
	}

	if err := h.Auth.ResendVerification(c.Request.Context(), req.Email); err != nil {
		h.respondError(c, err, "Could not resend the verification email. Please try again.")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "If the account exists, a verification email has been sent.",
	})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request payload"})
		return
	}

	result, err := h.Auth.LoginWithPassword(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err, "Login failed. Please try again.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok || claims.Subject == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Missing subject claim"})
		return
	}

	profile, err := h.Auth.GetAccountInfo(c.Request.Context(), claims.Subject)
	if err != nil {
		h.respondError(c, err, "Could not load the account profile.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": profile})
}

// respondError maps caller-addressable failures to their status and message.
// Anything else is logged with detail and reported as a generic failure so
// internals never leak to the caller.
func (h *AuthHandler) respondError(c *gin.Context, err error, genericMessage string) {
	var authErr *service.AuthError
	if errors.As(err, &authErr) {
		c.JSON(authErr.Status, gin.H{"success": false, "message": authErr.Message})
		return
	}
	h.Logger.Error("request failed",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": genericMessage})
}
