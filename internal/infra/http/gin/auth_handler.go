package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"sprinter/internal/app/dto"
	authsvc "sprinter/internal/app/services/auth"
	domainuser "sprinter/internal/domain/user"
	"sprinter/internal/infra/security"
)

type AuthHTTP interface {
	Signup(c *gin.Context)
	Signin(c *gin.Context)
	Me(c *gin.Context)
}

type AuthHandler struct {
	Service *authsvc.Service
	Logger  *slog.Logger
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h AuthHandler) Signup(c *gin.Context) {
	if h.Service == nil {
		abortDetail(c, http.StatusServiceUnavailable, "Auth service unavailable")
		return
	}
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortDetail(c, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	result, err := h.Service.Signup(c.Request.Context(), authsvc.SignupParams{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.NewBearerToken(result.Token))
}

func (h AuthHandler) Signin(c *gin.Context) {
	if h.Service == nil {
		abortDetail(c, http.StatusServiceUnavailable, "Auth service unavailable")
		return
	}
	var req signinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortDetail(c, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	result, err := h.Service.Signin(c.Request.Context(), authsvc.SigninParams{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respondAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewBearerToken(result.Token))
}

func (h AuthHandler) Me(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.UserProfile{ID: p.ID, Name: p.Name, Email: p.Email})
}

func (h AuthHandler) respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, authsvc.ErrInvalidCredentials):
		c.Header("WWW-Authenticate", "Bearer")
		abortDetail(c, http.StatusUnauthorized, "Incorrect email or password")
	case errors.Is(err, authsvc.ErrEmailAlreadyRegistered):
		abortDetail(c, http.StatusBadRequest, "Email already registered")
	case errors.Is(err, authsvc.ErrInvalidEmail):
		abortDetail(c, http.StatusUnprocessableEntity, "Invalid email address")
	case errors.Is(err, authsvc.ErrPasswordTooShort):
		abortDetail(c, http.StatusUnprocessableEntity, "Password must be at least 6 characters")
	case errors.Is(err, security.ErrPasswordTooLong):
		abortDetail(c, http.StatusUnprocessableEntity, "Password is too long")
	case errors.Is(err, domainuser.ErrNameRequired), errors.Is(err, domainuser.ErrNameLength):
		abortDetail(c, http.StatusUnprocessableEntity, "Name must be between 2 and 100 characters")
	default:
		if h.Logger != nil {
			h.Logger.Error("auth operation failed", "error", err)
		}
		abortDetail(c, http.StatusInternalServerError, "Internal server error")
	}
}

var _ AuthHTTP = AuthHandler{}
