package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/geocoder89/secondchance/internal/service"
	"github.com/gin-gonic/gin"
)

type CredentialService interface {
	Register(ctx context.Context, in service.RegisterInput) (service.RegisterResult, error)
	Login(ctx context.Context, email, password string) (service.LoginResult, error)
	UpdateProfile(ctx context.Context, email string, in service.ProfileUpdate) (service.UpdateResult, error)
}

// header carrying the account to update
const updateIdentifierHeader = "email"

type AuthHandler struct {
	svc CredentialService
}

func NewAuthHandler(svc CredentialService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// No binding rules: registration accepts whatever the client sends.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	AuthToken string `json:"authtoken"`
	Email     string `json:"email"`
}

type LoginResponse struct {
	AuthToken string `json:"authtoken"`
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail"`
}

type UpdateResponse struct {
	AuthToken string `json:"authtoken"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	res, err := h.svc.Register(ctx.Request.Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		if errors.Is(err, service.ErrDuplicateEmail) {
			RespondError(ctx, http.StatusBadRequest, "email_taken", "Email is already in use.", nil)
			return
		}

		RespondInternal(ctx, "Could not create user")
		return
	}

	ctx.JSON(http.StatusOK, RegisterResponse{AuthToken: res.Token, Email: res.Email})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	res, err := h.svc.Login(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		// unknown email and wrong password look the same from outside
		if errors.Is(err, service.ErrUserNotFound) || errors.Is(err, service.ErrInvalidCredentials) {
			RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
			return
		}

		RespondInternal(ctx, "Could not log in")
		return
	}

	ctx.JSON(http.StatusOK, LoginResponse{AuthToken: res.Token, UserName: res.FirstName, UserEmail: res.Email})
}

func (h *AuthHandler) Update(ctx *gin.Context) {
	email := ctx.GetHeader(updateIdentifierHeader)
	if email == "" {
		RespondError(ctx, http.StatusBadRequest, "missing_identifier", "Email not found in the request headers.", nil)
		return
	}

	var req service.ProfileUpdate

	if !BindJSON(ctx, &req) {
		return
	}

	res, err := h.svc.UpdateProfile(ctx.Request.Context(), email, req)
	if err != nil {
		var vErr *service.ValidationError

		switch {
		case errors.As(err, &vErr):
			RespondBadRequest(ctx, "Invalid profile update", ValidationDetails(vErr))
		case errors.Is(err, service.ErrMissingIdentifier):
			RespondError(ctx, http.StatusBadRequest, "missing_identifier", "Email not found in the request headers.", nil)
		case errors.Is(err, service.ErrUserNotFound):
			RespondNotFound(ctx, "User not found")
		default:
			RespondInternal(ctx, "Could not update profile")
		}
		return
	}

	ctx.JSON(http.StatusOK, UpdateResponse{AuthToken: res.Token})
}
