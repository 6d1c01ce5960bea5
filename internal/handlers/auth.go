package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/kiddies/internal/services"
	appErrors "github.com/charlesng35/kiddies/pkg/errors"
	"github.com/charlesng35/kiddies/pkg/response"
)

// AuthHandler manages login, invite onboarding and the current user's profile.
type AuthHandler struct {
	identity *services.IdentityService
	invites  *services.InviteService
	users    *services.UserService
}

func NewAuthHandler(identity *services.IdentityService, invites *services.InviteService, users *services.UserService) *AuthHandler {
	return &AuthHandler{identity: identity, invites: invites, users: users}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Token       string `json:"token"`
	Password    string `json:"password"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber"`
	Image       string `json:"image"`
}

type inviteRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type updateProfileRequest struct {
	FirstName   string `json:"firstName" validate:"max=128"`
	LastName    string `json:"lastName" validate:"max=128"`
	PhoneNumber string `json:"phoneNumber" validate:"max=32"`
	Image       string `json:"image"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return
	}

	session, err := h.identity.Login(requestContext(c), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, session)
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return
	}

	session, err := h.identity.Register(requestContext(c), services.RegisterInput{
		Token:       req.Token,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		Image:       req.Image,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, session)
}

// GET /api/auth/verify-invite?token=
func (h *AuthHandler) VerifyInvite(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.NewBadRequest("Token is required"))
		return
	}

	invite, err := h.invites.VerifyInvite(requestContext(c), token)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"valid": true, "email": invite.Email})
}

// POST /api/auth/invite
func (h *AuthHandler) Invite(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req inviteRequest
	if !bindAndValidate(c, &req) {
		return
	}

	issued, err := h.invites.CreateInvite(requestContext(c), req.Email, user.ID)
	if err != nil {
		if errors.Is(err, services.ErrEmailDeliveryFailed) && issued != nil {
			// The invite is stored; hand the link back so it can be shared manually.
			response.ErrorWithData(c, err, gin.H{
				"inviteId": issued.Invite.ID,
				"link":     issued.Link,
			})
			return
		}
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusCreated, "Invitation sent successfully", gin.H{
		"inviteId": issued.Invite.ID,
		"reused":   issued.Reused,
	})
}

// GET /api/auth/profile
func (h *AuthHandler) Profile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	response.Success(c, http.StatusOK, services.NewUserView(user))
}

// PUT /api/auth/profile
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req updateProfileRequest
	if !bindAndValidate(c, &req) {
		return
	}

	view, err := h.users.UpdateProfile(requestContext(c), user.ID, services.UpdateProfileInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		Image:       req.Image,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMessage(c, http.StatusOK, "Profile updated successfully", view)
}

// GET /api/auth/users
func (h *AuthHandler) Users(c *gin.Context) {
	users, err := h.users.ListActive(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, users)
}
