package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/kiddies/internal/services"
	"github.com/charlesng35/kiddies/pkg/response"
)

// SetupStatus tells the frontend whether to show the first-run screen. An installation is
// initialised once any account exists; HasAdmin is false when every administrator has been
// deactivated, leaving nobody able to send invites.
type SetupStatus struct {
	Initialized bool `json:"initialized"`
	HasAdmin    bool `json:"hasAdmin"`
}

// SetupHandler reports first-run state.
type SetupHandler struct {
	users *services.UserService
}

func NewSetupHandler(users *services.UserService) *SetupHandler {
	return &SetupHandler{users: users}
}

// GET /api/setup/status
func (h *SetupHandler) Status(c *gin.Context) {
	ctx := requestContext(c)

	count, err := h.users.Count(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := SetupStatus{Initialized: count > 0}
	if status.Initialized {
		admin, err := h.users.AdminExists(ctx)
		if err != nil {
			response.Error(c, err)
			return
		}
		status.HasAdmin = admin != nil
	}
	response.Success(c, http.StatusOK, status)
}
