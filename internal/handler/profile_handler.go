package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Tech-Dev-Skill/tiger-mind/internal/models"
	appErrors "github.com/Tech-Dev-Skill/tiger-mind/pkg/errors"
	"github.com/Tech-Dev-Skill/tiger-mind/pkg/response"
)

type profileService interface {
	Get(ctx context.Context, user models.UserInfo) (*models.Profile, error)
	Update(ctx context.Context, userID string, update models.ProfileUpdate) error
}

// ProfileHandler exposes the caller's profile.
type ProfileHandler struct {
	profiles profileService
}

// NewProfileHandler constructs the handler.
func NewProfileHandler(profiles profileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// Get godoc
// @Summary Caller profile
// @Tags Profile
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/profile [get]
func (h *ProfileHandler) Get(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	profile, err := h.profiles.Get(c.Request.Context(), claims.Info())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "profile", profile)
}

// Update godoc
// @Summary Update name, phone and country
// @Tags Profile
// @Accept x-www-form-urlencoded,json
// @Param payload body models.ProfileUpdate true "Profile"
// @Success 303
// @Failure 400 {object} map[string]string
// @Router /api/profile/update [post]
func (h *ProfileHandler) Update(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	var update models.ProfileUpdate
	if err := c.ShouldBind(&update); err != nil {
		h.fail(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "Datos de perfil inválidos"))
		return
	}
	if err := h.profiles.Update(c.Request.Context(), claims.UserID, update); err != nil {
		h.fail(c, err)
		return
	}
	if wantsJSON(c) {
		response.JSON(c, http.StatusOK, gin.H{"message": "Perfil actualizado"})
		return
	}
	c.Redirect(http.StatusSeeOther, ProfilePagePath+"?success=true")
}

func (h *ProfileHandler) fail(c *gin.Context, err error) {
	if wantsJSON(c) {
		response.Error(c, err)
		return
	}
	redirectWithError(c, ProfilePagePath, err)
}
