package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/profilehub/internal/account"
	"github.com/geocoder89/profilehub/internal/config"
	"github.com/geocoder89/profilehub/internal/domain/profile"
	"github.com/geocoder89/profilehub/internal/http/middlewares"
	"github.com/geocoder89/profilehub/internal/utils"
)

// AdminHandler drives account.Directory: one directory per request, and every
// mutation answers with the freshly re-fetched list.
type AdminHandler struct {
	admin  account.AdminStore
	mailer account.Mailer
}

func NewAdminHandler(admin account.AdminStore, mailer account.Mailer) *AdminHandler {
	return &AdminHandler{admin: admin, mailer: mailer}
}

type InviteRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type directoryView struct {
	Users []profile.Profile `json:"users"`
	Stats profile.Stats     `json:"stats"`
	Query string            `json:"query,omitempty"`
}

func viewOf(d *account.Directory, q string) directoryView {
	users := d.Search(q)
	if users == nil {
		users = []profile.Profile{}
	}
	return directoryView{Users: users, Stats: d.Stats(), Query: q}
}

func (h *AdminHandler) targetID(ctx *gin.Context) (string, bool) {
	id := ctx.Param("id")
	ctx.Set(middlewares.CtxTargetID, id)

	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "Invalid user id", nil)
		return "", false
	}
	return id, true
}

// directory builds the per-request directory; ?tz= (IANA name) sets the month used
// for "new this month", defaulting to the server's zone.
func (h *AdminHandler) directory(ctx *gin.Context) (*account.Directory, bool) {
	d := account.NewDirectory(h.admin, h.mailer)

	tz := ctx.Query("tz")
	if tz == "" {
		return d, true
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		RespondBadRequest(ctx, "Invalid time zone", gin.H{"tz": tz})
		return nil, false
	}
	return d.InLocation(loc), true
}

// GET /admin?q=&tz= and GET /api/admin/users?q=&tz=
func (h *AdminHandler) ListUsers(ctx *gin.Context) {
	d, ok := h.directory(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithRequestTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if err := d.Refresh(cctx); err != nil {
		RespondServiceError(ctx, err, "Could not list users")
		return
	}

	v := viewOf(d, ctx.Query("q"))
	respondWithETag(ctx, directoryETag(v), v)
}

// PUT /api/admin/users/:id/role
func (h *AdminHandler) ChangeRole(ctx *gin.Context) {
	id, ok := h.targetID(ctx)
	if !ok {
		return
	}

	var req profile.UpdateRoleRequest
	if !BindJSON(ctx, &req) {
		return
	}

	d, ok := h.directory(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithRequestTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if err := d.ChangeRole(cctx, id, req.Role); err != nil {
		RespondServiceError(ctx, err, "Could not update role")
		return
	}

	ctx.JSON(http.StatusOK, viewOf(d, ctx.Query("q")))
}

// DELETE /api/admin/users/:id with {"confirmed":true,"typed":"DELETE"}
func (h *AdminHandler) DeleteUser(ctx *gin.Context) {
	id, ok := h.targetID(ctx)
	if !ok {
		return
	}

	var confirm account.DeleteConfirmation
	if ctx.Request.ContentLength != 0 && !BindJSON(ctx, &confirm) {
		return
	}

	d, ok := h.directory(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithRequestTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if err := d.Delete(cctx, id, confirm); err != nil {
		RespondServiceError(ctx, err, "Could not delete user")
		return
	}

	ctx.JSON(http.StatusOK, viewOf(d, ctx.Query("q")))
}

// POST /api/admin/users/:id/password-reset
func (h *AdminHandler) SendPasswordReset(ctx *gin.Context) {
	id, ok := h.targetID(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithRequestTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	d := account.NewDirectory(h.admin, h.mailer)
	if err := d.SendPasswordReset(cctx, id); err != nil {
		RespondServiceError(ctx, err, "Could not send password reset")
		return
	}

	ctx.JSON(http.StatusAccepted, gin.H{"message": "Password reset email sent"})
}

// POST /api/admin/invitations
func (h *AdminHandler) Invite(ctx *gin.Context) {
	var req InviteRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithRequestTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	d := account.NewDirectory(h.admin, h.mailer)
	if err := d.Invite(cctx, req.Email); err != nil {
		RespondServiceError(ctx, err, "Could not send invitation")
		return
	}

	ctx.JSON(http.StatusAccepted, gin.H{"message": "Invitation sent", "email": req.Email})
}
