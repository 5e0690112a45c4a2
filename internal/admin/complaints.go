package admin

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/homeswift/internal/marketplace"
	"github.com/sudo-init-do/homeswift/internal/middleware"
	"github.com/sudo-init-do/homeswift/internal/model"
	"github.com/sudo-init-do/homeswift/internal/store"
	"github.com/sudo-init-do/homeswift/internal/utils"
)

// GET /admin/complaints?status=
func (h *Handler) ListComplaints(c echo.Context) error {
	status := model.ComplaintStatus(c.QueryParam("status"))
	if status != "" && !status.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}
	items, err := h.complaints.ListComplaints(c.Request().Context(), status)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch complaints"})
	}
	return c.JSON(http.StatusOK, echo.Map{"complaints": items})
}

type UpdateComplaintBody struct {
	Status     *model.ComplaintStatus `json:"status" validate:"omitempty,oneof=pending in_progress resolved closed"`
	AdminNotes *string                `json:"admin_notes"`
}

// PATCH /admin/complaints/:id
// Resolving or closing stamps resolved_at once.
func (h *Handler) UpdateComplaint(c echo.Context) error {
	id, ok := marketplace.ParamID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid complaint id"})
	}
	req := new(UpdateComplaintBody)
	if err := utils.BindAndValidate(c, req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if req.Status == nil && req.AdminNotes == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to update"})
	}

	ctx := c.Request().Context()
	cmp, err := h.complaints.UpdateComplaint(ctx, id, store.ComplaintPatch{Status: req.Status, AdminNotes: req.AdminNotes})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "complaint not found"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update complaint"})
	}
	h.logger.InfoContext(ctx, "complaint updated", "complaint_id", id, "status", cmp.Status, "actor", middleware.Email(c))
	return c.JSON(http.StatusOK, echo.Map{"complaint": cmp})
}
