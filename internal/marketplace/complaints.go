package marketplace

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/homeswift/internal/model"
	"github.com/sudo-init-do/homeswift/internal/utils"
)

type ComplaintBody struct {
	RequestID *int64 `json:"request_id" validate:"omitempty,gt=0"`
	Name      string `json:"name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone"`
	Subject   string `json:"subject" validate:"required,max=200"`
	Message   string `json:"message" validate:"required"`
}

// POST /complaints
func (h *Handler) CreateComplaint(c echo.Context) error {
	req := new(ComplaintBody)
	if err := utils.BindAndValidate(c, req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx := c.Request().Context()
	if req.RequestID != nil {
		if _, err := h.bookings.Get(ctx, *req.RequestID); err != nil {
			return BookingError(c, err)
		}
	}

	cmp := &model.Complaint{
		RequestID: req.RequestID,
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:     strings.TrimSpace(req.Phone),
		Subject:   strings.TrimSpace(req.Subject),
		Message:   req.Message,
		Status:    model.ComplaintPending,
	}
	if err := h.complaints.CreateComplaint(ctx, cmp); err != nil {
		h.logger.ErrorContext(ctx, "complaint not stored", "actor", cmp.Email, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not submit complaint"})
	}
	h.logger.InfoContext(ctx, "complaint filed", "complaint_id", cmp.ID, "actor", cmp.Email)
	return c.JSON(http.StatusCreated, echo.Map{"message": "Complaint submitted", "complaint": cmp})
}
