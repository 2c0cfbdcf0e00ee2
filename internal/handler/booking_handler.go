package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"localmart/internal/domain/booking"
	"localmart/internal/middleware"
	"localmart/internal/services"
	"localmart/internal/transport/httpdto"
	apperrors "localmart/pkg/errors"
)

type BookingHandler struct {
	service *services.BookingService
}

func NewBookingHandler(service *services.BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Create(c *gin.Context) {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	var req httpdto.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	b := booking.Booking{
		CustomerID:    userID,
		ProviderID:    req.ProviderID,
		ServiceID:     req.ServiceID,
		BookingDate:   req.BookingDate,
		TimeSlotLabel: req.TimeSlotLabel,
	}
	if err := h.service.Request(c.Request.Context(), &b); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(b))
}

func (h *BookingHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid booking id", "INVALID_REQUEST"))
		return
	}
	b, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(b))
}

func (h *BookingHandler) ListMine(c *gin.Context) {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	var (
		items []booking.Booking
		total int64
		err   error
	)
	if c.Query("role") == "provider" {
		items, total, err = h.service.ListForProvider(c.Request.Context(), userID, page, limit)
	} else {
		items, total, err = h.service.ListForCustomer(c.Request.Context(), userID, page, limit)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"bookings": items, "total": total}))
}

func (h *BookingHandler) Accept(c *gin.Context) {
	h.act(c, func(id, userID uuid.UUID) error {
		return h.service.Accept(c.Request.Context(), id, userID)
	})
}

func (h *BookingHandler) Reject(c *gin.Context) {
	var req httpdto.RejectBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("reason is required", "INVALID_REQUEST"))
		return
	}
	h.act(c, func(id, userID uuid.UUID) error {
		return h.service.Reject(c.Request.Context(), id, userID, req.Reason)
	})
}

func (h *BookingHandler) Reschedule(c *gin.Context) {
	var req httpdto.RescheduleBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	h.act(c, func(id, userID uuid.UUID) error {
		return h.service.Reschedule(c.Request.Context(), id, userID, req.BookingDate, req.TimeSlotLabel)
	})
}

func (h *BookingHandler) AnswerReschedule(c *gin.Context) {
	var req httpdto.RescheduleAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	h.act(c, func(id, userID uuid.UUID) error {
		return h.service.AnswerReschedule(c.Request.Context(), id, userID, req.Accept)
	})
}

func (h *BookingHandler) MarkEnRoute(c *gin.Context) {
	h.act(c, func(id, userID uuid.UUID) error {
		return h.service.MarkEnRoute(c.Request.Context(), id, userID)
	})
}

func (h *BookingHandler) Complete(c *gin.Context) {
	h.act(c, func(id, userID uuid.UUID) error {
		return h.service.Complete(c.Request.Context(), id, userID)
	})
}

func (h *BookingHandler) Dispute(c *gin.Context) {
	var req httpdto.DisputeBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("reason is required", "INVALID_REQUEST"))
		return
	}
	h.act(c, func(id, userID uuid.UUID) error {
		return h.service.Dispute(c.Request.Context(), id, userID, req.Reason)
	})
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	h.act(c, func(id, userID uuid.UUID) error {
		return h.service.Cancel(c.Request.Context(), id, userID)
	})
}

func (h *BookingHandler) StartPayment(c *gin.Context) {
	h.act(c, func(id, userID uuid.UUID) error {
		return h.service.StartPayment(c.Request.Context(), id, userID)
	})
}

// SettlePayment records the payment service's verdict. The route carries
// RequireRole("admin") because only the payment callback identity calls it.
func (h *BookingHandler) SettlePayment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid booking id", "INVALID_REQUEST"))
		return
	}
	var req httpdto.SettlePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	if err := h.service.SettlePayment(c.Request.Context(), id, req.Paid); err != nil {
		h.respondError(c, err)
		return
	}
	h.respondUpdated(c, id)
}

// ResolveDispute is admin-only; the route carries RequireRole("admin").
func (h *BookingHandler) ResolveDispute(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid booking id", "INVALID_REQUEST"))
		return
	}
	var req httpdto.ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("resolution must be completed or cancelled", "INVALID_REQUEST"))
		return
	}
	if err := h.service.ResolveDispute(c.Request.Context(), id, booking.Status(req.Resolution)); err != nil {
		h.respondError(c, err)
		return
	}
	h.respondUpdated(c, id)
}

// act runs a party-scoped transition for the authenticated caller and the
// booking named in the path.
func (h *BookingHandler) act(c *gin.Context, fn func(id, userID uuid.UUID) error) {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid booking id", "INVALID_REQUEST"))
		return
	}
	if err := fn(id, userID); err != nil {
		h.respondError(c, err)
		return
	}
	h.respondUpdated(c, id)
}

func (h *BookingHandler) respondUpdated(c *gin.Context, id uuid.UUID) {
	b, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(b))
}

// respondError maps domain errors onto HTTP statuses. A conflict names the
// current and requested state so the client can refetch and re-render.
func (h *BookingHandler) respondError(c *gin.Context, err error) {
	var conflict *apperrors.ConflictError
	switch {
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, httpdto.NewErrorResponse(conflict.Error(), "CONFLICT"))
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, httpdto.NewErrorResponse(err.Error(), "CONFLICT"))
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("booking not found", "NOT_FOUND"))
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("forbidden", "FORBIDDEN"))
	case errors.Is(err, apperrors.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "INVALID_REQUEST"))
	default:
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse(err.Error(), "INTERNAL_ERROR"))
	}
}
