package transport

import (
	"net/http"

	"github.com/ds124wfegd/tithi-booking/internal/entity"
	"github.com/ds124wfegd/tithi-booking/internal/service"
	"github.com/ds124wfegd/tithi-booking/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	bookingService service.BookingService
}

func NewBookingHandler(bookingService service.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

// ConfirmBookingRequest is the body of a confirm call.
type ConfirmBookingRequest struct {
	RequirePayment bool `json:"require_payment"`
}

// CancelBookingRequest is the body of a cancel call.
type CancelBookingRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req service.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	req.TenantID = middleware.TenantID(c)

	booking, err := h.bookingService.CreateBooking(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, "Booking created", booking)
}

func (h *BookingHandler) GetBooking(c *gin.Context) {
	booking, err := h.bookingService.GetBooking(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, "", booking)
}

func (h *BookingHandler) ListBookings(c *gin.Context) {
	filter := entity.BookingFilter{
		TenantID:   middleware.TenantID(c),
		ResourceID: c.Query("resource_id"),
		CustomerID: c.Query("customer_id"),
		Status:     entity.BookingStatus(c.Query("status")),
	}

	var err error
	if filter.From, err = queryTime(c, "from"); err != nil {
		respondError(c, err)
		return
	}
	if filter.To, err = queryTime(c, "to"); err != nil {
		respondError(c, err)
		return
	}
	if filter.Limit, err = queryLimit(c); err != nil {
		respondError(c, err)
		return
	}

	bookings, err := h.bookingService.ListBookings(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if bookings == nil {
		bookings = []*entity.Booking{}
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    bookings,
		Meta:    gin.H{"count": len(bookings)},
	})
}

func (h *BookingHandler) ConfirmBooking(c *gin.Context) {
	var req ConfirmBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, bindError(err))
			return
		}
	}

	booking, err := h.bookingService.ConfirmBooking(c.Request.Context(), middleware.TenantID(c), c.Param("id"), req.RequirePayment)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, "Booking confirmed", booking)
}

func (h *BookingHandler) CheckInBooking(c *gin.Context) {
	booking, err := h.bookingService.CheckInBooking(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, "Booking checked in", booking)
}

func (h *BookingHandler) CompleteBooking(c *gin.Context) {
	booking, err := h.bookingService.CompleteBooking(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, "Booking completed", booking)
}

func (h *BookingHandler) CancelBooking(c *gin.Context) {
	var req CancelBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, bindError(err))
			return
		}
	}

	booking, err := h.bookingService.CancelBooking(c.Request.Context(), middleware.TenantID(c), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, "Booking canceled", booking)
}

func (h *BookingHandler) MarkNoShow(c *gin.Context) {
	booking, err := h.bookingService.MarkNoShow(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, "Booking marked as no-show", booking)
}

func (h *BookingHandler) RescheduleBooking(c *gin.Context) {
	req, ok := h.bindReschedule(c)
	if !ok {
		return
	}

	booking, err := h.bookingService.RescheduleBooking(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, "Booking rescheduled", booking)
}

// MoveBooking serves calendar drag-and-drop.
func (h *BookingHandler) MoveBooking(c *gin.Context) {
	req, ok := h.bindReschedule(c)
	if !ok {
		return
	}

	booking, err := h.bookingService.MoveBooking(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, "Booking moved", booking)
}

func (h *BookingHandler) bindReschedule(c *gin.Context) (*service.RescheduleRequest, bool) {
	var req service.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return nil, false
	}
	req.TenantID = middleware.TenantID(c)
	req.BookingID = c.Param("id")
	return &req, true
}

func (h *BookingHandler) GetBookingStats(c *gin.Context) {
	from, err := queryTime(c, "from")
	if err != nil {
		respondError(c, err)
		return
	}
	to, err := queryTime(c, "to")
	if err != nil {
		respondError(c, err)
		return
	}
	if from == nil || to == nil {
		respondError(c, entity.ValidationError(map[string]string{"range": "from and to are required"}))
		return
	}

	stats, err := h.bookingService.GetBookingStats(c.Request.Context(), middleware.TenantID(c), *from, *to)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, "", stats)
}
