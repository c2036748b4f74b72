package transport

import (
	"net/http"

	"github.com/ds124wfegd/tithi-booking/internal/entity"
	"github.com/ds124wfegd/tithi-booking/internal/service"
	"github.com/ds124wfegd/tithi-booking/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

// OutboxHandler is the operator view over delivery state.
type OutboxHandler struct {
	outboxService service.OutboxService
}

func NewOutboxHandler(outboxService service.OutboxService) *OutboxHandler {
	return &OutboxHandler{outboxService: outboxService}
}

func (h *OutboxHandler) ListEvents(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		respondError(c, err)
		return
	}

	events, err := h.outboxService.ListEvents(c.Request.Context(), middleware.TenantID(c), entity.OutboxStatus(c.Query("status")), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if events == nil {
		events = []*entity.OutboxEvent{}
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    events,
		Meta:    gin.H{"count": len(events)},
	})
}

func (h *OutboxHandler) ListDeadLetters(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		respondError(c, err)
		return
	}

	tenantID := middleware.TenantID(c)
	letters, err := h.outboxService.ListDeadLetters(c.Request.Context(), tenantID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	stats, err := h.outboxService.DeadLetterStats(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    letters,
		Meta:    stats,
	})
}

func (h *OutboxHandler) RequeueDeadLetter(c *gin.Context) {
	event, err := h.outboxService.RequeueDeadLetter(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusAccepted, "Event requeued", event)
}
