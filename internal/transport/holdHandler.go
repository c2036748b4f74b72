package transport

import (
	"net/http"

	"github.com/ds124wfegd/tithi-booking/internal/service"
	"github.com/ds124wfegd/tithi-booking/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

type HoldHandler struct {
	holdService service.HoldService
}

func NewHoldHandler(holdService service.HoldService) *HoldHandler {
	return &HoldHandler{holdService: holdService}
}

func (h *HoldHandler) CreateHold(c *gin.Context) {
	var req service.CreateHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	req.TenantID = middleware.TenantID(c)

	hold, err := h.holdService.CreateHold(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, "Hold created", hold)
}

func (h *HoldHandler) GetHold(c *gin.Context) {
	hold, err := h.holdService.GetHold(c.Request.Context(), middleware.TenantID(c), c.Param("key"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, "", hold)
}

// ReleaseHold always answers 200; released tells whether a live hold was
// removed.
func (h *HoldHandler) ReleaseHold(c *gin.Context) {
	released, err := h.holdService.ReleaseHold(c.Request.Context(), middleware.TenantID(c), c.Param("key"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, "", gin.H{"released": released})
}
