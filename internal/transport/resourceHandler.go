package transport

import (
	"net/http"

	"github.com/ds124wfegd/tithi-booking/internal/entity"
	"github.com/ds124wfegd/tithi-booking/internal/service"
	"github.com/ds124wfegd/tithi-booking/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

type ResourceHandler struct {
	scheduleService     service.ScheduleService
	availabilityService service.AvailabilityService
}

func NewResourceHandler(scheduleService service.ScheduleService, availabilityService service.AvailabilityService) *ResourceHandler {
	return &ResourceHandler{
		scheduleService:     scheduleService,
		availabilityService: availabilityService,
	}
}

func (h *ResourceHandler) CreateResource(c *gin.Context) {
	var req service.CreateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	req.TenantID = middleware.TenantID(c)

	resource, err := h.scheduleService.CreateResource(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, "Resource created", resource)
}

func (h *ResourceHandler) GetResource(c *gin.Context) {
	resource, err := h.scheduleService.GetResource(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, "", resource)
}

func (h *ResourceHandler) ListResources(c *gin.Context) {
	resources, err := h.scheduleService.ListResources(c.Request.Context(), middleware.TenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if resources == nil {
		resources = []*entity.Resource{}
	}

	respondOK(c, http.StatusOK, "", resources)
}

// GetAvailability returns the slots of every resource-local day touched by
// [start, end].
func (h *ResourceHandler) GetAvailability(c *gin.Context) {
	start, err := queryTime(c, "start")
	if err != nil {
		respondError(c, err)
		return
	}
	end, err := queryTime(c, "end")
	if err != nil {
		respondError(c, err)
		return
	}
	if start == nil || end == nil {
		respondError(c, entity.ValidationError(map[string]string{"range": "start and end are required"}))
		return
	}

	slots, err := h.availabilityService.ComputeAvailability(c.Request.Context(), middleware.TenantID(c), c.Param("id"), *start, *end)
	if err != nil {
		respondError(c, err)
		return
	}
	if slots == nil {
		slots = []entity.Slot{}
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    slots,
		Meta:    gin.H{"count": len(slots)},
	})
}

func (h *ResourceHandler) CreateSchedule(c *gin.Context) {
	var req service.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	req.TenantID = middleware.TenantID(c)
	req.ResourceID = c.Param("id")

	schedule, err := h.scheduleService.CreateSchedule(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, "Schedule created", schedule)
}

func (h *ResourceHandler) ListSchedules(c *gin.Context) {
	schedules, err := h.scheduleService.ListSchedules(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if schedules == nil {
		schedules = []*entity.WorkSchedule{}
	}

	respondOK(c, http.StatusOK, "", schedules)
}

func (h *ResourceHandler) UpdateSchedule(c *gin.Context) {
	var req service.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	req.TenantID = middleware.TenantID(c)

	schedule, err := h.scheduleService.UpdateSchedule(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, "Schedule updated", schedule)
}

func (h *ResourceHandler) DeleteSchedule(c *gin.Context) {
	if err := h.scheduleService.DeleteSchedule(c.Request.Context(), middleware.TenantID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, "Schedule deleted", nil)
}
