package transport

import (
	"net/http"

	"github.com/ds124wfegd/tithi-booking/internal/service"
	"github.com/ds124wfegd/tithi-booking/internal/transport/middleware"
	"github.com/gin-gonic/gin"
)

// CatalogHandler serves services, customers and the waitlist.
type CatalogHandler struct {
	catalogService  service.CatalogService
	waitlistService service.WaitlistService
}

func NewCatalogHandler(catalogService service.CatalogService, waitlistService service.WaitlistService) *CatalogHandler {
	return &CatalogHandler{
		catalogService:  catalogService,
		waitlistService: waitlistService,
	}
}

func (h *CatalogHandler) CreateService(c *gin.Context) {
	var req service.CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	req.TenantID = middleware.TenantID(c)

	svc, err := h.catalogService.CreateService(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, "Service created", svc)
}

func (h *CatalogHandler) GetService(c *gin.Context) {
	svc, err := h.catalogService.GetService(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, "", svc)
}

func (h *CatalogHandler) CreateCustomer(c *gin.Context) {
	var req service.CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	req.TenantID = middleware.TenantID(c)

	customer, err := h.catalogService.CreateCustomer(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, "Customer created", customer)
}

func (h *CatalogHandler) GetCustomer(c *gin.Context) {
	customer, err := h.catalogService.GetCustomer(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, "", customer)
}

func (h *CatalogHandler) AddToWaitlist(c *gin.Context) {
	var req service.AddWaitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	req.TenantID = middleware.TenantID(c)

	entry, err := h.waitlistService.AddToWaitlist(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, "Added to waitlist", entry)
}
