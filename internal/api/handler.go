package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/reliefworks/go-relief-registry/internal/events"
	"github.com/reliefworks/go-relief-registry/internal/registry"
	"github.com/reliefworks/go-relief-registry/internal/store"
)

type Handler struct {
	reg   *registry.Registry
	bc    *events.Broadcaster
	store store.Store // nil disables the notifications query
}

func NewHandler(reg *registry.Registry, bc *events.Broadcaster, st store.Store) *Handler {
	return &Handler{
		reg:   reg,
		bc:    bc,
		store: st,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)

	r.GET("/api/disasters/active", h.getActiveDisasters)
	r.GET("/api/disasters/:id", h.getDisaster)
	r.GET("/api/disasters/:id/workers", h.getDisasterWorkers)
	r.GET("/api/resources/available", h.getAvailableResources)
	r.GET("/api/resources/:id", h.getResource)
	r.GET("/api/workers/:id", h.getWorker)
	r.GET("/api/balance", h.getBalance)
	r.GET("/api/notifications", h.listNotifications)
	r.GET("/api/events", h.streamEvents)

	mutating := r.Group("/api", ActorRequired())
	mutating.POST("/disasters", h.reportDisaster)
	mutating.POST("/disasters/:id/resources", h.allocateResource)
	mutating.PUT("/workers", h.registerWorker)
	mutating.POST("/assignments", h.assignWorker)
	mutating.POST("/disasters/:id/donations", h.donateFunds)
	mutating.POST("/disasters/:id/allocations", h.allocateFunds)
	mutating.POST("/workers/:id/complete", h.completeMission)
	mutating.POST("/disasters/:id/close", h.closeDisaster)
}

type reportDisasterRequest struct {
	Location string `json:"location" binding:"required"`
	Type     string `json:"type" binding:"required"`
	Severity int    `json:"severity" binding:"required,severity"`
}

type allocateResourceRequest struct {
	Type     string `json:"type" binding:"required"`
	Quantity int64  `json:"quantity" binding:"required,gt=0"`
	Location string `json:"location" binding:"required"`
}

type registerWorkerRequest struct {
	Name     string `json:"name" binding:"required"`
	Skills   string `json:"skills" binding:"required"`
	Location string `json:"location" binding:"required"`
}

type assignWorkerRequest struct {
	WorkerID   string `json:"worker_id" binding:"required"`
	DisasterID uint64 `json:"disaster_id" binding:"required"`
}

type donateFundsRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

type allocateFundsRequest struct {
	Amount  int64  `json:"amount" binding:"required"`
	Purpose string `json:"purpose"`
}

func (h *Handler) reportDisaster(c *gin.Context) {
	var req reportDisasterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.reg.ReportDisaster(c.Request.Context(), actor(c), req.Location, req.Type, req.Severity)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) allocateResource(c *gin.Context) {
	disasterID, ok := idParam(c)
	if !ok {
		return
	}
	var req allocateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.reg.AllocateResource(c.Request.Context(), actor(c), disasterID, req.Type, req.Quantity, req.Location)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// registerWorker registers the calling actor; re-registering overwrites the
// record and wipes mission history.
func (h *Handler) registerWorker(c *gin.Context) {
	var req registerWorkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	w, err := h.reg.RegisterWorker(c.Request.Context(), actor(c), req.Name, req.Skills, req.Location)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h *Handler) assignWorker(c *gin.Context) {
	var req assignWorkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.reg.AssignWorker(c.Request.Context(), actor(c), req.WorkerID, req.DisasterID); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) donateFunds(c *gin.Context) {
	disasterID, ok := idParam(c)
	if !ok {
		return
	}
	var req donateFundsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	raised, err := h.reg.DonateFunds(c.Request.Context(), actor(c), disasterID, req.Amount)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"funds_raised": raised})
}

func (h *Handler) allocateFunds(c *gin.Context) {
	disasterID, ok := idParam(c)
	if !ok {
		return
	}
	var req allocateFundsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	allocated, err := h.reg.AllocateFunds(c.Request.Context(), actor(c), disasterID, req.Amount, req.Purpose)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"funds_allocated": allocated})
}

func (h *Handler) completeMission(c *gin.Context) {
	workerID := c.Param("id")

	w, err := h.reg.CompleteMission(c.Request.Context(), actor(c), workerID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"completed_missions": w.CompletedMissions})
}

func (h *Handler) closeDisaster(c *gin.Context) {
	disasterID, ok := idParam(c)
	if !ok {
		return
	}

	if err := h.reg.CloseDisaster(c.Request.Context(), actor(c), disasterID); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getActiveDisasters(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ids": h.reg.ActiveDisasters()})
}

func (h *Handler) getDisaster(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	d, ok := h.reg.Disaster(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "disaster not found"})
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) getDisasterWorkers(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if _, ok := h.reg.Disaster(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "disaster not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"worker_ids": h.reg.DisasterWorkers(id)})
}

func (h *Handler) getAvailableResources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ids": h.reg.AvailableResources()})
}

func (h *Handler) getResource(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	res, ok := h.reg.Resource(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) getWorker(c *gin.Context) {
	w, ok := h.reg.Worker(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "worker not found"})
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h *Handler) getBalance(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"balance": h.reg.Balance()})
}

func (h *Handler) listNotifications(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusOK, gin.H{"notifications": []any{}})
		return
	}

	limit := 100
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	notifications, err := h.store.ListNotifications(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// streamEvents pushes registry notifications to the client as server-sent
// events until the client disconnects or the broadcaster shuts down.
func (h *Handler) streamEvents(c *gin.Context) {
	id, ch := h.bc.Subscribe()
	defer h.bc.Unsubscribe(id)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Flush()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			c.SSEvent(string(n.Kind), n)
			c.Writer.Flush()
		}
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func idParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrValidation), errors.Is(err, registry.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, registry.ErrInvalidDisaster), errors.Is(err, registry.ErrNotRegistered):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrNotAvailable),
		errors.Is(err, registry.ErrAlreadyAvailable),
		errors.Is(err, registry.ErrAlreadyClosed),
		errors.Is(err, registry.ErrInsufficientFunds):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
