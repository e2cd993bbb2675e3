package journalhttp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tradevault/internal/broker"
	"tradevault/internal/broker/rawfeed"
	"tradevault/internal/normalize"
	"tradevault/internal/registry"
	"tradevault/internal/scheduler"
	"tradevault/internal/store"
	syncsvc "tradevault/internal/sync"
	"tradevault/internal/types"
	"tradevault/internal/validate"
)

func (r *Router) handleCreateTrade(c *gin.Context) {
	userID := c.GetString(userIDKey)
	var candidate types.TradeCandidate
	if err := c.ShouldBindJSON(&candidate); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trade payload"})
		return
	}
	res := validate.Trade(candidate)
	if !res.IsValid {
		// Sanitized is included even on failure so the form can show
		// field-level feedback.
		c.JSON(http.StatusUnprocessableEntity, res)
		return
	}
	trade := res.Sanitized
	trade.ID = uuid.NewString()
	trade.RealizedPL = normalize.RealizedPL(trade.Direction, trade.EntryPrice, trade.ExitPrice, trade.Quantity)
	if err := r.store.SaveTrade(c.Request.Context(), userID, trade); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, trade)
}

func (r *Router) handleBulkImport(c *gin.Context) {
	userID := c.GetString(userIDKey)
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, 4<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable payload"})
		return
	}
	execs, err := rawfeed.ParsePayload(raw)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	var (
		imported int
		skipped  int
		errs     []string
	)
	for _, exec := range execs {
		trade, err := normalize.Execution(exec, "")
		if err != nil {
			skipped++
			errs = append(errs, err.Error())
			continue
		}
		if err := r.store.SaveTrade(c.Request.Context(), userID, trade); err != nil {
			skipped++
			errs = append(errs, err.Error())
			continue
		}
		imported++
	}
	c.JSON(http.StatusOK, gin.H{"imported": imported, "skipped": skipped, "errors": errs})
}

func (r *Router) handleListTrades(c *gin.Context) {
	userID := c.GetString(userIDKey)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	trades, err := r.store.ListTrades(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (r *Router) handleListConnections(c *gin.Context) {
	userID := c.GetString(userIDKey)
	connections, err := r.registry.Load(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"connections": connections,
		"statuses":    r.registry.Statuses(userID),
	})
}

type addConnectionRequest struct {
	Broker      string            `json:"broker"`
	Credentials map[string]string `json:"credentials"`
	IsActive    *bool             `json:"isActive"`
}

func (r *Router) handleAddConnection(c *gin.Context) {
	userID := c.GetString(userIDKey)
	var req addConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid connection payload"})
		return
	}
	bt := types.BrokerType(req.Broker)
	if !bt.Valid() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unsupported broker type"})
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	conn := types.BrokerConnection{
		ID:          uuid.NewString(),
		UserID:      userID,
		Broker:      bt,
		Credentials: req.Credentials,
		IsActive:    active,
	}
	if err := r.registry.Add(c.Request.Context(), conn); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, conn)
}

type updateConnectionRequest struct {
	IsActive    *bool             `json:"isActive"`
	Credentials map[string]string `json:"credentials"`
}

func (r *Router) handleUpdateConnection(c *gin.Context) {
	userID := c.GetString(userIDKey)
	connectionID := c.Param("id")
	if _, err := r.registry.Connection(userID, connectionID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "connection not found"})
		return
	}
	var req updateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid connection payload"})
		return
	}
	update := store.ConnectionUpdate{IsActive: req.IsActive, Credentials: req.Credentials}
	if err := r.store.UpdateConnection(c.Request.Context(), connectionID, update); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	if _, err := r.registry.Load(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": connectionID})
}

func (r *Router) handleDeleteConnection(c *gin.Context) {
	userID := c.GetString(userIDKey)
	connectionID := c.Param("id")
	if _, err := r.registry.Connection(userID, connectionID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "connection not found"})
		return
	}
	if err := r.registry.Remove(c.Request.Context(), userID, connectionID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": connectionID})
}

func (r *Router) handleSyncOne(c *gin.Context) {
	userID := c.GetString(userIDKey)
	connectionID := c.Param("id")
	result, err := r.orchestrator.SyncOne(c.Request.Context(), userID, connectionID)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrConnectionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "connection not found"})
		case errors.Is(err, syncsvc.ErrSyncInFlight):
			c.JSON(http.StatusConflict, gin.H{"error": "sync already in flight"})
		case errors.Is(err, broker.ErrAuth):
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, result)
}

func (r *Router) handleSyncAll(c *gin.Context) {
	userID := c.GetString(userIDKey)
	outcomes := r.orchestrator.SyncAll(c.Request.Context(), userID)
	c.JSON(http.StatusOK, gin.H{"outcomes": outcomes})
}

type autoSyncRequest struct {
	Enabled  bool   `json:"enabled"`
	Interval string `json:"interval,omitempty"`
}

func (r *Router) handleAutoSync(c *gin.Context) {
	userID := c.GetString(userIDKey)
	var req autoSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid auto-sync payload"})
		return
	}
	if !req.Enabled {
		r.orchestrator.StopAutoSync(userID)
		c.JSON(http.StatusOK, gin.H{"autoSync": false})
		return
	}
	var interval time.Duration
	if req.Interval != "" {
		iv, ok := scheduler.ParseInterval(req.Interval)
		if !ok {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid interval"})
			return
		}
		interval = iv
	}
	// The runner must outlive this request; orchestrator teardown is
	// what cancels it, not the request context.
	r.orchestrator.StartAutoSync(context.Background(), userID, interval)
	c.JSON(http.StatusOK, gin.H{"autoSync": true})
}

func (r *Router) handleSyncHistory(c *gin.Context) {
	userID := c.GetString(userIDKey)
	connectionID := c.Param("id")
	if _, err := r.registry.Connection(userID, connectionID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "connection not found"})
		return
	}
	if r.syncLog == nil {
		c.JSON(http.StatusOK, gin.H{"attempts": []any{}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	attempts, err := r.syncLog.History(c.Request.Context(), connectionID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": attempts})
}
