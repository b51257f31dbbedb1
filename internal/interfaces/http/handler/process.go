package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appprocessing "github.com/ledgerscan/backend/internal/application/processing"
	"github.com/ledgerscan/backend/internal/domain/shared"
	"github.com/ledgerscan/backend/internal/interfaces/http/dto"
)

// IdempotencyKeyHeader carries the caller's request key for duplicate
// submission detection.
const IdempotencyKeyHeader = "X-Idempotency-Key"

// ProcessHandler exposes the batch processing endpoint
type ProcessHandler struct {
	BaseHandler
	service        *appprocessing.BatchService
	idempotency    shared.IdempotencyStore
	idempotencyCfg shared.IdempotencyConfig
	logger         *zap.Logger
}

// NewProcessHandler creates a new ProcessHandler
func NewProcessHandler(service *appprocessing.BatchService, store shared.IdempotencyStore, cfg shared.IdempotencyConfig, logger *zap.Logger) *ProcessHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessHandler{
		service:        service,
		idempotency:    store,
		idempotencyCfg: cfg,
		logger:         logger,
	}
}

// RegisterRoutes registers the processing routes
func (h *ProcessHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/process", h.Process)
}

// Process runs one batch window through the pipeline.
// Repeated submissions with the same X-Idempotency-Key are rejected with 409
// until the key expires.
func (h *ProcessHandler) Process(c *gin.Context) {
	var req dto.ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		h.BadRequest(c, "customer_id must be a valid UUID")
		return
	}

	if key := c.GetHeader(IdempotencyKeyHeader); key != "" && h.idempotencyCfg.Enabled && h.idempotency != nil {
		isNew, err := h.idempotency.MarkProcessed(c.Request.Context(), key, h.idempotencyCfg.TTL)
		if err != nil {
			h.logger.Error("idempotency check failed", zap.Error(err))
			h.InternalError(c, "Idempotency check failed")
			return
		}
		if !isNew {
			h.Conflict(c, "This batch was already submitted")
			return
		}
	}

	documents := make([]appprocessing.Document, 0, len(req.Documents))
	for _, doc := range req.Documents {
		name := doc.Name
		if name == "" {
			name = doc.Locator
		}
		documents = append(documents, appprocessing.Document{Locator: doc.Locator, Name: name})
	}

	result, err := h.service.Run(c.Request.Context(), appprocessing.BatchRequest{
		CustomerID:        customerID,
		Documents:         documents,
		LanguageDetection: req.LanguageDetection,
		StartingPoint:     req.StartingPoint,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewProcessResponse(result))
}
