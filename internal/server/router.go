package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/daysentry/daysentry/internal/batch"
	"github.com/daysentry/daysentry/internal/message"
	"github.com/daysentry/daysentry/internal/store"
)

var (
	errMissingStore    = errors.New("server: record store dependency required")
	errMissingWriter   = errors.New("server: batch writer dependency required")
	errMissingLocation = errors.New("server: timezone location dependency required")
)

// Dependencies lists the collaborators the HTTP surface is built on.
type Dependencies struct {
	Store    store.RecordStore
	Writer   *batch.Writer
	Location *time.Location
	Clock    func() time.Time
	// RequestTimeout bounds the store and writer calls made on behalf of one
	// request; zero leaves the request context unbounded.
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

// NewHTTPHandler wires the API routes onto a gin engine.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Store == nil {
		return nil, errMissingStore
	}
	if deps.Writer == nil {
		return nil, errMissingWriter
	}
	if deps.Location == nil {
		return nil, errMissingLocation
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		store:          deps.Store,
		writer:         deps.Writer,
		location:       deps.Location,
		clock:          clock,
		requestTimeout: deps.RequestTimeout,
		logger:         logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/today", handler.handleToday)
	router.POST("/messages/bulk", handler.handleBulkWrite)

	return router, nil
}

type httpHandler struct {
	store          store.RecordStore
	writer         *batch.Writer
	location       *time.Location
	clock          func() time.Time
	requestTimeout time.Duration
	logger         *zap.Logger
}

// boundContext derives the context for one request's store calls, applying
// the configured request timeout when one is set.
func (h *httpHandler) boundContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.requestTimeout <= 0 {
		return c.Request.Context(), func() {}
	}
	return context.WithTimeout(c.Request.Context(), h.requestTimeout)
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type todayResponsePayload struct {
	Date  string  `json:"date"`
	Text  *string `json:"text"`
	Error string  `json:"error,omitempty"`
}

func (h *httpHandler) handleToday(c *gin.Context) {
	today := message.DateOf(h.clock(), h.location)

	ctx, cancel := h.boundContext(c)
	defer cancel()

	record, err := h.store.Get(ctx, today)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, todayResponsePayload{
			Date:  today.String(),
			Error: "MESSAGE_NOT_FOUND",
		})
		return
	case err != nil:
		h.logger.Error("today lookup failed", zap.String("date", today.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "LOOKUP_FAILED"})
		return
	}

	c.JSON(http.StatusOK, todayResponsePayload{Date: today.String(), Text: &record.Text})
}

type bulkItemPayload struct {
	Date string `json:"date"`
	Text string `json:"text"`
}

type bulkRequestPayload struct {
	Items     []bulkItemPayload `json:"items"`
	StartDate string            `json:"startDate"`
	Texts     []string          `json:"texts"`
	Force     bool              `json:"force"`
}

type bulkResponsePayload struct {
	Written int  `json:"written"`
	Force   bool `json:"force"`
}

func (h *httpHandler) handleBulkWrite(c *gin.Context) {
	var requestPayload bulkRequestPayload
	if err := c.ShouldBindJSON(&requestPayload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	items := make([]batch.Item, 0, len(requestPayload.Items))
	for _, item := range requestPayload.Items {
		items = append(items, batch.Item{Date: item.Date, Text: item.Text})
	}

	ctx, cancel := h.boundContext(c)
	defer cancel()

	result, err := h.writer.Write(ctx, batch.Request{
		Items:     items,
		StartDate: requestPayload.StartDate,
		Texts:     requestPayload.Texts,
		Force:     requestPayload.Force,
	})
	if err != nil {
		h.writeBulkError(c, err)
		return
	}

	c.JSON(http.StatusOK, bulkResponsePayload{Written: result.Written, Force: requestPayload.Force})
}

func (h *httpHandler) writeBulkError(c *gin.Context, err error) {
	var validationErr *batch.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Code})
		return
	}

	var conflictErr *batch.ConflictError
	if errors.As(err, &conflictErr) {
		c.JSON(http.StatusConflict, gin.H{
			"error": "ITEM_ALREADY_EXISTS",
			"date":  conflictErr.Date.String(),
		})
		return
	}

	var partialErr *batch.PartialWriteError
	if errors.As(err, &partialErr) {
		dates := make([]string, 0, len(partialErr.Dates))
		for _, date := range partialErr.Dates {
			dates = append(dates, date.String())
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "PARTIAL_WRITE", "dates": dates})
		return
	}

	h.logger.Error("bulk write failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "WRITE_FAILED"})
}
