package handler

import (
	"context"
	"net/http"

	"daystohire/common/errors"
	"daystohire/common/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Lookup is the query contract served by the endpoint.
type Lookup interface {
	Lookup(ctx context.Context, standardJobID string, countryCode *string) (*models.StatsRow, error)
}

type DaysToHireResponse struct {
	StandardJobID     string  `json:"standard_job_id"`
	CountryCode       *string `json:"country_code"`
	MinDays           float64 `json:"min_days"`
	AvgDays           float64 `json:"avg_days"`
	MaxDays           float64 `json:"max_days"`
	JobPostingsNumber int     `json:"job_postings_number"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

func newDaysToHireResponse(row *models.StatsRow) DaysToHireResponse {
	resp := DaysToHireResponse{
		StandardJobID:     row.StandardJobID,
		MinDays:           row.MinDays,
		AvgDays:           row.AvgDays,
		MaxDays:           row.MaxDays,
		JobPostingsNumber: row.JobPostingsCount,
	}
	if code, ok := row.Scope.CountryCode(); ok {
		resp.CountryCode = &code
	}
	return resp
}

type DaysToHireHandler struct {
	lookup Lookup
	logger *zap.Logger
}

func NewDaysToHireHandler(lookup Lookup, logger *zap.Logger) *DaysToHireHandler {
	return &DaysToHireHandler{lookup: lookup, logger: logger}
}

// Get serves GET /days-to-hire?standard_job_id=..&country_code=..
// country_code goes to the lookup untouched, so a 200 always echoes the code
// that was asked for and padded codes are not found.
func (h *DaysToHireHandler) Get(c *gin.Context) {
	jobID, ok := c.GetQuery("standard_job_id")
	if !ok || jobID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "standard_job_id is required"})
		return
	}

	var countryCode *string
	if code := c.Query("country_code"); code != "" {
		countryCode = &code
	}

	row, err := h.lookup.Lookup(c.Request.Context(), jobID, countryCode)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, newDaysToHireResponse(row))
}

func (h *DaysToHireHandler) writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch errors.TypeOf(err) {
	case errors.ErrTypeInvalidInput:
		c.JSON(http.StatusBadRequest, ErrorResponse{Detail: errors.MessageOf(err)})
	case errors.ErrTypeNotFound:
		c.JSON(http.StatusNotFound, ErrorResponse{Detail: errors.MessageOf(err)})
	case errors.ErrTypeUnavailable:
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Detail: "Database connection error. Please try again later."})
	default:
		h.logger.Error("days-to-hire lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: "An unexpected database error occurred"})
	}
}
