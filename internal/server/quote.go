package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/ratecard/internal/pricing"
	ratetabledomain "github.com/smallbiznis/ratecard/internal/ratetable/domain"
)

type quoteRequest struct {
	RateType string     `json:"rate_type"`
	AsOf     *time.Time `json:"as_of,omitempty"`

	pricing.Request
}

type quoteResponse struct {
	RateTableID  string    `json:"rate_table_id"`
	VersionLabel string    `json:"version_label"`
	AsOf         time.Time `json:"as_of"`

	*pricing.Result
}

// createQuote prices one request against the schedule governing the scope
// at as_of. The quote is computed, not stored.
func (s *Server) createQuote(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(fmt.Errorf("%w: %v", pricing.ErrInvalidRequest, err))
		return
	}

	req.RateType = strings.TrimSpace(req.RateType)
	if req.RateType == "" {
		c.Error(ratetabledomain.ErrInvalidRateType)
		return
	}
	if req.Urgency == "" {
		req.Urgency = ratetabledomain.UrgencyStandard
	}

	var asOf time.Time
	if req.AsOf != nil {
		asOf = req.AsOf.UTC()
	}

	table, err := s.lifecycleSvc.CurrentForScope(c.Request.Context(), req.RateType, asOf)
	if err != nil {
		s.countQuoteFailure(err)
		c.Error(err)
		return
	}

	result, err := pricing.Compute(table, req.Request)
	if err != nil {
		s.countQuoteFailure(err)
		c.Error(err)
		return
	}

	s.metrics.QuotesTotal.WithLabelValues(req.RateType, string(req.Urgency)).Inc()

	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	c.JSON(http.StatusOK, quoteResponse{
		RateTableID:  table.ID.String(),
		VersionLabel: table.VersionLabel,
		AsOf:         asOf,
		Result:       result,
	})
}

func (s *Server) countQuoteFailure(err error) {
	_, code := classifyErrorForLog(err)
	s.metrics.QuoteFailures.WithLabelValues(code).Inc()
}
