package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	lifecycledomain "github.com/smallbiznis/ratecard/internal/lifecycle/domain"
	ratetabledomain "github.com/smallbiznis/ratecard/internal/ratetable/domain"
	ratetableservice "github.com/smallbiznis/ratecard/internal/ratetable/service"
)

func (s *Server) activateRateTable(c *gin.Context) {
	resp, err := s.lifecycleSvc.Activate(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, lifecycledomain.ErrOverlap) {
			s.metrics.OverlapRejections.Inc()
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) supersedeRateTable(c *gin.Context) {
	resp, err := s.lifecycleSvc.Supersede(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) expireRateTable(c *gin.Context) {
	resp, err := s.lifecycleSvc.Expire(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// currentRateTable resolves the schedule governing a scope at a point in
// time. as_of defaults to now; it accepts RFC 3339 or a bare date.
func (s *Server) currentRateTable(c *gin.Context) {
	rateType := strings.TrimSpace(c.Query("rate_type"))
	if rateType == "" {
		c.Error(ratetabledomain.ErrInvalidRateType)
		return
	}

	asOf, err := parseAsOf(c.Query("as_of"))
	if err != nil {
		c.Error(err)
		return
	}

	table, err := s.lifecycleSvc.CurrentForScope(c.Request.Context(), rateType, asOf)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, ratetableservice.ToResponse(table))
}

func parseAsOf(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: as_of %q is not a valid timestamp", ratetabledomain.ErrInvalidRate, raw)
}
