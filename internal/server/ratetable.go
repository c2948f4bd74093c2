package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	ratetabledomain "github.com/smallbiznis/ratecard/internal/ratetable/domain"
)

func (s *Server) createRateTable(c *gin.Context) {
	var req ratetabledomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(fmt.Errorf("%w: %v", ratetabledomain.ErrInvalidRate, err))
		return
	}

	if strings.TrimSpace(req.Currency) == "" {
		req.Currency = s.defaults.Get().DefaultCurrency
	}
	if strings.TrimSpace(req.FallbackCategory) == "" {
		req.FallbackCategory = s.defaults.Get().FallbackCategory
	}

	resp, err := s.rateTableSvc.Create(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) listRateTables(c *gin.Context) {
	resp, err := s.rateTableSvc.List(c.Request.Context(), strings.TrimSpace(c.Query("rate_type")))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rate_tables": resp})
}

func (s *Server) getRateTable(c *gin.Context) {
	resp, err := s.rateTableSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) discardRateTable(c *gin.Context) {
	if err := s.rateTableSvc.DiscardDraft(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}
