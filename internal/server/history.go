package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	ratetabledomain "github.com/smallbiznis/ratecard/internal/ratetable/domain"
	ratetableservice "github.com/smallbiznis/ratecard/internal/ratetable/service"
)

func (s *Server) rateTableHistory(c *gin.Context) {
	rateType := strings.TrimSpace(c.Query("rate_type"))
	if rateType == "" {
		c.Error(ratetabledomain.ErrInvalidRateType)
		return
	}

	history := make([]*ratetabledomain.Response, 0)
	for table, err := range s.versionSvc.HistoryForScope(c.Request.Context(), rateType) {
		if err != nil {
			c.Error(err)
			return
		}
		history = append(history, ratetableservice.ToResponse(table))
	}

	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (s *Server) deriveRateTableVersion(c *gin.Context) {
	resp, err := s.versionSvc.NewVersionFrom(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}
