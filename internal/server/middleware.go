package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/ratecard/internal/orgcontext"
	ratetabledomain "github.com/smallbiznis/ratecard/internal/ratetable/domain"
)

const orgHeader = "X-Org-Id"

// orgResolver binds the caller's organization onto the request context.
// Single-tenant deployments can omit the header and rely on DEFAULT_ORG.
func (s *Server) orgResolver() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(orgHeader))

		var orgID snowflake.ID
		switch {
		case raw != "":
			parsed, err := snowflake.ParseString(raw)
			if err != nil {
				c.Error(ratetabledomain.ErrInvalidOrganization)
				c.Abort()
				return
			}
			orgID = parsed
		case s.cfg.DefaultOrgID != 0:
			orgID = snowflake.ID(s.cfg.DefaultOrgID)
		default:
			c.Error(ratetabledomain.ErrInvalidOrganization)
			c.Abort()
			return
		}

		ctx := orgcontext.WithOrgID(c.Request.Context(), orgID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
