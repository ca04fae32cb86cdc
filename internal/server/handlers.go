package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/identura/authcore/internal/access"
	"github.com/identura/authcore/internal/observability"
	"github.com/identura/authcore/internal/util"
)

// handleGetAccess serves the projected access view for an account.
// This route doubles as the x-access-url callback when called with
// minimized=true.
func (s *Server) handleGetAccess(c *gin.Context) {
	filter := access.Filter{
		Org:              c.Query("org"),
		Domain:           c.Query("domain"),
		Product:          c.Query("product"),
		IncludeMiscRoles: c.Query("includeMiscRoles") == "true",
	}

	group := c.Param("group")
	accountID := c.Param("accountID")

	if c.Query("minimized") == "true" {
		view, err := s.projector.ProjectMinimized(c.Request.Context(), group, accountID, filter)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
		return
	}

	view, err := s.projector.Project(c.Request.Context(), group, accountID, filter)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// handleDefineAccess creates or replaces an organization grant.
func (s *Server) handleDefineAccess(c *gin.Context) {
	var req access.GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	grant, err := s.grants.DefineAccess(
		c.Request.Context(),
		c.Param("group"),
		c.Param("accountID"),
		c.Param("orgID"),
		req,
	)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, grant)
}

// handleRemoveAccess removes an organization grant.
func (s *Server) handleRemoveAccess(c *gin.Context) {
	err := s.grants.RemoveOrgFromAccess(
		c.Request.Context(),
		c.Param("group"),
		c.Param("accountID"),
		c.Param("orgID"),
	)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleUsage reports the accounts whose grants reference an
// organization, domain, or role. Deletion guards call this before
// removing directory objects.
func (s *Server) handleUsage(c *gin.Context) {
	group := c.Param("group")
	refID := c.Param("refID")

	var (
		accounts []string
		err      error
	)
	switch c.Param("kind") {
	case "organization":
		accounts, err = s.grants.UsageForOrganization(c.Request.Context(), group, refID)
	case "domain":
		accounts, err = s.grants.UsageForDomain(c.Request.Context(), group, refID)
	case "role":
		accounts, err = s.grants.UsageForRole(c.Request.Context(), group, refID)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown reference kind"})
		return
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	if accounts == nil {
		accounts = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts, "inUse": len(accounts) > 0})
}

// respondError maps taxonomy errors onto HTTP responses. Grant
// validation failures keep their id-list payload.
func (s *Server) respondError(c *gin.Context, err error) {
	var verr *util.GrantValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, verr)
		return
	}

	status := util.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.WithContext(c.Request.Context()).Error("request failed",
			observability.String("path", c.FullPath()),
			observability.Error(err),
		)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
