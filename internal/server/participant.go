package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/peppolway/internal/identifier"
	participantdomain "github.com/smallbiznis/peppolway/internal/participant/domain"
)

type registerParticipantRequest struct {
	LegalName   string   `json:"legal_name" binding:"required"`
	CountryCode string   `json:"country_code" binding:"required"`
	TaxID       *string  `json:"tax_id"`
	Role        string   `json:"role" binding:"required"`
	Identifiers []string `json:"identifiers"`
}

func (s *Server) RegisterParticipant(c *gin.Context) {
	var req registerParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	idents := make([]identifier.Identifier, 0, len(req.Identifiers))
	for _, raw := range req.Identifiers {
		ident, err := identifier.Parse(raw)
		if err != nil {
			AbortWithError(c, newValidationError("identifiers", "invalid_format", err.Error()))
			return
		}
		idents = append(idents, ident)
	}

	participant, err := s.participantSvc.Register(c.Request.Context(), participantdomain.RegisterParticipantRequest{
		Environment: requestEnvironment(c),
		LegalName:   req.LegalName,
		CountryCode: req.CountryCode,
		TaxID:       req.TaxID,
		Role:        participantdomain.ParticipantRole(strings.ToUpper(strings.TrimSpace(req.Role))),
		Identifiers: idents,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, participant)
}

func (s *Server) ListParticipants(c *gin.Context) {
	req := participantdomain.ListParticipantRequest{
		Environment: requestEnvironment(c),
		ActiveOnly:  c.Query("active") == "true",
	}
	if raw := strings.TrimSpace(c.Query("role")); raw != "" {
		role := participantdomain.ParticipantRole(strings.ToUpper(raw))
		if !role.Valid() {
			AbortWithError(c, newValidationError("role", "invalid_role", "role must be SENDER, RECEIVER or BOTH"))
			return
		}
		req.Role = &role
	}

	resp, err := s.participantSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetParticipantByID(c *gin.Context) {
	participant, err := s.participantSvc.GetByID(c.Request.Context(), requestEnvironment(c), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, participant)
}

type setRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (s *Server) SetParticipantRole(c *gin.Context) {
	var req setRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	role := participantdomain.ParticipantRole(strings.ToUpper(strings.TrimSpace(req.Role)))
	if err := s.participantSvc.SetRole(c.Request.Context(), requestEnvironment(c), c.Param("id"), role); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type addIdentifierRequest struct {
	Identifier string `json:"identifier" binding:"required"`
}

func (s *Server) AddParticipantIdentifier(c *gin.Context) {
	var req addIdentifierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ident, err := identifier.Parse(req.Identifier)
	if err != nil {
		AbortWithError(c, newValidationError("identifier", "invalid_format", err.Error()))
		return
	}

	if err := s.participantSvc.AddIdentifier(c.Request.Context(), requestEnvironment(c), c.Param("id"), ident); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) DeactivateParticipant(c *gin.Context) {
	if err := s.participantSvc.Deactivate(c.Request.Context(), requestEnvironment(c), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
