package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	documentdomain "github.com/smallbiznis/peppolway/internal/document/domain"
)

type convertDocumentRequest struct {
	Record                documentdomain.SourceRecord `json:"record" binding:"required"`
	SenderParticipantID   string                      `json:"sender_participant_id" binding:"required"`
	ReceiverParticipantID string                      `json:"receiver_participant_id" binding:"required"`
	SchemeOverride        string                      `json:"scheme_override"`
}

func (s *Server) ConvertDocument(c *gin.Context) {
	var req convertDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	doc, err := s.documentSvc.Convert(c.Request.Context(), documentdomain.ConvertRequest{
		Environment:           requestEnvironment(c),
		Record:                req.Record,
		SenderParticipantID:   req.SenderParticipantID,
		ReceiverParticipantID: req.ReceiverParticipantID,
		SchemeOverride:        req.SchemeOverride,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, doc)
}

func (s *Server) GetDocumentByID(c *gin.Context) {
	doc, err := s.documentSvc.GetByID(c.Request.Context(), requestEnvironment(c), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

func (s *Server) GetDocumentPayload(c *gin.Context) {
	payload, err := s.documentSvc.Payload(c.Request.Context(), requestEnvironment(c), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="document-%s.xml"`, c.Param("id")))
	c.Data(http.StatusOK, "application/xml", payload)
}
