package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) SendDocument(c *gin.Context) {
	transmission, err := s.transmissionSvc.Enqueue(c.Request.Context(), requestEnvironment(c), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, transmission)
}

func (s *Server) CancelTransmission(c *gin.Context) {
	transmission, err := s.transmissionSvc.Cancel(c.Request.Context(), requestEnvironment(c), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, transmission)
}

func (s *Server) GetTransmissionByDocument(c *gin.Context) {
	transmission, err := s.transmissionSvc.GetByDocument(c.Request.Context(), requestEnvironment(c), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, transmission)
}

type recordInboundRequest struct {
	DocumentID string `json:"document_id" binding:"required"`
}

func (s *Server) RecordInboundDocument(c *gin.Context) {
	var req recordInboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	transmission, err := s.transmissionSvc.RecordInbound(c.Request.Context(), requestEnvironment(c), req.DocumentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, transmission)
}
