package server

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	"github.com/banklabs/banklink/internal/banklink/domain"
	"github.com/banklabs/banklink/internal/banklink/fields"
	"github.com/banklabs/banklink/internal/banklink/service"
)

// ServeBanklink is the endpoint the merchant's shop posts payment requests
// to, one per emulated bank.
// POST|GET /banklink/:bank
func (s *Server) ServeBanklink(c *gin.Context) {
	rawBody, err := c.GetRawData()
	if err != nil {
		invalidRequest(c, "unreadable request body")
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(rawBody))
	if err := c.Request.ParseForm(); err != nil {
		invalidRequest(c, "unparseable form payload")
		return
	}

	req := service.SubmitRequest{
		Bank:    c.Param("bank"),
		Method:  c.Request.Method,
		URL:     c.Request.URL.RequestURI(),
		Fields:  fields.FromForm(c.Request.Form),
		Headers: flattenHeaders(c.Request.Header),
		RawBody: rawBody,
	}

	out, err := s.svc.Submit(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if !out.Result.OK {
		body := gin.H{
			"errors":   out.Result.Errors,
			"warnings": out.Result.Warnings,
		}
		if out.Payment != nil {
			body["payment"] = out.Payment
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": body})
		return
	}

	// Auto-pay skips the preview step and applies the requested decision
	// in the same request.
	if out.AutoPay != "" {
		fin, err := s.svc.Finalize(c.Request.Context(), out.Payment.ID, service.DecisionRequest{Decision: out.AutoPay})
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"payment":  fin.Payment,
			"form":     fin.Form,
			"warnings": out.Result.Warnings,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payment":  out.Payment,
		"warnings": out.Result.Warnings,
	})
}

type decisionRequest struct {
	Decision      string `json:"decision" binding:"required"`
	SenderName    string `json:"sender_name"`
	SenderAccount string `json:"sender_account"`
}

// DecidePayment applies the operator's decision to an open payment and
// returns the signed response form for the browser redirect.
// POST /payments/:id/decision
func (s *Server) DecidePayment(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		invalidRequest(c, "invalid payment id")
		return
	}

	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "decision is required")
		return
	}

	fin, err := s.svc.Finalize(c.Request.Context(), id, service.DecisionRequest{
		Decision:      domain.Decision(req.Decision),
		SenderName:    req.SenderName,
		SenderAccount: req.SenderAccount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payment": fin.Payment,
		"form":    fin.Form,
	})
}

// GetPayment
// GET /payments/:id
func (s *Server) GetPayment(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		invalidRequest(c, "invalid payment id")
		return
	}

	p, attempts, err := s.svc.Payment(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payment":  p,
		"attempts": attempts,
	})
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for key, values := range h {
		out[strings.ToLower(key)] = strings.TrimSpace(strings.Join(values, ", "))
	}
	return out
}
