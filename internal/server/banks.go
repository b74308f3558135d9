package server

import (
	"github.com/gin-gonic/gin"
)

type bankView struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Protocol string `json:"protocol"`
	AllowGet bool   `json:"allow_get"`
}

// ListBanks
// GET /banks
func (s *Server) ListBanks(c *gin.Context) {
	banks := s.svc.Banks()
	out := make([]bankView, 0, len(banks))
	for _, b := range banks {
		out = append(out, bankView{
			Key:      b.Key,
			Name:     b.Name,
			Protocol: b.Protocol,
			AllowGet: b.AllowGet,
		})
	}
	respondData(c, out)
}

// SignatureOrder lists the signing field tables of one protocol, for
// debugging merchant integrations.
// GET /protocols/:protocol/signature-order
func (s *Server) SignatureOrder(c *gin.Context) {
	order, err := s.svc.SignatureOrder(c.Param("protocol"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, order)
}

// SampleRequest builds a signed test message for the given merchant.
// GET /banks/:bank/sample?merchant=<uid>
func (s *Server) SampleRequest(c *gin.Context) {
	uid := c.Query("merchant")
	if uid == "" {
		invalidRequest(c, "merchant query parameter is required")
		return
	}

	sample, charset, err := s.svc.SampleRequest(c.Request.Context(), c.Param("bank"), uid)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, gin.H{"fields": sample, "charset": charset})
}
