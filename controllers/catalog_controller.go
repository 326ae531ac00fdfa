package controllers

import (
	"context"
	"net/http"

	"sparhub/models"

	"github.com/gin-gonic/gin"
)

// CatalogReader is the read-only counterpart catalog surface.
type CatalogReader interface {
	ListCounterparts(ctx context.Context) ([]models.Counterpart, error)
}

type CatalogController struct {
	catalog CatalogReader
}

func NewCatalogController(catalog CatalogReader) *CatalogController {
	return &CatalogController{catalog: catalog}
}

func (cc *CatalogController) ListCounterparts(c *gin.Context) {
	cps, err := cc.catalog.ListCounterparts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"counterparts": cps})
}
