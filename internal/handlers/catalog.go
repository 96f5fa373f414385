package handlers

import (
	"net/http"

	"salescoach-backend/internal/repository"
	"salescoach-backend/internal/services"
)

// CatalogHandler lists the categories a trainee can start a session in:
// everything with ingested content, merged with the scenario catalog's
// objection categories.
type CatalogHandler struct {
	content *repository.ContentRepo
	catalog *services.Catalog
}

func NewCatalogHandler(content *repository.ContentRepo, catalog *services.Catalog) *CatalogHandler {
	return &CatalogHandler{content: content, catalog: catalog}
}

func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	stats, err := h.content.CategoryStats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load categories", r))
		return
	}

	seen := make(map[string]bool, len(stats))
	categories := make([]map[string]interface{}, 0, len(stats))
	for _, s := range stats {
		seen[s.Name] = true
		categories = append(categories, map[string]interface{}{
			"name":         s.Name,
			"source_count": s.SourceCount,
			"chunk_count":  s.ChunkCount,
			"objection":    h.catalog.IsObjectionCategory(s.Name),
		})
	}
	for _, c := range h.catalog.Categories {
		if seen[c.Name] {
			continue
		}
		categories = append(categories, map[string]interface{}{
			"name":         c.Name,
			"source_count": 0,
			"chunk_count":  0,
			"objection":    true,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
}
