package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/cutdeck/cutdeck-agent/internal/store"
)

// refParam returns a URL parameter holding a source ref. Refs may contain
// slashes, so callers escape them.
func refParam(r *http.Request, name string) (string, bool) {
	ref, err := url.PathUnescape(chi.URLParam(r, name))
	if err != nil || ref == "" {
		return "", false
	}
	return ref, true
}

func listMaterialsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := store.MaterialFilter{
			Category: q.Get("category"),
			Tag:      q.Get("tag"),
			Search:   q.Get("q"),
			Sort:     store.MaterialSort(q.Get("sort")),
		}
		switch filter.Sort {
		case "", store.SortNewest, store.SortOldest:
		default:
			WriteError(w, http.StatusBadRequest, "sort must be newest or oldest", "BAD_REQUEST")
			return
		}

		materials, err := cfg.Store.ListMaterials(r.Context(), filter)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list materials", "INTERNAL_ERROR")
			return
		}
		categories, err := cfg.Store.Categories(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list categories", "INTERNAL_ERROR")
			return
		}
		if categories == nil {
			categories = []string{}
		}

		resp := MaterialsResponse{
			Materials:  make([]MaterialResponse, len(materials)),
			Categories: categories,
		}
		for i, m := range materials {
			resp.Materials[i] = MaterialToResponse(m)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func putMaterialHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, ok := refParam(r, "ref")
		if !ok {
			WriteError(w, http.StatusBadRequest, "material ref required", "BAD_REQUEST")
			return
		}
		var req MaterialRequest
		if r.ContentLength != 0 && !decodeBody(w, r, &req) {
			return
		}

		m, err := cfg.Store.AddMaterial(r.Context(), store.Material{
			Ref:      ref,
			Title:    req.Title,
			Owner:    req.Owner,
			Duration: req.Duration,
			Category: req.Category,
			Tags:     req.Tags,
			Notes:    req.Notes,
		})
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, MaterialToResponse(m))
	}
}

func setMaterialTagsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, ok := refParam(r, "ref")
		if !ok {
			WriteError(w, http.StatusBadRequest, "material ref required", "BAD_REQUEST")
			return
		}
		var req TagsRequest
		if !decodeBody(w, r, &req) {
			return
		}

		if err := cfg.Store.SetMaterialTags(r.Context(), ref, req.Tags); err != nil {
			WriteDomainError(w, err)
			return
		}
		m, err := cfg.Store.GetMaterial(r.Context(), ref)
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, MaterialToResponse(m))
	}
}

func deleteMaterialHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, ok := refParam(r, "ref")
		if !ok {
			WriteError(w, http.StatusBadRequest, "material ref required", "BAD_REQUEST")
			return
		}
		if err := cfg.Store.RemoveMaterial(r.Context(), ref); err != nil {
			WriteDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
