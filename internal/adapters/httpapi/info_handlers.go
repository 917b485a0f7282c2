package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matchi-app/matchi-api/internal/app/infoposts"
)

func (s *Server) GetInfoHub(w http.ResponseWriter, r *http.Request) {
	o, err := s.InfoPosts.Overview(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, infoHubFromDomain(o))
}

func (s *Server) ListInfoPosts(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	cat, ps, err := s.InfoPosts.ListByCategory(r.Context(), chi.URLParam(r, "category"), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"category": infoCategoryFromDomain(cat),
		"posts":    infoPostsFromDomain(ps),
	})
}

// GetInfoPost serves /info/{category}/{postId}. The category segment only
// shapes the URL; a post filed elsewhere is still returned.
func (s *Server) GetInfoPost(w http.ResponseWriter, r *http.Request) {
	id, ok := postIDParam(w, r)
	if !ok {
		return
	}
	p, err := s.InfoPosts.ViewPost(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"post": infoPostFromDomain(p)})
}

func (s *Server) CreateInfoPost(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	var in infoposts.CreateInfoPostInput
	if !decodeJSON(w, r, body, &in) {
		return
	}
	s.idempotent(w, r, "POST /info", []string{string(body)}, func() (handlerResult, error) {
		p, err := s.InfoPosts.CreatePost(r.Context(), caller, in)
		if err != nil {
			return handlerResult{}, err
		}
		return handlerResult{status: http.StatusCreated, payload: map[string]any{"post": infoPostFromDomain(p)}}, nil
	})
}
