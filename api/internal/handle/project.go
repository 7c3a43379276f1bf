package handle

import (
	"encoding/json"
	"net/http"
	"strings"
)

type projectRequest struct {
	Name       string `json:"name"`
	LimaNumber string `json:"lima_number"`
	Version    string `json:"version"`
}

// CreateProject: POST /api/projects
func (h *Handle) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	p, err := h.Projects.Create(r.Context(), strings.TrimSpace(req.Name), req.LimaNumber, req.Version)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ListProjects: GET /api/projects
func (h *Handle) ListProjects(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Projects.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// GetProject: GET /api/projects/{pid}
func (h *Handle) GetProject(w http.ResponseWriter, r *http.Request) {
	pid, ok := pathID(r, "pid")
	if !ok {
		http.Error(w, "bad project id", http.StatusBadRequest)
		return
	}
	p, err := h.Projects.Get(r.Context(), pid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
