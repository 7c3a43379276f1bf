package handle

import "net/http"

// Register mounts the API on mux. Project/file routes are mounted only when
// the stores are set.
func (h *Handle) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/document-ocr/process", h.Process)
	mux.HandleFunc("POST /api/document-ocr/process/xlsx", h.ProcessXLSX)
	mux.HandleFunc("GET /api/document-ocr/{doc}/xlsx", h.ExportXLSX)
	mux.HandleFunc("GET /api/document-ocr/{doc}/image", h.CropImage)
	mux.HandleFunc("GET /api/engines", h.ListEngines)

	if h.Projects == nil || h.Files == nil || h.Regions == nil || h.Tables == nil {
		Logger.Warn("stores not configured, project routes disabled")
		return
	}
	mux.HandleFunc("POST /api/projects", h.CreateProject)
	mux.HandleFunc("GET /api/projects", h.ListProjects)
	mux.HandleFunc("GET /api/projects/{pid}", h.GetProject)

	const file = "/api/projects/{pid}/files/{fid}"
	mux.HandleFunc("POST /api/projects/{pid}/files", h.UploadFile)
	mux.HandleFunc("GET /api/projects/{pid}/files", h.ListFiles)
	mux.HandleFunc("GET "+file, h.GetFile)
	mux.HandleFunc("DELETE "+file, h.DeleteFile)
	mux.HandleFunc("POST "+file+"/scan", h.Scan)

	mux.HandleFunc("GET "+file+"/pages/{page}/image", h.PageImage)
	mux.HandleFunc("POST "+file+"/pages/{page}/regions", h.CreateRegions)
	mux.HandleFunc("GET "+file+"/pages/{page}/regions", h.ListRegions)
	mux.HandleFunc("DELETE /api/regions/{rid}", h.DeleteRegion)

	const meta = file + "/meta-tables/{mid}"
	mux.HandleFunc("GET "+meta, h.GetMetaTable)
	mux.HandleFunc("GET "+meta+"/tables/{tid}", h.GetTable)
	mux.HandleFunc("GET "+meta+"/tables/{tid}/dataframe", h.TableDataframe)
	mux.HandleFunc("PATCH "+meta+"/tables/{tid}", h.PatchTable)
}

type enginesResponse struct {
	Default  string   `json:"default"`
	Engines  []string `json:"engines"`
	Profiles []string `json:"profiles"`
}

// ListEngines: GET /api/engines
func (h *Handle) ListEngines(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, enginesResponse{
		Default:  h.engs.Default(),
		Engines:  h.engs.Names(),
		Profiles: h.profiles.Names(),
	})
}
