package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tradegate/tradegate/pkg/httputil"
	"github.com/tradegate/tradegate/pkg/identity"
	"github.com/tradegate/tradegate/pkg/media"
	"github.com/tradegate/tradegate/pkg/rbac"
)

// MediaHandlers handles media asset HTTP requests
type MediaHandlers struct {
	service *media.Service
	gate    *rbac.Middleware
}

// NewMediaHandlers creates a MediaHandlers
func NewMediaHandlers(service *media.Service, gate *rbac.Middleware) *MediaHandlers {
	return &MediaHandlers{service: service, gate: gate}
}

// RegisterRoutes registers media routes
func (h *MediaHandlers) RegisterRoutes(router *mux.Router) {
	read := h.gate.RequirePermission(rbac.PermMediaRead)
	write := h.gate.RequirePermission(rbac.PermMediaWrite)
	del := h.gate.RequirePermission(rbac.PermMediaDelete)

	router.Handle("/media", write(http.HandlerFunc(h.Upload))).Methods("POST")
	router.Handle("/media", read(http.HandlerFunc(h.List))).Methods("GET")
	router.Handle("/media/{id}", read(http.HandlerFunc(h.Get))).Methods("GET")
	router.Handle("/media/{id}", del(http.HandlerFunc(h.Delete))).Methods("DELETE")
	router.Handle("/media/{id}/content", read(http.HandlerFunc(h.Download))).Methods("GET")
	router.Handle("/media/{id}/url", read(http.HandlerFunc(h.SignedURL))).Methods("GET")
}

// Upload stores a file from a multipart form. The form field is "file";
// "is_public" optionally marks the asset shareable within the site.
func (h *MediaHandlers) Upload(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	if err := r.ParseMultipartForm(media.MaxUploadBytes); err != nil {
		httputil.WriteBadRequest(w, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteBadRequest(w, "file field is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	isPublic := r.FormValue("is_public") == "true"

	asset, err := h.service.Upload(r.Context(), ident, header.Filename, contentType, file, isPublic)
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteCreated(w, asset)
}

// List returns assets within the caller's scope
func (h *MediaHandlers) List(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	assets, err := h.service.List(r.Context(), ident,
		httputil.ParseQueryInt(r, "limit", 50),
		httputil.ParseQueryInt(r, "offset", 0),
	)
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	if assets == nil {
		assets = []media.Asset{}
	}
	httputil.WriteSuccess(w, assets)
}

// Get retrieves one asset's metadata
func (h *MediaHandlers) Get(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	asset, err := h.service.GetAsset(r.Context(), ident, mux.Vars(r)["id"])
	if errors.Is(err, media.ErrNotFound) {
		httputil.WriteNotFound(w, "media asset not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteSuccess(w, asset)
}

// Download streams the asset's content
func (h *MediaHandlers) Download(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	asset, reader, err := h.service.Open(r.Context(), ident, mux.Vars(r)["id"])
	if errors.Is(err, media.ErrNotFound) {
		httputil.WriteNotFound(w, "media asset not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", asset.ContentType)
	w.Header().Set("Content-Disposition", `inline; filename="`+asset.FileName+`"`)
	io.Copy(w, reader)
}

// SignedURL returns a time-limited download URL
func (h *MediaHandlers) SignedURL(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	url, err := h.service.SignedURL(r.Context(), ident, mux.Vars(r)["id"])
	if errors.Is(err, media.ErrNotFound) {
		httputil.WriteNotFound(w, "media asset not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"url": url})
}

// Delete removes an asset and its blob
func (h *MediaHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	err := h.service.Delete(r.Context(), ident, mux.Vars(r)["id"])
	if errors.Is(err, media.ErrNotFound) {
		httputil.WriteNotFound(w, "media asset not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteNoContent(w)
}
