package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tradegate/tradegate/pkg/catalog"
	"github.com/tradegate/tradegate/pkg/httputil"
	"github.com/tradegate/tradegate/pkg/identity"
	"github.com/tradegate/tradegate/pkg/rbac"
	"github.com/tradegate/tradegate/pkg/tree"
)

// CatalogHandlers handles product, SKU, and category HTTP requests
type CatalogHandlers struct {
	store *catalog.Store
	gate  *rbac.Middleware
}

// NewCatalogHandlers creates a CatalogHandlers
func NewCatalogHandlers(store *catalog.Store, gate *rbac.Middleware) *CatalogHandlers {
	return &CatalogHandlers{store: store, gate: gate}
}

// RegisterRoutes registers catalog routes
func (h *CatalogHandlers) RegisterRoutes(router *mux.Router) {
	read := h.gate.RequirePermission(rbac.PermProductsRead)
	write := h.gate.RequirePermission(rbac.PermProductsWrite)
	del := h.gate.RequirePermission(rbac.PermProductsDelete)
	skuRead := h.gate.RequirePermission(rbac.PermSKUsRead)
	skuWrite := h.gate.RequirePermission(rbac.PermSKUsWrite)
	catRead := h.gate.RequirePermission(rbac.PermCategoriesRead)
	catWrite := h.gate.RequirePermission(rbac.PermCategoriesWrite)

	router.Handle("/products", write(http.HandlerFunc(h.CreateProduct))).Methods("POST")
	router.Handle("/products", read(http.HandlerFunc(h.ListProducts))).Methods("GET")
	router.Handle("/products/{id}", read(http.HandlerFunc(h.GetProduct))).Methods("GET")
	router.Handle("/products/{id}", write(http.HandlerFunc(h.UpdateProduct))).Methods("PUT")
	router.Handle("/products/{id}", del(http.HandlerFunc(h.DeleteProduct))).Methods("DELETE")

	router.Handle("/products/{id}/skus", skuWrite(http.HandlerFunc(h.CreateSKU))).Methods("POST")
	router.Handle("/products/{id}/skus", skuRead(http.HandlerFunc(h.ListSKUs))).Methods("GET")
	router.Handle("/skus/{id}/stock", skuWrite(http.HandlerFunc(h.UpdateSKUStock))).Methods("PUT")

	router.Handle("/categories/master", catWrite(http.HandlerFunc(h.CreateMasterCategory))).Methods("POST")
	router.Handle("/categories/master", catRead(http.HandlerFunc(h.MasterCategoryTree))).Methods("GET")
	router.Handle("/categories/master/{id}", catWrite(http.HandlerFunc(h.UpdateMasterCategory))).Methods("PUT")
	router.Handle("/categories/master/{id}", catWrite(http.HandlerFunc(h.DeleteMasterCategory))).Methods("DELETE")
	router.Handle("/categories/master/{id}/move", catWrite(http.HandlerFunc(h.MoveMasterCategory))).Methods("POST")

	router.Handle("/categories/site", catWrite(http.HandlerFunc(h.CreateSiteCategory))).Methods("POST")
	router.Handle("/categories/site", catRead(http.HandlerFunc(h.SiteCategoryTree))).Methods("GET")
	router.Handle("/categories/site/reorder", catWrite(http.HandlerFunc(h.ReorderSiteCategories))).Methods("POST")
	router.Handle("/categories/site/{id}", catWrite(http.HandlerFunc(h.UpdateSiteCategory))).Methods("PUT")
	router.Handle("/categories/site/{id}", catWrite(http.HandlerFunc(h.DeleteSiteCategory))).Methods("DELETE")
	router.Handle("/categories/site/{id}/move", catWrite(http.HandlerFunc(h.MoveSiteCategory))).Methods("POST")
}

// CreateProduct creates a product stamped with the caller's scope
func (h *CatalogHandlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	var p catalog.Product
	if !httputil.ParseJSONOrError(w, r, &p) {
		return
	}
	if p.Name == "" || p.Slug == "" {
		httputil.WriteBadRequest(w, "name and slug are required")
		return
	}
	if p.Status == "" {
		p.Status = catalog.StatusDraft
	}

	err := h.store.CreateProduct(r.Context(), ident, &p)
	if errors.Is(err, catalog.ErrSlugTaken) {
		httputil.WriteConflict(w, "slug already in use on this site")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteCreated(w, p)
}

// ListProducts lists products within the caller's scope
func (h *CatalogHandlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	opts := catalog.ListOptions{
		CategoryID: r.URL.Query().Get("category_id"),
		Status:     r.URL.Query().Get("status"),
		Limit:      httputil.ParseQueryInt(r, "limit", 50),
		Offset:     httputil.ParseQueryInt(r, "offset", 0),
	}
	products, err := h.store.ListProducts(r.Context(), ident, opts)
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}
	httputil.WriteSuccess(w, products)
}

// GetProduct retrieves one product within the caller's scope
func (h *CatalogHandlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	p, err := h.store.GetProduct(r.Context(), ident, mux.Vars(r)["id"])
	if errors.Is(err, catalog.ErrNotFound) {
		httputil.WriteNotFound(w, "product not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteSuccess(w, p)
}

// UpdateProduct updates a product's content fields
func (h *CatalogHandlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	var p catalog.Product
	if !httputil.ParseJSONOrError(w, r, &p) {
		return
	}
	p.ID = mux.Vars(r)["id"]

	err := h.store.UpdateProduct(r.Context(), ident, &p)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		httputil.WriteNotFound(w, "product not found")
	case errors.Is(err, catalog.ErrSlugTaken):
		httputil.WriteConflict(w, "slug already in use on this site")
	case err != nil:
		httputil.WriteInternalError(w)
	default:
		httputil.WriteSuccess(w, p)
	}
}

// DeleteProduct removes a product within the caller's scope
func (h *CatalogHandlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	err := h.store.DeleteProduct(r.Context(), ident, mux.Vars(r)["id"])
	if errors.Is(err, catalog.ErrNotFound) {
		httputil.WriteNotFound(w, "product not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteNoContent(w)
}

// CreateSKU adds a SKU to a visible product
func (h *CatalogHandlers) CreateSKU(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	var sku catalog.SKU
	if !httputil.ParseJSONOrError(w, r, &sku) {
		return
	}
	sku.ProductID = mux.Vars(r)["id"]
	if sku.Code == "" {
		httputil.WriteBadRequest(w, "code is required")
		return
	}
	if sku.Currency == "" {
		sku.Currency = "USD"
	}

	err := h.store.CreateSKU(r.Context(), ident, &sku)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		httputil.WriteNotFound(w, "product not found")
	case errors.Is(err, catalog.ErrCodeTaken):
		httputil.WriteConflict(w, "sku code already in use for this product")
	case err != nil:
		httputil.WriteInternalError(w)
	default:
		httputil.WriteCreated(w, sku)
	}
}

// ListSKUs lists a product's SKUs
func (h *CatalogHandlers) ListSKUs(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	skus, err := h.store.ListSKUs(r.Context(), ident, mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	if skus == nil {
		skus = []catalog.SKU{}
	}
	httputil.WriteSuccess(w, skus)
}

type stockRequest struct {
	Stock int `json:"stock"`
}

// UpdateSKUStock adjusts a SKU's stock level
func (h *CatalogHandlers) UpdateSKUStock(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	var req stockRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Stock < 0 {
		httputil.WriteBadRequest(w, "stock cannot be negative")
		return
	}

	err := h.store.UpdateSKUStock(r.Context(), ident, mux.Vars(r)["id"], req.Stock)
	if errors.Is(err, catalog.ErrNotFound) {
		httputil.WriteNotFound(w, "sku not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteNoContent(w)
}

// CreateMasterCategory creates a tenant-wide category
func (h *CatalogHandlers) CreateMasterCategory(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	var c catalog.MasterCategory
	if !httputil.ParseJSONOrError(w, r, &c) {
		return
	}
	if c.Name == "" || c.Slug == "" {
		httputil.WriteBadRequest(w, "name and slug are required")
		return
	}

	err := h.store.CreateMasterCategory(r.Context(), ident, &c)
	if errors.Is(err, catalog.ErrSlugTaken) {
		httputil.WriteConflict(w, "slug already in use in this tenant")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteCreated(w, c)
}

// MasterCategoryTree returns the tenant's master categories as trees
func (h *CatalogHandlers) MasterCategoryTree(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	roots, err := h.store.MasterCategoryTree(r.Context(), ident)
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	if roots == nil {
		roots = []*tree.Node[catalog.MasterCategory]{}
	}
	httputil.WriteSuccess(w, roots)
}

// UpdateMasterCategory renames or reorders a master category
func (h *CatalogHandlers) UpdateMasterCategory(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	var c catalog.MasterCategory
	if !httputil.ParseJSONOrError(w, r, &c) {
		return
	}
	c.ID = mux.Vars(r)["id"]

	err := h.store.UpdateMasterCategory(r.Context(), ident, &c)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		httputil.WriteNotFound(w, "category not found")
	case errors.Is(err, catalog.ErrSlugTaken):
		httputil.WriteConflict(w, "slug already in use in this tenant")
	case err != nil:
		httputil.WriteInternalError(w)
	default:
		httputil.WriteSuccess(w, c)
	}
}

// MoveMasterCategory reparents a master category after cycle validation
func (h *CatalogHandlers) MoveMasterCategory(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	var req moveRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	err := h.store.MoveMasterCategory(r.Context(), ident, mux.Vars(r)["id"], req.NewParentID)
	switch {
	case errors.Is(err, tree.ErrCycle):
		httputil.WriteUnprocessable(w, "move would create a cycle")
	case errors.Is(err, tree.ErrParentNotFound):
		httputil.WriteUnprocessable(w, "parent category not found")
	case errors.Is(err, tree.ErrDepthExceeded):
		httputil.WriteUnprocessable(w, "category hierarchy too deep")
	case errors.Is(err, catalog.ErrNotFound):
		httputil.WriteNotFound(w, "category not found")
	case err != nil:
		httputil.WriteInternalError(w)
	default:
		httputil.WriteNoContent(w)
	}
}

// DeleteMasterCategory removes a master category
func (h *CatalogHandlers) DeleteMasterCategory(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	err := h.store.DeleteMasterCategory(r.Context(), ident, mux.Vars(r)["id"])
	if errors.Is(err, catalog.ErrNotFound) {
		httputil.WriteNotFound(w, "category not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteNoContent(w)
}

// CreateSiteCategory creates a node in the site's category tree
func (h *CatalogHandlers) CreateSiteCategory(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	var c catalog.SiteCategory
	if !httputil.ParseJSONOrError(w, r, &c) {
		return
	}
	if c.Name == "" || c.Slug == "" {
		httputil.WriteBadRequest(w, "name and slug are required")
		return
	}

	err := h.store.CreateSiteCategory(r.Context(), ident, &c)
	if errors.Is(err, catalog.ErrSlugTaken) {
		httputil.WriteConflict(w, "slug already in use on this site")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteCreated(w, c)
}

// SiteCategoryTree returns the visible site categories as trees
func (h *CatalogHandlers) SiteCategoryTree(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	roots, err := h.store.SiteCategoryTree(r.Context(), ident)
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	if roots == nil {
		roots = []*tree.Node[catalog.SiteCategory]{}
	}
	httputil.WriteSuccess(w, roots)
}

// UpdateSiteCategory renames a site category or toggles visibility
func (h *CatalogHandlers) UpdateSiteCategory(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	var c catalog.SiteCategory
	if !httputil.ParseJSONOrError(w, r, &c) {
		return
	}
	c.ID = mux.Vars(r)["id"]

	err := h.store.UpdateSiteCategory(r.Context(), ident, &c)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		httputil.WriteNotFound(w, "category not found")
	case errors.Is(err, catalog.ErrSlugTaken):
		httputil.WriteConflict(w, "slug already in use on this site")
	case err != nil:
		httputil.WriteInternalError(w)
	default:
		httputil.WriteSuccess(w, c)
	}
}

// MoveSiteCategory reparents a site category after cycle validation
func (h *CatalogHandlers) MoveSiteCategory(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	var req moveRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	err := h.store.MoveSiteCategory(r.Context(), ident, mux.Vars(r)["id"], req.NewParentID)
	switch {
	case errors.Is(err, tree.ErrCycle):
		httputil.WriteUnprocessable(w, "move would create a cycle")
	case errors.Is(err, tree.ErrParentNotFound):
		httputil.WriteUnprocessable(w, "parent category not found")
	case errors.Is(err, tree.ErrDepthExceeded):
		httputil.WriteUnprocessable(w, "category hierarchy too deep")
	case errors.Is(err, catalog.ErrNotFound):
		httputil.WriteNotFound(w, "category not found")
	case err != nil:
		httputil.WriteInternalError(w)
	default:
		httputil.WriteNoContent(w)
	}
}

type reorderCategoriesRequest struct {
	OrderedIDs []string `json:"ordered_ids"`
}

// ReorderSiteCategories applies a new sibling ordering atomically
func (h *CatalogHandlers) ReorderSiteCategories(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	var req reorderCategoriesRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.OrderedIDs) == 0 {
		httputil.WriteBadRequest(w, "ordered_ids is required")
		return
	}

	err := h.store.ReorderSiteCategories(r.Context(), ident, req.OrderedIDs)
	if errors.Is(err, catalog.ErrNotFound) {
		httputil.WriteUnprocessable(w, "one or more categories are missing or out of scope")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteNoContent(w)
}

// DeleteSiteCategory removes a site category
func (h *CatalogHandlers) DeleteSiteCategory(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	err := h.store.DeleteSiteCategory(r.Context(), ident, mux.Vars(r)["id"])
	if errors.Is(err, catalog.ErrNotFound) {
		httputil.WriteNotFound(w, "category not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteNoContent(w)
}
