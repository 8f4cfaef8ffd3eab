package scope

// Canonical scope column names. Scoped tables use these names exactly; the
// manifest below records which of them each table carries.
const (
	ColTenantID   = "tenant_id"
	ColSiteID     = "site_id"
	ColDeptID     = "dept_id"
	ColFactoryID  = "factory_id"
	ColExporterID = "exporter_id"
	ColOwnerID    = "owner_id"
	ColIsPublic   = "is_public"
)

// Scoped table names
const (
	TableProducts         = "products"
	TableSKUs             = "skus"
	TableMasterCategories = "master_categories"
	TableSiteCategories   = "site_categories"
	TableInquiries        = "inquiries"
	TableMediaAssets      = "media_assets"
	TableAuditLogs        = "audit_logs"
)

// Columns records which scope columns a table carries
type Columns struct {
	TenantID   bool
	SiteID     bool
	DeptID     bool
	FactoryID  bool
	ExporterID bool
	OwnerID    bool
	IsPublic   bool
}

// tableColumns is the static manifest of scoped tables. Adding a scoped
// table means adding a row here and the matching columns in its migration.
var tableColumns = map[string]Columns{
	TableProducts: {
		TenantID: true, SiteID: true, FactoryID: true, ExporterID: true,
		OwnerID: true, IsPublic: true,
	},
	TableSKUs: {
		TenantID: true, FactoryID: true, ExporterID: true,
	},
	TableMasterCategories: {
		TenantID: true,
	},
	TableSiteCategories: {
		TenantID: true, SiteID: true, FactoryID: true, ExporterID: true,
	},
	TableInquiries: {
		TenantID: true, SiteID: true, FactoryID: true, ExporterID: true,
		OwnerID: true,
	},
	TableMediaAssets: {
		TenantID: true, SiteID: true, FactoryID: true, ExporterID: true,
		OwnerID: true, IsPublic: true,
	},
	TableAuditLogs: {
		TenantID: true, SiteID: true,
	},
}

// ColumnsFor returns the manifest entry for a table
func ColumnsFor(table string) (Columns, bool) {
	cols, ok := tableColumns[table]
	return cols, ok
}
