package scope

import (
	"fmt"

	"github.com/tradegate/tradegate/pkg/identity"
)

// StampValues returns the scope column values to write when creating a row
// in a scoped table. Values are derived from the identity's active site, so
// client-supplied scope fields are always overridden. Only columns the table
// carries and ids the identity actually has are returned; is_public is a
// content attribute, not a scope stamp, and is never set here.
func StampValues(ident *identity.Identity, table string) (map[string]interface{}, error) {
	cols, ok := ColumnsFor(table)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	stamp := make(map[string]interface{})
	if cols.TenantID && ident.Scope.TenantID != "" {
		stamp[ColTenantID] = ident.Scope.TenantID
	}
	if cols.SiteID && ident.Scope.SiteID != "" {
		stamp[ColSiteID] = ident.Scope.SiteID
	}
	if cols.DeptID && ident.Scope.DeptID != "" {
		stamp[ColDeptID] = ident.Scope.DeptID
	}
	if cols.FactoryID && ident.Scope.FactoryID != "" {
		stamp[ColFactoryID] = ident.Scope.FactoryID
	}
	if cols.ExporterID && ident.Scope.ExporterID != "" {
		stamp[ColExporterID] = ident.Scope.ExporterID
	}
	if cols.OwnerID && ident.Scope.UserID != "" {
		stamp[ColOwnerID] = ident.Scope.UserID
	}
	return stamp, nil
}
