package scope

import (
	"fmt"
	"strings"

	"github.com/tradegate/tradegate/pkg/identity"
)

// ErrUnknownTable indicates a table with no manifest entry. Scoped queries
// against unregistered tables are refused rather than left unfiltered.
var ErrUnknownTable = fmt.Errorf("table not in scope manifest")

type predicate interface {
	render(b *strings.Builder, args *[]interface{}, offset int)
}

// eq renders "col = $n"
type eq struct {
	col string
	val interface{}
}

func (p eq) render(b *strings.Builder, args *[]interface{}, offset int) {
	*args = append(*args, p.val)
	fmt.Fprintf(b, "%s = $%d", p.col, offset+len(*args))
}

// isTrue renders "col = TRUE" without consuming a placeholder
type isTrue struct {
	col string
}

func (p isTrue) render(b *strings.Builder, _ *[]interface{}, _ int) {
	b.WriteString(p.col + " = TRUE")
}

// orGroup renders "(a OR b)"
type orGroup struct {
	preds []predicate
}

func (p orGroup) render(b *strings.Builder, args *[]interface{}, offset int) {
	b.WriteString("(")
	for i, sub := range p.preds {
		if i > 0 {
			b.WriteString(" OR ")
		}
		sub.render(b, args, offset)
	}
	b.WriteString(")")
}

// matchNone renders a contradiction so the query returns zero rows
type matchNone struct{}

func (matchNone) render(b *strings.Builder, _ *[]interface{}, _ int) {
	b.WriteString("1 = 0")
}

// Filter is a rendered-on-demand WHERE fragment for one table and one
// identity. A filter with no predicates means unrestricted access.
type Filter struct {
	preds []predicate
}

// Empty reports whether the filter imposes no restriction
func (f *Filter) Empty() bool {
	return len(f.preds) == 0
}

// SQL renders the filter as an AND-joined fragment with lib/pq placeholders.
// argOffset is the count of arguments already bound by the caller, so the
// fragment's placeholders start at $argOffset+1. An empty filter renders as
// ("", nil).
func (f *Filter) SQL(argOffset int) (string, []interface{}) {
	if f.Empty() {
		return "", nil
	}
	var b strings.Builder
	var args []interface{}
	for i, p := range f.preds {
		if i > 0 {
			b.WriteString(" AND ")
		}
		p.render(&b, &args, argOffset)
	}
	return b.String(), args
}

// ForIdentity builds the row filter for an identity against a scoped table.
// Dispatch is on the resolved role class only, never on role names. Missing
// required scope ids and the unknown class both fail closed to a filter
// matching nothing.
func ForIdentity(ident *identity.Identity, table string) (*Filter, error) {
	cols, ok := ColumnsFor(table)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	switch ident.Class {
	case identity.RoleClassSuperAdmin:
		return &Filter{}, nil

	case identity.RoleClassExporterAdmin:
		return territory(cols, cols.ExporterID, ColExporterID, ident.Scope.ExporterID, ident.Scope.TenantID), nil

	case identity.RoleClassFactoryAdmin:
		return territory(cols, cols.FactoryID, ColFactoryID, ident.Scope.FactoryID, ident.Scope.TenantID), nil

	case identity.RoleClassExporterSales:
		f := territory(cols, cols.ExporterID, ColExporterID, ident.Scope.ExporterID, ident.Scope.TenantID)
		f.addOwnership(cols, ident.Scope.UserID)
		return f, nil

	case identity.RoleClassFactorySales:
		f := territory(cols, cols.FactoryID, ColFactoryID, ident.Scope.FactoryID, ident.Scope.TenantID)
		f.addOwnership(cols, ident.Scope.UserID)
		return f, nil

	default:
		return none(), nil
	}
}

// territory builds the class's home predicate. When the table carries the
// class's org column, the filter pins that column; tables without it fall
// back to the tenant column so tenant-level data stays inside the tenant. A
// missing required id fails closed.
func territory(cols Columns, hasOrgCol bool, orgCol, orgID, tenantID string) *Filter {
	if hasOrgCol {
		if orgID == "" {
			return none()
		}
		return &Filter{preds: []predicate{eq{col: orgCol, val: orgID}}}
	}
	if cols.TenantID {
		if tenantID == "" {
			return none()
		}
		return &Filter{preds: []predicate{eq{col: ColTenantID, val: tenantID}}}
	}
	return &Filter{}
}

func none() *Filter {
	return &Filter{preds: []predicate{matchNone{}}}
}

// addOwnership narrows sales roles to own rows plus shared ones. Columns the
// table lacks are simply omitted; a table with neither column imposes no
// ownership restriction beyond the territory predicate.
func (f *Filter) addOwnership(cols Columns, userID string) {
	var preds []predicate
	if cols.OwnerID {
		preds = append(preds, eq{col: ColOwnerID, val: userID})
	}
	if cols.IsPublic {
		preds = append(preds, isTrue{col: ColIsPublic})
	}
	switch len(preds) {
	case 0:
	case 1:
		f.preds = append(f.preds, preds[0])
	default:
		f.preds = append(f.preds, orGroup{preds: preds})
	}
}
