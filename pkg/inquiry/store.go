// Package inquiry manages customer inquiries submitted against a site's
// products and their assignment to sales staff.
//
// Submission carries no identity; scope columns are derived from the site
// the inquiry was sent to. Everything after submission is scoped: sales
// staff only see inquiries assigned to them, admins see their whole site or
// tenant.
package inquiry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tradegate/tradegate/pkg/identity"
	"github.com/tradegate/tradegate/pkg/scope"
)

// Inquiry statuses
const (
	StatusNew      = "new"
	StatusAssigned = "assigned"
	StatusClosed   = "closed"
)

var (
	// ErrNotFound covers both absent rows and rows hidden by scope
	ErrNotFound = errors.New("inquiry not found")

	// ErrAlreadyClosed indicates a write against a closed inquiry
	ErrAlreadyClosed = errors.New("inquiry already closed")
)

// Inquiry is one customer inquiry. OwnerID is the assigned salesperson and
// is empty until assignment.
type Inquiry struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenant_id"`
	SiteID          string    `json:"site_id"`
	FactoryID       string    `json:"factory_id,omitempty"`
	ExporterID      string    `json:"exporter_id,omitempty"`
	OwnerID         string    `json:"owner_id,omitempty"`
	ProductID       *string   `json:"product_id,omitempty"`
	CustomerName    string    `json:"customer_name"`
	CustomerEmail   string    `json:"customer_email"`
	CustomerCompany string    `json:"customer_company,omitempty"`
	Message         string    `json:"message"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Store persists inquiries
type Store struct {
	db *sql.DB
}

// NewStore creates an inquiry store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const inquiryColumns = `
	id, tenant_id, site_id,
	COALESCE(factory_id::text, ''), COALESCE(exporter_id::text, ''), COALESCE(owner_id::text, ''),
	product_id, customer_name, customer_email, COALESCE(customer_company, ''),
	message, status, created_at, updated_at`

// Submit records a new inquiry against a site. Scope columns come from the
// receiving site, not from any identity; the inquiry starts unassigned.
func (s *Store) Submit(ctx context.Context, site *identity.Site, inq *Inquiry) error {
	query := `
		INSERT INTO inquiries (tenant_id, site_id, factory_id, exporter_id,
			product_id, customer_name, customer_email, customer_company, message, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`
	err := s.db.QueryRowContext(ctx, query,
		site.TenantID, site.ID, site.FactoryID, site.ExporterID,
		inq.ProductID, inq.CustomerName, inq.CustomerEmail,
		nullable(inq.CustomerCompany), inq.Message, StatusNew,
	).Scan(&inq.ID, &inq.CreatedAt, &inq.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to submit inquiry: %w", err)
	}

	inq.TenantID = site.TenantID
	inq.SiteID = site.ID
	if site.FactoryID != nil {
		inq.FactoryID = *site.FactoryID
	}
	if site.ExporterID != nil {
		inq.ExporterID = *site.ExporterID
	}
	inq.Status = StatusNew
	return nil
}

// Get fetches one inquiry visible to the identity
func (s *Store) Get(ctx context.Context, ident *identity.Identity, id string) (*Inquiry, error) {
	filter, err := scope.ForIdentity(ident, scope.TableInquiries)
	if err != nil {
		return nil, err
	}

	query := "SELECT " + inquiryColumns + " FROM inquiries WHERE id = $1"
	args := []interface{}{id}
	if where, filterArgs := filter.SQL(len(args)); where != "" {
		query += " AND " + where
		args = append(args, filterArgs...)
	}

	inq, err := scanInquiry(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inquiry: %w", err)
	}
	return inq, nil
}

// List returns inquiries within the identity's scope, newest first
func (s *Store) List(ctx context.Context, ident *identity.Identity, status string, limit, offset int) ([]Inquiry, error) {
	filter, err := scope.ForIdentity(ident, scope.TableInquiries)
	if err != nil {
		return nil, err
	}

	var conds []string
	var args []interface{}
	if status != "" {
		args = append(args, status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if where, filterArgs := filter.SQL(len(args)); where != "" {
		conds = append(conds, where)
		args = append(args, filterArgs...)
	}

	query := "SELECT " + inquiryColumns + " FROM inquiries"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list inquiries: %w", err)
	}
	defer rows.Close()

	var inquiries []Inquiry
	for rows.Next() {
		inq, err := scanInquiry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inquiry: %w", err)
		}
		inquiries = append(inquiries, *inq)
	}
	return inquiries, rows.Err()
}

// Assign hands an inquiry to a salesperson. The inquiry must be visible to
// the assigning identity and not yet closed. Reassignment is allowed.
func (s *Store) Assign(ctx context.Context, ident *identity.Identity, id, assigneeID string) error {
	current, err := s.Get(ctx, ident, id)
	if err != nil {
		return err
	}
	if current.Status == StatusClosed {
		return ErrAlreadyClosed
	}

	filter, err := scope.ForIdentity(ident, scope.TableInquiries)
	if err != nil {
		return err
	}

	query := "UPDATE inquiries SET owner_id = $1, status = $2, updated_at = NOW() WHERE id = $3"
	args := []interface{}{assigneeID, StatusAssigned, id}
	if where, filterArgs := filter.SQL(len(args)); where != "" {
		query += " AND " + where
		args = append(args, filterArgs...)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to assign inquiry: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close marks an inquiry resolved
func (s *Store) Close(ctx context.Context, ident *identity.Identity, id string) error {
	filter, err := scope.ForIdentity(ident, scope.TableInquiries)
	if err != nil {
		return err
	}

	query := "UPDATE inquiries SET status = $1, updated_at = NOW() WHERE id = $2 AND status <> $1"
	args := []interface{}{StatusClosed, id}
	if where, filterArgs := filter.SQL(len(args)); where != "" {
		query += " AND " + where
		args = append(args, filterArgs...)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to close inquiry: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInquiry(row rowScanner) (*Inquiry, error) {
	var inq Inquiry
	var productID sql.NullString
	err := row.Scan(
		&inq.ID, &inq.TenantID, &inq.SiteID,
		&inq.FactoryID, &inq.ExporterID, &inq.OwnerID,
		&productID, &inq.CustomerName, &inq.CustomerEmail, &inq.CustomerCompany,
		&inq.Message, &inq.Status, &inq.CreatedAt, &inq.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if productID.Valid {
		inq.ProductID = &productID.String
	}
	return &inq, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
