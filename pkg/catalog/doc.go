// Package catalog manages products, SKUs, and the two category layers:
// tenant-wide master categories and per-site categories.
//
// Every read goes through the scope filter for the identity making the
// request, and every create is stamped with that identity's scope ids, so a
// row is always visible under exactly the scope it was created in. A row
// hidden by scope is reported as not found, never as forbidden; the
// response must not reveal that the row exists.
package catalog
