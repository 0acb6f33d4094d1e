// Package document implements document metadata with immutable version
// chains and per-company storage quota accounting.
//
// Each logical document is a chain of rows sharing one root_id. Uploading a
// new version appends a row with version+1 and flips the previous latest
// flag off, all in one transaction; a partial unique index guarantees at
// most one latest row per chain even when two uploads race. Version rows
// are never mutated, matching the evidentiary needs of legal work.
package document
