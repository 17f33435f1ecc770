package model

import "time"

// Document is the metadata row for one generated or attached artifact.
// It carries JSON tags only; persistence lives in repository/sqldb.
// The bytes live in a document store under FilePath; the record is never
// mutated after insertion.
type Document struct {
	ID           int64     `json:"document_id"`
	POID         int64     `json:"po_id"`
	FilePath     string    `json:"file_path"`
	FileName     string    `json:"file_name"`
	DocumentType string    `json:"document_type"`
	CreatedBy    string    `json:"created_by"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
