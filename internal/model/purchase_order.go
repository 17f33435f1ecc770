package model

// PurchaseOrder is the parent a document belongs to. Its table is owned by
// the surrounding system; this core only reads it.
type PurchaseOrder struct {
	ID     int64  `json:"po_id"`
	Number string `json:"po_number"`
	Status string `json:"status"`
}
