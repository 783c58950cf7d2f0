package models

import "github.com/dmitrijs2005/credkeeper/internal/cryptox"

// SecureDocument is an encrypted record as held by a document collection.
type SecureDocument struct {
	ID       string           `json:"id"`
	Envelope cryptox.Envelope `json:"envelope"`
}
