package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Template is an HTML/CSS document containing placeholder tokens.
type Template struct {
	ID        string    `json:"id" db:"id"`
	Kind      Kind      `json:"kind" db:"kind"`
	Name      string    `json:"name" db:"name"`
	Subject   string    `json:"subject,omitempty" db:"subject"`
	HTML      string    `json:"html" db:"html"`
	CSS       string    `json:"css" db:"css"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// GalleryImage is one entry of the ordered image collection.
type GalleryImage struct {
	ID        string    `json:"id" db:"id"`
	URL       string    `json:"url" db:"url"`
	Title     string    `json:"title" db:"title"`
	Caption   string    `json:"caption" db:"caption"`
	Position  int       `json:"position" db:"position"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Testimonial is a client quote. Only approved entries are ever rendered.
type Testimonial struct {
	ID         string    `json:"id" db:"id"`
	Author     string    `json:"author" db:"author"`
	EventLabel string    `json:"event_label" db:"event_label"`
	Quote      string    `json:"quote" db:"quote"`
	PhotoURL   string    `json:"photo_url" db:"photo_url"`
	Approved   bool      `json:"approved" db:"approved"`
	Position   int       `json:"position" db:"position"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// AuditRecord is the immutable capture of a final signature.
type AuditRecord struct {
	ID          string    `json:"id" db:"id"`
	RecordID    string    `json:"record_id" db:"record_id"`
	SignerName  string    `json:"signer_name" db:"signer_name"`
	SignerEmail string    `json:"signer_email" db:"signer_email"`
	SignerIP    string    `json:"signer_ip" db:"signer_ip"`
	UserAgent   string    `json:"user_agent" db:"user_agent"`
	SignedAt    time.Time `json:"signed_at" db:"signed_at"`
	Version     int       `json:"version" db:"version"`
	ContentHash string    `json:"content_hash" db:"content_hash"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Company is the fixed identity of the service provider.
type Company struct {
	Name     string `yaml:"name" json:"name"`
	Document string `yaml:"document" json:"document"`
	Address  string `yaml:"address" json:"address"`
	Email    string `yaml:"email" json:"email"`
	Phone    string `yaml:"phone" json:"phone"`
	Owner    string `yaml:"owner" json:"owner"`
}

// ServicesTotal sums the prices of included services.
func ServicesTotal(items ServiceItems) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items.IncludedOnly() {
		total = total.Add(item.Price)
	}
	return total
}
