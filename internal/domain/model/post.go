package model

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type AnalyticsKind string

const (
	AnalyticsView  AnalyticsKind = "view"
	AnalyticsClick AnalyticsKind = "click"
)

func (k AnalyticsKind) Valid() bool { return k == AnalyticsView || k == AnalyticsClick }

// Post is a seller's product listing.
type Post struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Currency    string `json:"currency"`
	// unique per owner
	Slug      string    `json:"slug"`
	MediaURLs []string  `json:"media_urls"`
	IsActive  bool      `json:"is_active"`
	Views     int64     `json:"views"`
	Clicks    int64     `json:"clicks"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// set when the free-account reset retired the listing
	ExpiredAt *time.Time `json:"expired_at,omitempty"`
}

// CanonicalURL is the public page of the listing.
func CanonicalURL(baseURL, username, slug string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(baseURL, "/"), url.PathEscape(username), url.PathEscape(slug))
}

// WhatsAppShareURL builds a wa.me link that pre-fills message.
func WhatsAppShareURL(message string) string {
	return "https://wa.me/?text=" + url.QueryEscape(message)
}

// FormatPrice renders cents as e.g. "R49.00".
func FormatPrice(cents int64, currency string) string {
	sym := currency + " "
	if currency == "" || currency == "ZAR" {
		sym = "R"
	}
	return fmt.Sprintf("%s%d.%02d", sym, cents/100, cents%100)
}
