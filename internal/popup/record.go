package popup

import (
	"context"
	"errors"
	"strings"
)

type Size string

const (
	SizeSmall  Size = "sm"
	SizeMedium Size = "md"
	SizeLarge  Size = "lg"
)

type Styles struct {
	PopupSize Size `json:"popupSize"`
}

// Record is a server-provided popup descriptor. Content is HTML.
type Record struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	LinkURL  string `json:"linkUrl,omitempty"`
	IsActive bool   `json:"isActive"`
	Styles   Styles `json:"styles"`
}

func normalizeRecord(r Record) Record {
	r.Title = strings.TrimSpace(r.Title)
	r.LinkURL = strings.TrimSpace(r.LinkURL)
	switch r.Styles.PopupSize {
	case SizeSmall, SizeMedium, SizeLarge:
	default:
		r.Styles.PopupSize = SizeMedium
	}
	return r
}

// Store serves popup records to the gateway.
type Store interface {
	ListActive(ctx context.Context) ([]Record, error)
	Get(ctx context.Context, id int) (Record, error)
	Put(ctx context.Context, rec Record) error
}

var ErrNotFound = errors.New("popup not found")
