package bookmarks

import "time"

// Bookmark is one saved link.
type Bookmark struct {
	ID          int64     `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Archived    bool      `json:"archived"`
	Unread      bool      `json:"unread"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Tag is a label with its usage count.
type Tag struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Page is one page of a listing.
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ListOptions narrow a bookmark listing.
type ListOptions struct {
	// Query is a free-text search term.
	Query string

	// Tag filters to bookmarks carrying the tag.
	Tag string

	// Unread filters to unread bookmarks when true.
	Unread bool

	// Limit and Offset page through results. A zero Limit uses the
	// upstream default.
	Limit  int
	Offset int
}

// CreateRequest describes a bookmark to create.
type CreateRequest struct {
	URL         string   `json:"url"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Unread      bool     `json:"unread,omitempty"`
}

// UpdateRequest describes a partial bookmark update. Nil fields are left
// untouched upstream.
type UpdateRequest struct {
	URL         *string   `json:"url,omitempty"`
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Notes       *string   `json:"notes,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Archived    *bool     `json:"archived,omitempty"`
	Unread      *bool     `json:"unread,omitempty"`
}
