package bookmarks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/linkhoard/linkhoard/client"
)

const (
	bookmarksPath = "/api/bookmarks"
	tagsPath      = "/api/tags"
)

// Service exposes the bookmark catalog operations.
type Service struct {
	client *client.Client
}

// NewService creates a Service backed by the given client.
func NewService(c *client.Client) *Service {
	return &Service{client: c}
}

// List returns a page of bookmarks matching the options.
func (s *Service) List(ctx context.Context, opts ListOptions) (*Page[Bookmark], error) {
	query := map[string]string{}
	if opts.Query != "" {
		query["q"] = opts.Query
	}
	if opts.Tag != "" {
		query["tag"] = opts.Tag
	}
	if opts.Unread {
		query["unread"] = "true"
	}
	if opts.Limit > 0 {
		query["limit"] = strconv.Itoa(opts.Limit)
	}
	if opts.Offset > 0 {
		query["offset"] = strconv.Itoa(opts.Offset)
	}

	var page Page[Bookmark]
	err := s.request(ctx, client.Descriptor{
		Method:    http.MethodGet,
		Path:      bookmarksPath,
		Query:     query,
		Operation: "bookmarks.list",
	}, &page)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// Get returns one bookmark by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Bookmark, error) {
	var b Bookmark
	err := s.request(ctx, client.Descriptor{
		Method:    http.MethodGet,
		Path:      bookmarkPath(id),
		Operation: "bookmarks.get",
	}, &b)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Search is List constrained to a free-text query.
func (s *Service) Search(ctx context.Context, query string, limit int) (*Page[Bookmark], error) {
	return s.List(ctx, ListOptions{Query: query, Limit: limit})
}

// Create saves a new bookmark and invalidates cached listings.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Bookmark, error) {
	var b Bookmark
	err := s.request(ctx, client.Descriptor{
		Method:    http.MethodPost,
		Path:      bookmarksPath,
		Body:      req,
		Operation: "bookmarks.create",
	}, &b)
	if err != nil {
		return nil, err
	}

	s.invalidate(bookmarksPath)
	return &b, nil
}

// Update applies a partial update and invalidates the affected reads.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (*Bookmark, error) {
	var b Bookmark
	err := s.request(ctx, client.Descriptor{
		Method:    http.MethodPatch,
		Path:      bookmarkPath(id),
		Body:      req,
		Operation: "bookmarks.update",
	}, &b)
	if err != nil {
		return nil, err
	}

	s.invalidate(bookmarksPath)
	return &b, nil
}

// Delete removes a bookmark and invalidates the affected reads.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.request(ctx, client.Descriptor{
		Method:    http.MethodDelete,
		Path:      bookmarkPath(id),
		Operation: "bookmarks.delete",
	}, nil)
	if err != nil {
		return err
	}

	s.invalidate(bookmarksPath)
	return nil
}

// ListTags returns all tags with usage counts.
func (s *Service) ListTags(ctx context.Context) ([]Tag, error) {
	var page Page[Tag]
	err := s.request(ctx, client.Descriptor{
		Method:    http.MethodGet,
		Path:      tagsPath,
		Operation: "tags.list",
	}, &page)
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

func (s *Service) request(ctx context.Context, d client.Descriptor, out any) error {
	data, err := s.client.Request(ctx, d)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &client.Error{
			Kind:    client.KindUnknown,
			Op:      d.Op(),
			Message: "response could not be decoded",
			Err:     err,
		}
	}
	return nil
}

// invalidate busts every cached read under the given path prefix. A
// mutation that succeeded upstream must not leave stale listings behind.
func (s *Service) invalidate(prefix string) {
	if c := s.client.Cache(); c != nil {
		c.InvalidateByPrefix(prefix)
	}
}

func bookmarkPath(id int64) string {
	return fmt.Sprintf("%s/%d", bookmarksPath, id)
}
