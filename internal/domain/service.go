package domain

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// FeedService is the core domain service. It owns the business logic for
// classifying incoming posts, persisting matched posts and their links, and
// serving feed skeletons.
type FeedService struct {
	feeds      map[string]FeedConfig // keyed by feed URI
	posts      PostRepository
	links      LinkRepository
	cursors    CursorRepository
	classifier Classifier
	logger     *slog.Logger
	now        func() time.Time
}

// NewFeedService creates a FeedService with the given feed configurations.
func NewFeedService(
	configs []FeedConfig,
	posts PostRepository,
	links LinkRepository,
	cursors CursorRepository,
	classifier Classifier,
	logger *slog.Logger,
) (*FeedService, error) {
	feeds := make(map[string]FeedConfig, len(configs))
	for _, cfg := range configs {
		if err := cfg.validate(); err != nil {
			return nil, err
		}
		feeds[cfg.URI] = cfg
	}

	return &FeedService{
		feeds:      feeds,
		posts:      posts,
		links:      links,
		cursors:    cursors,
		classifier: classifier,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// FeedURIs returns the AT-URIs of all registered feeds in a stable order.
func (s *FeedService) FeedURIs() []string {
	uris := make([]string, 0, len(s.feeds))
	for uri := range s.feeds {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}

// Describe returns the describeFeedGenerator view of this generator.
func (s *FeedService) Describe(serviceDID string) *GeneratorDescription {
	uris := s.FeedURIs()
	desc := &GeneratorDescription{DID: serviceDID, Feeds: make([]FeedDescription, len(uris))}
	for i, uri := range uris {
		desc.Feeds[i] = FeedDescription{URI: uri}
	}
	return desc
}

// ProcessNewPost scans an incoming post for music links. If any are found
// the post is persisted and every link sighting is recorded. Returns true if
// the post was saved. A post that is already stored (a replayed commit) is
// neither saved again nor counted towards its links.
func (s *FeedService) ProcessNewPost(ctx context.Context, incoming *IncomingPost) (bool, error) {
	found := s.classifier.FindLinks(matchText(incoming))
	if len(found) == 0 {
		return false, nil
	}

	now := s.now().UTC()
	post := &Post{
		URI:       incoming.URI,
		CID:       incoming.CID,
		IndexedAt: now,
	}
	created, err := s.posts.CreatePost(ctx, post)
	if err != nil {
		return false, fmt.Errorf("create post: %w", err)
	}
	if !created {
		s.logger.Debug("post already stored", "uri", incoming.URI)
		return false, nil
	}

	for _, f := range found {
		link := &Link{
			URL:       f.URL,
			Kind:      f.Kind,
			Site:      f.Site,
			CreatedAt: now,
		}
		if err := s.links.UpsertLink(ctx, link); err != nil {
			s.logger.Error("failed to record link",
				"url", f.URL,
				"post", incoming.URI,
				"error", err,
			)
		}
	}
	return true, nil
}

// matchText is the post text followed by any facet link that the text does
// not already spell out in full, so a link is never counted twice per post.
func matchText(incoming *IncomingPost) string {
	if len(incoming.LinkURIs) == 0 {
		return incoming.Text
	}

	var b strings.Builder
	b.WriteString(incoming.Text)
	for _, uri := range incoming.LinkURIs {
		if strings.Contains(incoming.Text, uri) {
			continue
		}
		b.WriteByte(' ')
		b.WriteString(uri)
	}
	return b.String()
}

// ProcessDeletePost removes a post by URI. Links are left untouched.
func (s *FeedService) ProcessDeletePost(ctx context.Context, deleted *DeletedPost) error {
	if err := s.posts.DeletePost(ctx, deleted.URI); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

// GetCursor retrieves the last-processed firehose cursor for the given service.
func (s *FeedService) GetCursor(ctx context.Context, service string) (int64, error) {
	return s.cursors.GetCursor(ctx, service)
}

// UpdateCursor persists the firehose cursor for the given service.
func (s *FeedService) UpdateCursor(ctx context.Context, service string, cursor int64) error {
	return s.cursors.UpdateCursor(ctx, service, cursor)
}

// TopLinks returns the most frequently shared links.
func (s *FeedService) TopLinks(ctx context.Context, limit int) ([]Link, error) {
	return s.links.ListTopLinks(ctx, limit)
}

// GetFeedSkeleton returns a page of the feed skeleton for the given feed URI.
// The returned cursor is empty once fewer than limit posts remain.
func (s *FeedService) GetFeedSkeleton(ctx context.Context, feedURI string, limit int, cursor string) (*FeedSkeleton, error) {
	s.logger.Debug("GetFeedSkeleton called", "feedURI", feedURI, "limit", limit, "cursor", cursor)

	if _, ok := s.feeds[feedURI]; !ok {
		s.logger.Warn("unknown feed requested", "feedURI", feedURI, "registered_feeds", s.FeedURIs())
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeed, feedURI)
	}

	var after *Cursor
	if cursor != "" {
		parsed, err := ParseCursor(cursor)
		if err != nil {
			return nil, err
		}
		after = parsed
	}

	posts, err := s.posts.ListPostsBefore(ctx, after, limit)
	if err != nil {
		s.logger.Error("repository query failed", "feedURI", feedURI, "limit", limit, "cursor", cursor, "error", err)
		return nil, fmt.Errorf("list posts: %w", err)
	}

	skeleton := &FeedSkeleton{
		Posts: make([]SkeletonPost, len(posts)),
	}
	for i, p := range posts {
		skeleton.Posts[i] = SkeletonPost{Post: p.URI}
	}
	if len(posts) == limit && limit > 0 {
		skeleton.Cursor = CursorAfter(posts[len(posts)-1]).String()
	}

	s.logger.Debug("repository query succeeded", "posts_count", len(posts), "next_cursor", skeleton.Cursor)
	return skeleton, nil
}

// StartCleanupJob runs a background loop that removes posts older than maxAge
// and caps the total at maxRows. It runs immediately on start and then repeats
// at the given interval. It blocks until ctx is cancelled.
func (s *FeedService) StartCleanupJob(ctx context.Context, interval time.Duration, maxAge time.Duration, maxRows int) {
	s.runCleanup(ctx, maxAge, maxRows)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCleanup(ctx, maxAge, maxRows)
		}
	}
}

func (s *FeedService) runCleanup(ctx context.Context, maxAge time.Duration, maxRows int) {
	deleted, err := s.posts.DeleteOldPosts(ctx, maxAge, maxRows)
	if err != nil {
		s.logger.Error("post cleanup failed", "error", err)
	} else if deleted > 0 {
		s.logger.Info("post cleanup complete", "deleted", deleted)
	}
}
