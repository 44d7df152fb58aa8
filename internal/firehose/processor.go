package firehose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/blackmichael/music-feeds/internal/car"
	"github.com/blackmichael/music-feeds/internal/codec"
	"github.com/blackmichael/music-feeds/internal/domain"
)

var (
	// ErrRecordNotFound is returned when a create operation references a
	// block that is not in the commit's archive.
	ErrRecordNotFound = errors.New("record not found in commit blocks")

	// ErrRecordMalformed is returned when a referenced block does not decode
	// as a post record.
	ErrRecordMalformed = errors.New("record malformed")
)

// PostHandler receives the post notifications raised by a commit.
// domain.FeedService implements it.
type PostHandler interface {
	ProcessNewPost(ctx context.Context, post *domain.IncomingPost) (bool, error)
	ProcessDeletePost(ctx context.Context, post *domain.DeletedPost) error
}

// notification is a resolved post operation. Exactly one field is set.
type notification struct {
	create *domain.IncomingPost
	delete *domain.DeletedPost
}

// Processor turns commits into post notifications.
type Processor struct {
	handler PostHandler
	logger  *slog.Logger

	matched atomic.Int64
}

// NewProcessor creates a Processor delivering to handler.
func NewProcessor(handler PostHandler, logger *slog.Logger) *Processor {
	return &Processor{
		handler: handler,
		logger:  logger,
	}
}

// Matched returns the number of posts the handler has saved so far.
func (p *Processor) Matched() int64 {
	return p.matched.Load()
}

// ProcessCommit resolves every post operation in commit, in order, and then
// delivers the resulting notifications. If any operation cannot be resolved
// (archive corrupt, record missing or malformed) no notification from the
// commit is delivered. Handler failures do not stop later notifications;
// they are joined into the returned error.
func (p *Processor) ProcessCommit(ctx context.Context, commit *Commit) error {
	notes, err := p.resolve(commit)
	if err != nil {
		return fmt.Errorf("commit seq=%d repo=%s: %w", commit.Seq, commit.Repo, err)
	}

	var errs []error
	for _, n := range notes {
		switch {
		case n.create != nil:
			saved, err := p.handler.ProcessNewPost(ctx, n.create)
			if err != nil {
				errs = append(errs, fmt.Errorf("create %s: %w", n.create.URI, err))
				continue
			}
			if saved {
				p.matched.Add(1)
				p.logger.Info("matched post",
					"uri", n.create.URI,
					"text_preview", truncate(n.create.Text, 100),
				)
			}
		case n.delete != nil:
			if err := p.handler.ProcessDeletePost(ctx, n.delete); err != nil {
				errs = append(errs, fmt.Errorf("delete %s: %w", n.delete.URI, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (p *Processor) resolve(commit *Commit) ([]notification, error) {
	var (
		notes   []notification
		archive *car.Archive
	)

	for _, op := range commit.Ops {
		collection, rkey, ok := strings.Cut(op.Path, "/")
		if !ok || collection != domain.PostCollection {
			continue
		}
		uri := domain.ATURI{DID: commit.Repo, Collection: collection, RKey: rkey}.String()

		switch op.Action {
		case ActionCreate:
			if op.CID == nil {
				return nil, fmt.Errorf("%w: create %s has no cid", ErrRecordNotFound, uri)
			}
			if archive == nil {
				var err error
				archive, err = car.Read(commit.Blocks)
				if err != nil {
					return nil, err
				}
			}

			block, ok := archive.Get(op.CID.CID)
			if !ok {
				return nil, fmt.Errorf("%w: %s (cid %s) among %d blocks", ErrRecordNotFound, uri, op.CID, archive.Len())
			}

			var record PostRecord
			if err := codec.Unmarshal(block, &record); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrRecordMalformed, uri, err)
			}

			notes = append(notes, notification{create: &domain.IncomingPost{
				URI:       uri,
				CID:       op.CID.String(),
				RKey:      rkey,
				AuthorDID: commit.Repo,
				Text:      record.Text,
				LinkURIs:  record.LinkURIs(),
				CreatedAt: record.CreatedAt,
			}})

		case ActionDelete:
			notes = append(notes, notification{delete: &domain.DeletedPost{
				URI:       uri,
				RKey:      rkey,
				AuthorDID: commit.Repo,
			}})

		default:
			// updates and unknown actions are ignored
		}
	}

	return notes, nil
}

// truncate returns the first n characters of s, appending "..." if truncated.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
