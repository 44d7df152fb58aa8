package firehose

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/blackmichael/music-feeds/internal/car"
	"github.com/blackmichael/music-feeds/internal/codec"
	"github.com/blackmichael/music-feeds/internal/domain"
	"github.com/stretchr/testify/require"
)

const testRepo = "did:plc:testauthor"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func recordBlock(t *testing.T, record any) car.Block {
	t.Helper()
	data, err := codec.Marshal(record)
	require.NoError(t, err)
	b, err := car.NewBlock(data)
	require.NoError(t, err)
	return b
}

func postRecord(text string) PostRecord {
	return PostRecord{
		Type:      domain.PostCollection,
		Text:      text,
		CreatedAt: "2024-11-20T10:00:00.000Z",
		Langs:     []string{"en"},
	}
}

func createOp(rkey string, b car.Block) RepoOp {
	return RepoOp{Action: ActionCreate, Path: domain.PostCollection + "/" + rkey, CID: codec.NewLink(b.CID)}
}

func deleteOp(rkey string) RepoOp {
	return RepoOp{Action: ActionDelete, Path: domain.PostCollection + "/" + rkey}
}

func makeCommit(t *testing.T, repo string, seq int64, blocks []car.Block, ops ...RepoOp) *Commit {
	t.Helper()
	archive, err := car.Encode(nil, blocks)
	require.NoError(t, err)
	return &Commit{
		Seq:    seq,
		Repo:   repo,
		Rev:    "3lb3tt5kwha2w",
		Blocks: archive,
		Ops:    ops,
		Time:   "2024-11-20T10:00:00.000Z",
	}
}

func postURI(repo, rkey string) string {
	return domain.ATURI{DID: repo, Collection: domain.PostCollection, RKey: rkey}.String()
}

// recordingHandler captures notifications in delivery order.
type recordingHandler struct {
	mu        sync.Mutex
	creates   []*domain.IncomingPost
	deletes   []*domain.DeletedPost
	order     []string
	createErr error
}

func (h *recordingHandler) ProcessNewPost(_ context.Context, post *domain.IncomingPost) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.order = append(h.order, "create:"+post.URI)
	if h.createErr != nil {
		return false, h.createErr
	}
	h.creates = append(h.creates, post)
	return true, nil
}

func (h *recordingHandler) ProcessDeletePost(_ context.Context, post *domain.DeletedPost) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.order = append(h.order, "delete:"+post.URI)
	h.deletes = append(h.deletes, post)
	return nil
}
