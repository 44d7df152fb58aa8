package firehose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

const (
	cursorServiceName  = "relay"
	cursorSaveInterval = 5 * time.Second
	statsInterval      = 30 * time.Second

	initialBackoff = time.Second
	maxBackoff     = 60 * time.Second

	// maxFrameSize bounds a single websocket message. Relay commits are
	// capped well below this.
	maxFrameSize = 8 << 20
)

// errRelayError marks a connection the relay ended with an error frame.
var errRelayError = errors.New("relay error frame")

// CursorStore persists the last relay sequence number seen, so a restarted
// subscriber can resume close to where it stopped.
type CursorStore interface {
	GetCursor(ctx context.Context, service string) (int64, error)
	UpdateCursor(ctx context.Context, service string, cursor int64) error
}

// CommitDispatcher accepts decoded commits for asynchronous processing.
type CommitDispatcher interface {
	Dispatch(ctx context.Context, commit *Commit) error
}

// Subscriber connects to the relay's subscribeRepos stream and hands every
// commit to a dispatcher.
type Subscriber struct {
	url        string
	cursors    CursorStore
	dispatcher CommitDispatcher
	logger     *slog.Logger
	dialer     *websocket.Dialer

	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewSubscriber creates a new firehose subscriber.
func NewSubscriber(
	firehoseURL string,
	cursors CursorStore,
	dispatcher CommitDispatcher,
	logger *slog.Logger,
) *Subscriber {
	return &Subscriber{
		url:            firehoseURL,
		cursors:        cursors,
		dispatcher:     dispatcher,
		logger:         logger,
		dialer:         websocket.DefaultDialer,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}
}

// Start connects to the firehose and processes events until the context is
// cancelled. When a connection ends it reconnects with exponential backoff,
// resuming from the last saved sequence number. The backoff resets after a
// connection that delivered at least one frame.
func (s *Subscriber) Start(ctx context.Context) error {
	backoff := s.initialBackoff
	for {
		delivered, err := s.subscribe(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if delivered {
			backoff = s.initialBackoff
		}

		s.logger.Error("firehose connection error, reconnecting", "error", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > s.maxBackoff {
			backoff = s.maxBackoff
		}
	}
}

func (s *Subscriber) buildURL(cursor int64) string {
	u, err := url.Parse(s.url)
	if err != nil {
		return s.url
	}
	q := u.Query()
	if cursor > 0 {
		q.Set("cursor", strconv.FormatInt(cursor, 10))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// connStats tracks one connection's progress.
type connStats struct {
	framesReceived  int64
	framesMalformed int64
	commitsReceived int64
	latestSeq       int64
}

// subscribe runs a single connection until it fails or ctx is cancelled. It
// reports whether any frame was received.
func (s *Subscriber) subscribe(ctx context.Context) (bool, error) {
	cursor, err := s.cursors.GetCursor(ctx, cursorServiceName)
	if err != nil {
		s.logger.Warn("failed to load cursor, starting from live", "error", err)
	}

	wsURL := s.buildURL(cursor)
	s.logger.Info("connecting to firehose", "url", wsURL)

	conn, _, err := s.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return false, fmt.Errorf("dial firehose: %w", err)
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameSize)

	// ReadMessage does not observe ctx; closing the connection unblocks it.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	s.logger.Info("connected to firehose", "cursor", cursor)

	var stats connStats
	defer s.saveCursor(ctx, &stats)

	lastCursorSave := time.Now()
	lastStatsLog := time.Now()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return stats.framesReceived > 0, ctx.Err()
			}
			return stats.framesReceived > 0, fmt.Errorf("read message: %w", err)
		}
		stats.framesReceived++

		if err := s.handleMessage(ctx, message, &stats); err != nil {
			return true, err
		}

		// Log stats every 30 seconds
		if time.Since(lastStatsLog) >= statsInterval {
			s.logger.Info("firehose stats",
				"frames_received", stats.framesReceived,
				"frames_malformed", stats.framesMalformed,
				"commits_received", stats.commitsReceived,
				"seq", stats.latestSeq,
			)
			lastStatsLog = time.Now()
		}

		// Periodically save cursor
		if time.Since(lastCursorSave) >= cursorSaveInterval && stats.latestSeq > 0 {
			if err := s.cursors.UpdateCursor(ctx, cursorServiceName, stats.latestSeq); err != nil {
				s.logger.Error("failed to save cursor", "error", err)
			} else {
				lastCursorSave = time.Now()
			}
		}
	}
}

// handleMessage decodes one payload. Malformed frames and bodies are logged
// and skipped; only a relay error frame ends the connection.
func (s *Subscriber) handleMessage(ctx context.Context, message []byte, stats *connStats) error {
	frame, err := DecodeFrame(message)
	if err != nil {
		stats.framesMalformed++
		s.logger.Warn("dropping malformed frame", "size", len(message), "error", err)
		return nil
	}

	if frame.Kind == FrameError {
		var body ErrorBody
		if err := frame.DecodeBody(&body); err != nil {
			return fmt.Errorf("%w: undecodable body: %v", errRelayError, err)
		}
		return fmt.Errorf("%w: %s: %s", errRelayError, body.Error, body.Message)
	}

	switch frame.Type {
	case TypeCommit:
		var commit Commit
		if err := frame.DecodeBody(&commit); err != nil {
			stats.framesMalformed++
			s.logger.Warn("dropping undecodable commit", "error", err)
			return nil
		}
		stats.commitsReceived++
		stats.latestSeq = commit.Seq

		if err := s.dispatcher.Dispatch(ctx, &commit); err != nil {
			return fmt.Errorf("dispatch commit %d: %w", commit.Seq, err)
		}

	case TypeIdentity, TypeAccount, TypeSync:
		var body SequencedBody
		if err := frame.DecodeBody(&body); err != nil {
			stats.framesMalformed++
			s.logger.Warn("dropping undecodable event", "type", frame.Type, "error", err)
			return nil
		}
		if body.Seq > stats.latestSeq {
			stats.latestSeq = body.Seq
		}

	case TypeInfo:
		var info InfoBody
		if err := frame.DecodeBody(&info); err != nil {
			s.logger.Warn("dropping undecodable info frame", "error", err)
			return nil
		}
		s.logger.Info("relay info", "name", info.Name, "message", info.Message)
	}

	return nil
}

// saveCursor records the latest sequence number when a connection ends. It
// runs even after ctx is cancelled, so it uses a short detached deadline.
func (s *Subscriber) saveCursor(ctx context.Context, stats *connStats) {
	if stats.latestSeq == 0 {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.cursors.UpdateCursor(saveCtx, cursorServiceName, stats.latestSeq); err != nil {
		s.logger.Error("failed to save cursor", "error", err)
	}
}
