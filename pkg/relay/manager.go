// Package relay orchestrates one inbound chat message end to end: role
// gating, attachment handling, thread resolution, single-flight admission,
// the backend send with stale-thread recovery, the assistant run, and usage
// recording.
package relay

import (
	"context"
	"errors"
	"log/slog"

	"github.com/calibot/assistant-relay/pkg/access"
	"github.com/calibot/assistant-relay/pkg/assistant"
	"github.com/calibot/assistant-relay/pkg/extract"
	"github.com/calibot/assistant-relay/pkg/thread"
	"github.com/calibot/assistant-relay/pkg/usage"
	"github.com/calibot/assistant-relay/pkg/userdir"
)

// Inbound is one message delivered by the chat platform boundary.
type Inbound struct {
	UserID      thread.UserID
	Username    string
	DisplayName string

	// Roles are the user's platform roles, for the access gate.
	Roles []string

	Text        string
	Attachments []Attachment
}

// Attachment is a platform-hosted file reference.
type Attachment struct {
	URL      string
	Filename string
}

// Outcome is the result of handling one inbound message.
type Outcome struct {
	// Dropped is true when the single-flight guard discarded the message
	// because the user's thread already had a request in flight. A dropped
	// message gets no user-facing reply; that is the contract, not a bug.
	Dropped bool

	// Replies are the chunks to deliver back to the user, in order. Empty
	// for dropped messages.
	Replies []string

	// ThreadID is the thread that served the request, when one was resolved.
	// After a stale-thread recovery this is the replacement thread.
	ThreadID thread.ID
}

// Manager owns the session-manager state (cache and guard) and the
// collaborators needed to handle messages. Construct one per process and
// share it across request handlers; there are no package-level globals.
type Manager struct {
	cache    *thread.Cache
	guard    *thread.Guard
	resolver *thread.Resolver
	sender   *thread.Sender

	backend   assistant.Backend
	recorder  usage.Recorder
	directory userdir.Directory
	gate      *access.Gate
	fetcher   Fetcher
	logger    *slog.Logger

	messageLimit int
}

// ManagerConfig wires a Manager's collaborators.
type ManagerConfig struct {
	Store     thread.Store
	Backend   assistant.Backend
	Recorder  usage.Recorder
	Directory userdir.Directory
	Gate      *access.Gate
	Fetcher   Fetcher
	Logger    *slog.Logger

	// MessageLimit is the platform's maximum reply length in runes.
	// Defaults to 2000.
	MessageLimit int
}

// NewManager creates a manager with a fresh cache and guard.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MessageLimit == 0 {
		cfg.MessageLimit = 2000
	}

	cache := thread.NewCache()
	return &Manager{
		cache:        cache,
		guard:        thread.NewGuard(),
		resolver:     thread.NewResolver(cfg.Store, cache, cfg.Backend, logger),
		sender:       thread.NewSender(cfg.Store, cache, cfg.Backend, logger),
		backend:      cfg.Backend,
		recorder:     cfg.Recorder,
		directory:    cfg.Directory,
		gate:         cfg.Gate,
		fetcher:      cfg.Fetcher,
		logger:       logger.With("component", "relay"),
		messageLimit: cfg.MessageLimit,
	}
}

// Cache exposes the thread cache so the janitor can be wired to it.
func (m *Manager) Cache() *thread.Cache { return m.cache }

// Guard exposes the single-flight guard, for tests and stats.
func (m *Manager) Guard() *thread.Guard { return m.guard }

// HandleInbound processes one message and returns what to send back. The
// returned error is for the caller's logs; every Outcome already carries the
// fixed user-facing reply (or none, for drops), so raw errors never reach
// the user.
func (m *Manager) HandleInbound(ctx context.Context, msg Inbound) (*Outcome, error) {
	if !m.gate.Allowed(msg.Roles) {
		m.logger.Info("access denied", "user_id", msg.UserID)
		return m.fixedReply(MsgAccessDenied), nil
	}

	if err := m.directory.Upsert(ctx, userdir.Entry{
		UserID:      msg.UserID,
		Username:    msg.Username,
		DisplayName: msg.DisplayName,
	}); err != nil {
		// Name lookup is best-effort; the session path does not depend on it.
		m.logger.Warn("user directory upsert failed", "user_id", msg.UserID, "error", err)
	}

	content, reply, err := m.buildContent(ctx, msg)
	if err != nil {
		m.logger.Warn("content preparation failed", "user_id", msg.UserID, "error", err)
	}
	if reply != "" {
		return m.fixedReply(reply), err
	}
	if len(content) == 0 {
		return m.fixedReply(MsgEmptyMessage), nil
	}

	threadID, err := m.resolver.Resolve(ctx, msg.UserID)
	if err != nil {
		m.logger.Error("thread resolution failed", "user_id", msg.UserID, "error", err)
		return m.fixedReply(MsgBackendUnavailable), err
	}

	if !m.guard.TryAcquire(threadID) {
		m.logger.Info("duplicate in-flight request dropped", "user_id", msg.UserID, "thread_id", threadID)
		return &Outcome{Dropped: true, ThreadID: threadID}, nil
	}
	// One guard hold spans the whole cycle, stale-thread retry included.
	defer m.guard.Release(threadID)

	finalID, err := m.sender.Send(ctx, msg.UserID, threadID, func(ctx context.Context, id thread.ID) error {
		return m.backend.AddMessage(ctx, id, content)
	})
	if err != nil {
		m.logger.Error("backend send failed", "user_id", msg.UserID, "thread_id", finalID, "error", err)
		return &Outcome{Replies: []string{MsgBackendUnavailable}, ThreadID: finalID}, err
	}

	run, err := m.backend.Run(ctx, finalID)
	if err != nil {
		m.logger.Error("assistant run failed", "user_id", msg.UserID, "thread_id", finalID, "error", err)
		return &Outcome{Replies: []string{MsgBackendUnavailable}, ThreadID: finalID}, err
	}

	m.recordUsage(ctx, msg.UserID, finalID, run)

	replyText := run.Reply
	if replyText == "" {
		replyText = MsgNoReply
	}
	return &Outcome{
		Replies:  SplitMessage(replyText, m.messageLimit),
		ThreadID: finalID,
	}, nil
}

// buildContent assembles backend message parts from the text and
// attachments. A non-empty reply means the request must abort with that
// fixed message.
func (m *Manager) buildContent(ctx context.Context, msg Inbound) (parts []assistant.Part, reply string, err error) {
	if msg.Text != "" {
		parts = append(parts, assistant.TextPart(msg.Text))
	}

	for _, att := range msg.Attachments {
		format, ok := extract.FromFilename(att.Filename)
		if !ok {
			return nil, MsgUnsupportedType, nil
		}

		data, err := m.fetcher.Fetch(ctx, att.URL)
		if err != nil {
			return nil, MsgDownloadFailed, err
		}

		if format.IsImage() {
			fileID, err := m.backend.UploadImage(ctx, att.Filename, data)
			if err != nil {
				return nil, MsgUploadFailed, err
			}
			parts = append(parts, assistant.ImagePart(fileID))
			continue
		}

		text, err := extract.Extract(data, format)
		if err != nil {
			if errors.Is(err, extract.ErrNoContent) {
				return nil, MsgNoReadableContent, nil
			}
			return nil, MsgNoReadableContent, err
		}
		parts = append(parts, assistant.TextPart(text))
	}

	return parts, "", nil
}

// recordUsage persists the run's token accounting. Failures are logged, not
// surfaced: usage tracking must never fail a user request.
func (m *Manager) recordUsage(ctx context.Context, userID thread.UserID, threadID thread.ID, run *assistant.RunResult) {
	if run.Usage.TotalTokens == 0 && run.Usage.PromptTokens == 0 {
		m.logger.Warn("run reported no usage data", "thread_id", threadID)
		return
	}

	rec := usage.NewRecord(userID, threadID, run.Model,
		run.Usage.PromptTokens, run.Usage.CompletionTokens, run.Usage.TotalTokens)
	if err := m.recorder.Record(ctx, rec); err != nil {
		m.logger.Warn("usage recording failed", "user_id", userID, "error", err)
	}
}

func (m *Manager) fixedReply(text string) *Outcome {
	return &Outcome{Replies: SplitMessage(text, m.messageLimit)}
}
