package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calibot/assistant-relay/pkg/access"
	"github.com/calibot/assistant-relay/pkg/assistant"
	"github.com/calibot/assistant-relay/pkg/thread"
	"github.com/calibot/assistant-relay/pkg/usage"
	"github.com/calibot/assistant-relay/pkg/userdir"
)

const (
	mgrTestUser   = thread.UserID("user-1")
	mgrTestThread = thread.ID("thread-1")
)

// fakeBackend implements assistant.Backend with programmable failures.
type fakeBackend struct {
	mu          sync.Mutex
	created     int
	addErrs     map[thread.ID]error
	lastContent []assistant.Part
	addCalls    []thread.ID
	uploads     []string
	uploadErr   error
	runResult   *assistant.RunResult
	runErr      error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		addErrs: make(map[thread.ID]error),
		runResult: &assistant.RunResult{
			Reply: "hi there",
			Model: "gpt-4o",
			Usage: assistant.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		},
	}
}

func (f *fakeBackend) CreateThread(_ context.Context) (thread.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	return thread.ID(fmt.Sprintf("created-%d", f.created)), nil
}

func (f *fakeBackend) UploadImage(_ context.Context, filename string, _ []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploads = append(f.uploads, filename)
	return "file-" + filename, nil
}

func (f *fakeBackend) AddMessage(_ context.Context, threadID thread.ID, content []assistant.Part) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls = append(f.addCalls, threadID)
	if err := f.addErrs[threadID]; err != nil {
		return err
	}
	f.lastContent = content
	return nil
}

func (f *fakeBackend) Run(_ context.Context, _ thread.ID) (*assistant.RunResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.runErr != nil {
		return nil, f.runErr
	}
	return f.runResult, nil
}

// fakeRecorder captures usage records.
type fakeRecorder struct {
	mu      sync.Mutex
	records []usage.Record
	err     error
}

func (f *fakeRecorder) Record(_ context.Context, rec usage.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func (*fakeRecorder) Query(_ context.Context, _ usage.Filter) ([]usage.Record, error) {
	return nil, nil
}

func (*fakeRecorder) Close() error { return nil }

// fakeFetcher serves canned bytes per URL.
type fakeFetcher struct {
	files map[string][]byte
	err   error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.files[url]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", url)
	}
	return data, nil
}

type managerFixture struct {
	manager  *Manager
	store    *thread.MemoryStore
	backend  *fakeBackend
	recorder *fakeRecorder
	fetcher  *fakeFetcher
}

func newFixture() *managerFixture {
	store := thread.NewMemoryStore()
	backend := newFakeBackend()
	recorder := &fakeRecorder{}
	fetcher := &fakeFetcher{files: make(map[string][]byte)}

	manager := NewManager(ManagerConfig{
		Store:     store,
		Backend:   backend,
		Recorder:  recorder,
		Directory: userdir.NewMemoryDirectory(),
		Gate:      access.NewGate([]string{"Beta"}),
		Fetcher:   fetcher,
	})
	return &managerFixture{
		manager:  manager,
		store:    store,
		backend:  backend,
		recorder: recorder,
		fetcher:  fetcher,
	}
}

func adminMsg(text string) Inbound {
	return Inbound{
		UserID:   mgrTestUser,
		Username: "kai",
		Roles:    []string{"Admin"},
		Text:     text,
	}
}

func TestHandleInbound_HappyPath(t *testing.T) {
	fix := newFixture()
	ctx := context.Background()

	out, err := fix.manager.HandleInbound(ctx, adminMsg("hello"))
	require.NoError(t, err)
	require.NotNil(t, out)

	assert.False(t, out.Dropped)
	assert.Equal(t, []string{"hi there"}, out.Replies)
	assert.Equal(t, thread.ID("created-1"), out.ThreadID)

	// Session state is consistent and the guard is released.
	stored, err := fix.store.Get(ctx, mgrTestUser)
	require.NoError(t, err)
	assert.Equal(t, out.ThreadID, stored)
	cached, ok := fix.manager.Cache().Get(mgrTestUser)
	require.True(t, ok)
	assert.Equal(t, stored, cached)
	assert.Equal(t, 0, fix.manager.Guard().Active())

	// Usage was recorded.
	require.Len(t, fix.recorder.records, 1)
	rec := fix.recorder.records[0]
	assert.Equal(t, mgrTestUser, rec.UserID)
	assert.Equal(t, out.ThreadID, rec.ThreadID)
	assert.Equal(t, 15, rec.TotalTokens)
	assert.Equal(t, "gpt-4o", rec.Model)
}

func TestHandleInbound_SecondMessageReusesThread(t *testing.T) {
	fix := newFixture()
	ctx := context.Background()

	first, err := fix.manager.HandleInbound(ctx, adminMsg("one"))
	require.NoError(t, err)
	second, err := fix.manager.HandleInbound(ctx, adminMsg("two"))
	require.NoError(t, err)

	assert.Equal(t, first.ThreadID, second.ThreadID)
	assert.Equal(t, 1, fix.backend.created)
}

func TestHandleInbound_AccessDenied(t *testing.T) {
	fix := newFixture()

	out, err := fix.manager.HandleInbound(context.Background(), Inbound{
		UserID: mgrTestUser,
		Roles:  []string{"Guest"},
		Text:   "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{MsgAccessDenied}, out.Replies)
	assert.Empty(t, fix.backend.addCalls, "denied users must not reach the backend")
}

func TestHandleInbound_DynamicBotRoleAllows(t *testing.T) {
	fix := newFixture()
	gate := access.NewGate(nil)
	gate.SetBotRoles([]string{"Helper"})

	manager := NewManager(ManagerConfig{
		Store:     fix.store,
		Backend:   fix.backend,
		Recorder:  fix.recorder,
		Directory: userdir.NewMemoryDirectory(),
		Gate:      gate,
		Fetcher:   fix.fetcher,
	})

	out, err := manager.HandleInbound(context.Background(), Inbound{
		UserID: mgrTestUser,
		Roles:  []string{"Helper"},
		Text:   "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"hi there"}, out.Replies)
}

func TestHandleInbound_EmptyMessage(t *testing.T) {
	fix := newFixture()

	out, err := fix.manager.HandleInbound(context.Background(), adminMsg(""))
	require.NoError(t, err)
	assert.Equal(t, []string{MsgEmptyMessage}, out.Replies)
	assert.Empty(t, fix.backend.addCalls)
}

func TestHandleInbound_UnsupportedAttachment(t *testing.T) {
	fix := newFixture()

	msg := adminMsg("see attached")
	msg.Attachments = []Attachment{{URL: "https://cdn/x", Filename: "malware.exe"}}

	out, err := fix.manager.HandleInbound(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, []string{MsgUnsupportedType}, out.Replies)
	assert.Empty(t, fix.backend.addCalls, "nothing may be sent after a rejected file")
}

func TestHandleInbound_DocumentAttachment(t *testing.T) {
	fix := newFixture()
	fix.fetcher.files["https://cdn/notes"] = []byte("meeting notes")

	msg := adminMsg("summarize this")
	msg.Attachments = []Attachment{{URL: "https://cdn/notes", Filename: "notes.txt"}}

	out, err := fix.manager.HandleInbound(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, []string{"hi there"}, out.Replies)

	require.Len(t, fix.backend.lastContent, 2)
	assert.Equal(t, "summarize this", fix.backend.lastContent[0].Text)
	assert.Equal(t, "meeting notes", fix.backend.lastContent[1].Text)
}

func TestHandleInbound_ImageAttachment(t *testing.T) {
	fix := newFixture()
	fix.fetcher.files["https://cdn/pic"] = []byte{0x89, 0x50, 0x4e, 0x47}

	msg := adminMsg("what is this")
	msg.Attachments = []Attachment{{URL: "https://cdn/pic", Filename: "pic.png"}}

	_, err := fix.manager.HandleInbound(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, []string{"pic.png"}, fix.backend.uploads)
	require.Len(t, fix.backend.lastContent, 2)
	require.NotNil(t, fix.backend.lastContent[1].ImageFile)
	assert.Equal(t, "file-pic.png", fix.backend.lastContent[1].ImageFile.FileID)
}

func TestHandleInbound_DownloadFailure(t *testing.T) {
	fix := newFixture()
	fix.fetcher.err = errors.New("cdn unreachable")

	msg := adminMsg("see attached")
	msg.Attachments = []Attachment{{URL: "https://cdn/x", Filename: "doc.pdf"}}

	out, err := fix.manager.HandleInbound(context.Background(), msg)
	require.Error(t, err)
	assert.Equal(t, []string{MsgDownloadFailed}, out.Replies)
}

func TestHandleInbound_NoReadableContent(t *testing.T) {
	fix := newFixture()
	fix.fetcher.files["https://cdn/blank"] = []byte("   \n  ")

	msg := adminMsg("")
	msg.Attachments = []Attachment{{URL: "https://cdn/blank", Filename: "blank.txt"}}

	out, err := fix.manager.HandleInbound(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, []string{MsgNoReadableContent}, out.Replies)
}

func TestHandleInbound_DroppedWhileInFlight(t *testing.T) {
	fix := newFixture()
	ctx := context.Background()

	// Pre-existing session, then simulate an in-flight request.
	require.NoError(t, fix.store.Upsert(ctx, mgrTestUser, mgrTestThread))
	require.True(t, fix.manager.Guard().TryAcquire(mgrTestThread))
	defer fix.manager.Guard().Release(mgrTestThread)

	out, err := fix.manager.HandleInbound(ctx, adminMsg("while busy"))
	require.NoError(t, err)

	assert.True(t, out.Dropped)
	assert.Empty(t, out.Replies, "dropped messages get no user-facing reply")
	assert.Empty(t, fix.backend.addCalls, "dropped messages must not reach the backend")
}

func TestHandleInbound_StaleThreadRecovered(t *testing.T) {
	fix := newFixture()
	ctx := context.Background()

	require.NoError(t, fix.store.Upsert(ctx, mgrTestUser, mgrTestThread))
	fix.backend.addErrs[mgrTestThread] = thread.ErrThreadNotFound

	out, err := fix.manager.HandleInbound(ctx, adminMsg("hello again"))
	require.NoError(t, err)

	assert.Equal(t, []string{"hi there"}, out.Replies)
	assert.NotEqual(t, mgrTestThread, out.ThreadID, "reply must come from the replacement thread")

	stored, err := fix.store.Get(ctx, mgrTestUser)
	require.NoError(t, err)
	assert.Equal(t, out.ThreadID, stored)
	assert.Equal(t, 0, fix.manager.Guard().Active())
}

func TestHandleInbound_GenericSendFailure(t *testing.T) {
	fix := newFixture()
	ctx := context.Background()

	require.NoError(t, fix.store.Upsert(ctx, mgrTestUser, mgrTestThread))
	fix.backend.addErrs[mgrTestThread] = errors.New("rate limited")

	out, err := fix.manager.HandleInbound(ctx, adminMsg("hello"))
	require.Error(t, err)

	assert.Equal(t, []string{MsgBackendUnavailable}, out.Replies)
	assert.Equal(t, 1, len(fix.backend.addCalls), "generic failures get no retry")
	assert.Equal(t, 0, fix.backend.created)
	assert.Equal(t, 0, fix.manager.Guard().Active(), "guard must release on failure paths")
}

func TestHandleInbound_RunFailure(t *testing.T) {
	fix := newFixture()
	fix.backend.runErr = errors.New("run exploded")

	out, err := fix.manager.HandleInbound(context.Background(), adminMsg("hello"))
	require.Error(t, err)
	assert.Equal(t, []string{MsgBackendUnavailable}, out.Replies)
	assert.Equal(t, 0, fix.manager.Guard().Active())
	assert.Empty(t, fix.recorder.records, "failed runs record no usage")
}

func TestHandleInbound_RecorderFailureDoesNotFailRequest(t *testing.T) {
	fix := newFixture()
	fix.recorder.err = errors.New("usage db down")

	out, err := fix.manager.HandleInbound(context.Background(), adminMsg("hello"))
	require.NoError(t, err)
	assert.Equal(t, []string{"hi there"}, out.Replies)
}

func TestHandleInbound_LongReplyChunked(t *testing.T) {
	fix := newFixture()
	fix.backend.runResult.Reply = strings.Repeat("x", 4500)

	out, err := fix.manager.HandleInbound(context.Background(), adminMsg("hello"))
	require.NoError(t, err)
	require.Len(t, out.Replies, 3)
	assert.Len(t, out.Replies[0], 2000)
}

func TestHandleInbound_EmptyRunReply(t *testing.T) {
	fix := newFixture()
	fix.backend.runResult.Reply = ""

	out, err := fix.manager.HandleInbound(context.Background(), adminMsg("hello"))
	require.NoError(t, err)
	assert.Equal(t, []string{MsgNoReply}, out.Replies)
}
