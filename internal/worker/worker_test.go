package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aescanero/dago-node-triage/internal/config"
	"github.com/aescanero/dago-node-triage/internal/email"
	"github.com/aescanero/dago-node-triage/internal/inbox"
	"github.com/aescanero/dago-node-triage/internal/session"
	"github.com/aescanero/dago-node-triage/internal/triage"
)

func TestParseMessage(t *testing.T) {
	data, err := json.Marshal(inbox.Message{ID: "m-1", From: "a@example.com", Body: "Hi"})
	require.NoError(t, err)

	msg, err := parseMessage(map[string]interface{}{"data": string(data)})
	require.NoError(t, err)
	assert.Equal(t, "m-1", msg.ID)
	assert.Equal(t, "a@example.com", msg.From)

	_, err = parseMessage(map[string]interface{}{})
	assert.Error(t, err)

	_, err = parseMessage(map[string]interface{}{"data": "{not json"})
	assert.Error(t, err)
}

func TestNewOutcomeEvent(t *testing.T) {
	paused := &triage.Outcome{
		SessionID: "m-1",
		Stage:     email.StageReview,
		Status:    session.StatusPaused,
		Trail:     []email.Stage{email.StageRead, email.StageClassify, email.StageReview},
		Draft:     "Hello",
	}

	ev := newOutcomeEvent("1-0", paused)
	assert.Equal(t, "1-0", ev.MessageID)
	assert.Equal(t, "m-1", ev.SessionID)
	assert.Equal(t, "Hello", ev.Draft)
	assert.False(t, ev.Timestamp.IsZero())

	done := &triage.Outcome{SessionID: "m-2", Stage: email.StageDone, Status: session.StatusCompleted, Draft: "Hello"}
	assert.Empty(t, newOutcomeEvent("2-0", done).Draft)

	errEv := newErrorEvent("3-0", nil, errors.New("boom"))
	assert.Equal(t, "boom", errEv.Error)
	assert.Empty(t, errEv.SessionID)
}

func TestHealthServer(t *testing.T) {
	failing := errors.New("connection refused")

	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		path       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "healthy",
			checks:     map[string]CheckFunc{"session_store": func(context.Context) error { return nil }},
			path:       "/health",
			wantStatus: http.StatusOK,
			wantBody:   "healthy",
		},
		{
			name: "unhealthy",
			checks: map[string]CheckFunc{
				"session_store": func(context.Context) error { return nil },
				"redis":         func(context.Context) error { return failing },
			},
			path:       "/health",
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "unhealthy",
		},
		{
			name:       "ready",
			checks:     map[string]CheckFunc{"redis": func(context.Context) error { return nil }},
			path:       "/ready",
			wantStatus: http.StatusOK,
			wantBody:   "ready",
		},
		{
			name:       "not ready",
			checks:     map[string]CheckFunc{"redis": func(context.Context) error { return failing }},
			path:       "/ready",
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "not ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := NewHealthServer(0, tt.checks, zap.NewNop())

			rec := httptest.NewRecorder()
			hs.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantBody, resp.Status)
		})
	}
}

func TestHealthServer_ReportsEachCheck(t *testing.T) {
	hs := NewHealthServer(0, map[string]CheckFunc{
		"redis":         func(context.Context) error { return errors.New("timeout") },
		"session_store": func(context.Context) error { return nil },
	}, zap.NewNop())

	rec := httptest.NewRecorder()
	hs.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Checks["session_store"])
	assert.Equal(t, "unhealthy: timeout", resp.Checks["redis"])
}

type fakeQueue struct {
	mu       sync.Mutex
	messages []inbox.Message
	err      error
}

func (q *fakeQueue) Enqueue(_ context.Context, msg inbox.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.messages = append(q.messages, msg)
	return nil
}

type sourceFunc func(ctx context.Context) ([]inbox.Message, error)

func (f sourceFunc) Fetch(ctx context.Context) ([]inbox.Message, error) { return f(ctx) }

func TestPoller_SkipsSeenMessages(t *testing.T) {
	batch := []inbox.Message{
		{ID: "a", From: "x@example.com", Body: "one"},
		{ID: "b", From: "y@example.com", Body: "two"},
	}
	source := sourceFunc(func(context.Context) ([]inbox.Message, error) { return batch, nil })
	queue := &fakeQueue{}
	p := NewPoller(source, queue, time.Minute, zap.NewNop())

	n, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, queue.messages, 2)
}

func TestPoller_RetriesFailedEnqueue(t *testing.T) {
	source := sourceFunc(func(context.Context) ([]inbox.Message, error) {
		return []inbox.Message{{ID: "a", From: "x@example.com", Body: "one"}}, nil
	})
	queue := &fakeQueue{err: errors.New("redis down")}
	p := NewPoller(source, queue, time.Minute, zap.NewNop())

	n, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	queue.err = nil
	n, err = p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPoller_SourceError(t *testing.T) {
	source := sourceFunc(func(context.Context) ([]inbox.Message, error) { return nil, errors.New("auth expired") })
	p := NewPoller(source, &fakeQueue{}, time.Minute, zap.NewNop())

	_, err := p.Poll(context.Background())
	assert.Error(t, err)
}

func TestPoller_StartStop(t *testing.T) {
	polled := make(chan struct{}, 1)
	source := sourceFunc(func(context.Context) ([]inbox.Message, error) {
		select {
		case polled <- struct{}{}:
		default:
		}
		return nil, nil
	})
	p := NewPoller(source, &fakeQueue{}, time.Hour, zap.NewNop())

	p.Start()
	select {
	case <-polled:
	case <-time.After(time.Second):
		t.Fatal("poller did not poll on start")
	}
	p.Stop()
}

type processorFunc func(ctx context.Context, msg inbox.Message) (*triage.Outcome, error)

func (f processorFunc) Process(ctx context.Context, msg inbox.Message) (*triage.Outcome, error) {
	return f(ctx, msg)
}

func TestWorker_Redis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())

	suffix := uuid.NewString()
	cfg := &config.Config{
		WorkerID:      "test-worker",
		StreamKey:     "triage.test.inbox." + suffix,
		ConsumerGroup: "triage-test",
		ResultStream:  "triage.test.outcomes." + suffix,
		BlockTime:     100 * time.Millisecond,
	}
	defer client.Del(ctx, cfg.StreamKey, cfg.ResultStream, cfg.ResultStream+".errors")

	processed := make(chan inbox.Message, 1)
	wf := processorFunc(func(_ context.Context, msg inbox.Message) (*triage.Outcome, error) {
		processed <- msg
		return &triage.Outcome{
			SessionID: msg.ID,
			Stage:     email.StageDone,
			Status:    session.StatusCompleted,
		}, nil
	})

	w := NewWorker(cfg, client, wf, zap.NewNop())
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, w.Enqueue(ctx, inbox.Message{ID: "m-1", From: "a@example.com", Body: "Hi"}))

	select {
	case msg := <-processed:
		assert.Equal(t, "m-1", msg.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("message was not processed")
	}

	require.Eventually(t, func() bool {
		n, err := client.XLen(ctx, cfg.ResultStream).Result()
		return err == nil && n == 1
	}, 5*time.Second, 50*time.Millisecond)
}

type streamEntry struct {
	stream string
	data   string
}

// recordingStreams records stream writes and acks instead of talking to Redis
type recordingStreams struct {
	mu    sync.Mutex
	added []streamEntry
	acked []string
}

func (r *recordingStreams) XGroupCreateMkStream(context.Context, string, string, string) *redis.StatusCmd {
	return redis.NewStatusResult("OK", nil)
}

func (r *recordingStreams) XReadGroup(context.Context, *redis.XReadGroupArgs) *redis.XStreamSliceCmd {
	return redis.NewXStreamSliceCmdResult(nil, redis.Nil)
}

func (r *recordingStreams) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	values, _ := a.Values.(map[string]interface{})
	data, _ := values["data"].(string)
	r.added = append(r.added, streamEntry{stream: a.Stream, data: data})
	return redis.NewStringResult("1-0", nil)
}

func (r *recordingStreams) XAck(_ context.Context, _, _ string, ids ...string) *redis.IntCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acked = append(r.acked, ids...)
	return redis.NewIntResult(int64(len(ids)), nil)
}

func newTestWorker(wf processor) (*Worker, *recordingStreams) {
	rs := &recordingStreams{}
	cfg := &config.Config{
		WorkerID:      "test-worker",
		StreamKey:     "triage.inbox",
		ConsumerGroup: "triage-workers",
		ResultStream:  "triage.outcomes",
	}
	return NewWorker(cfg, rs, wf, zap.NewNop()), rs
}

func inboundEntry(t *testing.T, id string, msg inbox.Message) redis.XMessage {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	return redis.XMessage{ID: id, Values: map[string]interface{}{"data": string(data)}}
}

func TestHandleMessage(t *testing.T) {
	cases := []struct {
		name         string
		err          error
		outcome      *triage.Outcome
		expectStream string
		expectError  string
	}{
		{
			name: "outcome published",
			outcome: &triage.Outcome{
				SessionID: "m-1",
				Stage:     email.StageReview,
				Status:    session.StatusPaused,
				Draft:     "Hello",
			},
			expectStream: "triage.outcomes",
		},
		{
			name:         "workflow failure published as error",
			err:          errors.New("draft failed"),
			outcome:      &triage.Outcome{SessionID: "m-1", Stage: email.StageDraft, Status: session.StatusFailed},
			expectStream: "triage.outcomes.errors",
			expectError:  "draft failed",
		},
		{
			name:         "session state error is not a duplicate",
			err:          fmt.Errorf("%w: no handler for stage bogus", triage.ErrSessionState),
			expectStream: "triage.outcomes.errors",
			expectError:  "no handler for stage bogus",
		},
		{
			name: "duplicate skipped",
			err:  fmt.Errorf("%w: %w: m-1", triage.ErrSessionState, session.ErrExists),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got inbox.Message
			w, rs := newTestWorker(processorFunc(func(_ context.Context, msg inbox.Message) (*triage.Outcome, error) {
				got = msg
				return tc.outcome, tc.err
			}))

			w.handleMessage(inboundEntry(t, "1-0", inbox.Message{ID: "m-1", From: "a@example.com", Body: "Hi"}))

			assert.Equal(t, "m-1", got.ID)
			assert.Equal(t, []string{"1-0"}, rs.acked)

			if tc.expectStream == "" {
				assert.Empty(t, rs.added)
				return
			}

			require.Len(t, rs.added, 1)
			assert.Equal(t, tc.expectStream, rs.added[0].stream)

			var ev OutcomeEvent
			require.NoError(t, json.Unmarshal([]byte(rs.added[0].data), &ev))
			assert.Equal(t, "1-0", ev.MessageID)
			assert.Equal(t, tc.expectError, ev.Error)
			if tc.outcome != nil {
				assert.Equal(t, tc.outcome.SessionID, ev.SessionID)
				assert.Equal(t, tc.outcome.Status, ev.Status)
			}
		})
	}
}

func TestHandleMessage_MalformedEntry(t *testing.T) {
	called := false
	w, rs := newTestWorker(processorFunc(func(context.Context, inbox.Message) (*triage.Outcome, error) {
		called = true
		return nil, nil
	}))

	w.handleMessage(redis.XMessage{ID: "2-0", Values: map[string]interface{}{"data": "{"}})

	assert.False(t, called)
	assert.Equal(t, []string{"2-0"}, rs.acked)
	require.Len(t, rs.added, 1)
	assert.Equal(t, "triage.outcomes.errors", rs.added[0].stream)
}

func TestWorker_Enqueue(t *testing.T) {
	w, rs := newTestWorker(processorFunc(func(context.Context, inbox.Message) (*triage.Outcome, error) {
		return nil, nil
	}))

	require.NoError(t, w.Enqueue(context.Background(), inbox.Message{ID: "m-9", From: "a@example.com", Body: "Hi"}))

	require.Len(t, rs.added, 1)
	assert.Equal(t, "triage.inbox", rs.added[0].stream)
	msg, err := parseMessage(map[string]interface{}{"data": rs.added[0].data})
	require.NoError(t, err)
	assert.Equal(t, "m-9", msg.ID)
}
