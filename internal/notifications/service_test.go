package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"summify/internal/config"
	"summify/internal/notifications"
)

type delivery struct {
	Title    string
	Tags     string
	Priority string
	Body     string
}

// ntfyRecorder stands in for an ntfy topic and keeps every POST it receives.
type ntfyRecorder struct {
	mu    sync.Mutex
	got   []delivery
	cfg   config.Config
	reply int
}

func newRecorder(t *testing.T, mutate func(*config.Notifications)) *ntfyRecorder {
	t.Helper()
	rec := &ntfyRecorder{reply: http.StatusOK}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.got = append(rec.got, delivery{
			Title:    r.Header.Get("Title"),
			Tags:     r.Header.Get("Tags"),
			Priority: r.Header.Get("Priority"),
			Body:     string(body),
		})
		status := rec.reply
		rec.mu.Unlock()
		if status != http.StatusOK {
			http.Error(w, "topic closed", status)
		}
	}))
	t.Cleanup(srv.Close)

	rec.cfg = config.Default()
	rec.cfg.Notifications.NtfyTopic = srv.URL
	rec.cfg.Notifications.RequestTimeout = 5
	if mutate != nil {
		mutate(&rec.cfg.Notifications)
	}
	return rec
}

func (r *ntfyRecorder) deliveries() []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]delivery(nil), r.got...)
}

func TestPublishWithoutTopicIsNoop(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = "  "
	err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventJobCompleted, notifications.Payload{"file": "a.mp4"})
	assert.NoError(t, err)
	assert.NoError(t, notifications.NewService(nil).Publish(context.Background(), notifications.EventTest, nil))
}

func TestPublishCompleted(t *testing.T) {
	rec := newRecorder(t, nil)
	err := notifications.NewService(&rec.cfg).Publish(context.Background(), notifications.EventJobCompleted, notifications.Payload{
		"file":     "lecture.mp4",
		"steps":    "1234",
		"duration": 90 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, []delivery{{
		Title: "Summify - Complete",
		Tags:  "summify,job,completed",
		Body:  "✅ 处理完成: lecture.mp4 (steps 1234) in 1m30s",
	}}, rec.deliveries())
}

func TestPublishFailedCarriesCodeAndError(t *testing.T) {
	rec := newRecorder(t, nil)
	err := notifications.NewService(&rec.cfg).Publish(context.Background(), notifications.EventJobFailed, notifications.Payload{
		"file":  "lecture.mp4",
		"code":  "E210",
		"error": errors.New("whisper exited"),
	})
	require.NoError(t, err)
	got := rec.deliveries()
	require.Len(t, got, 1)
	assert.Equal(t, "Summify - Failed", got[0].Title)
	assert.Equal(t, "high", got[0].Priority)
	assert.Equal(t, "❌ 处理失败: lecture.mp4 [E210]\nwhisper exited", got[0].Body)
}

func TestQueueDrainedNeedsTwoJobs(t *testing.T) {
	rec := newRecorder(t, nil)
	svc := notifications.NewService(&rec.cfg)
	ctx := context.Background()

	require.NoError(t, svc.Publish(ctx, notifications.EventQueueDrained, notifications.Payload{"processed": 1, "failed": 0}))
	require.NoError(t, svc.Publish(ctx, notifications.EventQueueDrained, notifications.Payload{"processed": 3, "failed": 1}))

	got := rec.deliveries()
	require.Len(t, got, 1)
	assert.Equal(t, "Queue drained: 3 succeeded, 1 failed", got[0].Body)
	assert.Equal(t, "summify,queue,completed", got[0].Tags)
}

func TestMutedEventsSendNothing(t *testing.T) {
	rec := newRecorder(t, func(n *config.Notifications) {
		n.OnComplete = false
		n.OnFailure = false
	})
	svc := notifications.NewService(&rec.cfg)
	for _, event := range []notifications.Event{
		notifications.EventJobCompleted,
		notifications.EventJobFailed,
		notifications.EventQueueDrained,
		notifications.Event("unknown"),
	} {
		assert.NoError(t, svc.Publish(context.Background(), event, notifications.Payload{"file": "x", "processed": 5}))
	}
	assert.Empty(t, rec.deliveries())

	require.NoError(t, svc.Publish(context.Background(), notifications.EventTest, nil))
	assert.Len(t, rec.deliveries(), 1, "test notifications ignore the mute switches")
}

func TestPublishReportsHTTPStatus(t *testing.T) {
	rec := newRecorder(t, nil)
	rec.reply = http.StatusForbidden
	err := notifications.NewService(&rec.cfg).Publish(context.Background(), notifications.EventTest, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "topic closed")
}
