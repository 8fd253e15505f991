package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"voiceover/internal/config"
	"voiceover/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventBatchStarted, notifications.Payload{"count": 3}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "batch started",
			event:         notifications.EventBatchStarted,
			payload:       notifications.Payload{"count": 4},
			expectTitle:   "Voiceover - Batch Started",
			expectMessage: "Removing commentary from 4 clips",
			expectTags:    "voiceover,batch,started",
		},
		{
			name:          "batch completed",
			event:         notifications.EventBatchCompleted,
			payload:       notifications.Payload{"processed": 3, "failed": 0, "duration": 90 * time.Second},
			expectTitle:   "Voiceover - Batch Complete",
			expectMessage: "Batch complete: 3 clips processed in 1m30s",
			expectTags:    "voiceover,batch,completed",
		},
		{
			name:          "batch completed with errors",
			event:         notifications.EventBatchCompleted,
			payload:       notifications.Payload{"processed": 2, "failed": 1, "duration": 1500 * time.Millisecond},
			expectTitle:   "Voiceover - Batch Complete (with errors)",
			expectMessage: "Batch complete: 2 succeeded, 1 failed in 2s",
			expectTags:    "voiceover,batch,completed",
		},
		{
			name:  "clip failed",
			event: notifications.EventClipFailed,
			payload: notifications.Payload{
				"clipID": "intro",
				"stage":  "audio_extracted",
				"error":  errors.New("ffmpeg exited 1"),
			},
			expectTitle:    "Voiceover - Clip Failed",
			expectMessage:  "Clip intro failed during audio_extracted: ffmpeg exited 1",
			expectTags:     "voiceover,error,alert",
			expectPriority: "high",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "Voiceover - Test",
			expectMessage:  "Notification system test",
			expectTags:     "voiceover,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceIgnoresMutedEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for muted event: %s", r.Header.Get("Title"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.BatchStarted = false
	cfg.Notifications.ClipFailed = false

	svc := notifications.NewService(&cfg)
	for _, event := range []notifications.Event{notifications.EventBatchStarted, notifications.EventClipFailed, "unknown"} {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"count": 1}); err != nil {
			t.Fatalf("expected no error for muted event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic closed", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
