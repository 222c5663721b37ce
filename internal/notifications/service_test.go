package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"voicecast/internal/notifications"
	"voicecast/internal/testsupport"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCapturingServer(t *testing.T) (*httptest.Server, func() []captured) {
	t.Helper()
	var mu sync.Mutex
	var requests []captured

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		mu.Unlock()
	}))
	t.Cleanup(server.Close)

	return server, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), requests...)
	}
}

func TestNoopWhenTopicUnset(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	service := notifications.NewService(cfg)

	ctx := context.Background()
	if err := service.NotifyJobSucceeded(ctx, "Pilot", 1); err != nil {
		t.Fatalf("noop success: %v", err)
	}
	if err := service.NotifyJobFailed(ctx, "Pilot", 1, "boom"); err != nil {
		t.Fatalf("noop failure: %v", err)
	}
	if err := service.TestNotification(ctx); err != nil {
		t.Fatalf("noop test: %v", err)
	}
}

func TestNotifyJobSucceededPublishes(t *testing.T) {
	server, recorded := newCapturingServer(t)

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL + "/voicecast"
	service := notifications.NewService(cfg)

	if err := service.NotifyJobSucceeded(context.Background(), "Launch Day", 42); err != nil {
		t.Fatalf("notify: %v", err)
	}

	requests := recorded()
	if len(requests) != 1 {
		t.Fatalf("expected one publish, got %d", len(requests))
	}
	got := requests[0]
	if got.title != "Voicecast - Episode Ready" {
		t.Fatalf("title = %q", got.title)
	}
	if got.tags != "voicecast,job,succeeded" {
		t.Fatalf("tags = %q", got.tags)
	}
	if got.priority != "high" {
		t.Fatalf("priority = %q", got.priority)
	}
	if !strings.Contains(got.body, `"Launch Day"`) || !strings.Contains(got.body, "job 42") {
		t.Fatalf("body = %q", got.body)
	}
}

func TestNotifyJobFailedIncludesReason(t *testing.T) {
	server, recorded := newCapturingServer(t)

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL + "/voicecast"
	service := notifications.NewService(cfg)

	if err := service.NotifyJobFailed(context.Background(), "Pilot", 7, "provider error"); err != nil {
		t.Fatalf("notify: %v", err)
	}

	requests := recorded()
	if len(requests) != 1 {
		t.Fatalf("expected one publish, got %d", len(requests))
	}
	if !strings.Contains(requests[0].body, "provider error") {
		t.Fatalf("body = %q", requests[0].body)
	}
	if requests[0].title != "Voicecast - Generation Failed" {
		t.Fatalf("title = %q", requests[0].title)
	}
}

func TestNotifySurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic blocked", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL + "/voicecast"
	service := notifications.NewService(cfg)

	err := service.TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "topic blocked") {
		t.Fatalf("error = %v", err)
	}
}
