package main

import (
	"context"
	"errors"
	"testing"

	"github.com/asterhall/alarmbridge/internal/infrastructure/logging"
)

type stubRefresher struct {
	calls int
	err   error
}

func (s *stubRefresher) Refresh(context.Context) error {
	s.calls++
	return s.err
}

type stubReconnecter struct {
	calls int
}

func (s *stubReconnecter) RequestReconnect() { s.calls++ }

func newTestCommandHandler() (*commandHandler, *stubRefresher, *stubReconnecter, *int) {
	registry := &stubRefresher{}
	reconnect := &stubReconnecter{}
	templateCalls := 0
	handler := &commandHandler{
		registry:  registry,
		templates: func(context.Context) error { templateCalls++; return nil },
		panel:     reconnect,
		log:       logging.Default(),
	}
	return handler, registry, reconnect, &templateCalls
}

func TestCommandRefresh(t *testing.T) {
	handler, registry, reconnect, templateCalls := newTestCommandHandler()

	if err := handler.handle("alarmbridge/command/refresh", nil); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if registry.calls != 1 {
		t.Errorf("registry refreshed %d times, want 1", registry.calls)
	}
	if *templateCalls != 1 {
		t.Errorf("templates refreshed %d times, want 1", *templateCalls)
	}
	if reconnect.calls != 0 {
		t.Error("refresh command triggered a reconnect")
	}
}

func TestCommandRefreshSurvivesRegistryError(t *testing.T) {
	handler, registry, _, templateCalls := newTestCommandHandler()
	registry.err = errors.New("bad notifier row")

	// A broken notifier definition is logged and skipped; templates
	// still reload.
	if err := handler.handle("alarmbridge/command/refresh", nil); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if *templateCalls != 1 {
		t.Errorf("templates refreshed %d times, want 1", *templateCalls)
	}
}

func TestCommandReconnect(t *testing.T) {
	handler, registry, reconnect, _ := newTestCommandHandler()

	if err := handler.handle("alarmbridge/command/reconnect", nil); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if reconnect.calls != 1 {
		t.Errorf("reconnect requested %d times, want 1", reconnect.calls)
	}
	if registry.calls != 0 {
		t.Error("reconnect command refreshed the registry")
	}
}

func TestCommandUnknownIgnored(t *testing.T) {
	handler, registry, reconnect, templateCalls := newTestCommandHandler()

	if err := handler.handle("alarmbridge/command/selfdestruct", nil); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if registry.calls != 0 || reconnect.calls != 0 || *templateCalls != 0 {
		t.Error("unknown command had side effects")
	}
}
