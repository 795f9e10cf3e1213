package service

import (
	"context"
	"errors"
	"sync"

	"github.com/spec-kit/dinewithus/internal/domain"
)

type fakeIdentity struct {
	mu    sync.Mutex
	err   error
	calls []map[string]any
	order *[]string
}

func (f *fakeIdentity) UpdateUserMetadata(_ context.Context, _ string, data map[string]any) (*domain.IdentityUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, data)
	if f.order != nil {
		*f.order = append(*f.order, "identity")
	}
	if f.err != nil {
		return nil, f.err
	}
	return &domain.IdentityUser{ID: "u-1", Email: "ana@example.com", Metadata: data}, nil
}

type fakeNotifier struct {
	mu          sync.Mutex
	configured  bool
	roleErr     error
	hostErr     error
	block       bool
	roleCalls   []string
	hostCalls   int
	deadlineHit int
}

func (f *fakeNotifier) Configured() bool { return f.configured }

func (f *fakeNotifier) wait(ctx context.Context) error {
	if !f.block {
		return nil
	}
	<-ctx.Done()
	f.mu.Lock()
	f.deadlineHit++
	f.mu.Unlock()
	return ctx.Err()
}

func (f *fakeNotifier) UpdateRole(ctx context.Context, _ string, role string) error {
	f.mu.Lock()
	f.roleCalls = append(f.roleCalls, role)
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return err
	}
	return f.roleErr
}

func (f *fakeNotifier) InitHostProfile(ctx context.Context, _ string) error {
	f.mu.Lock()
	f.hostCalls++
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return err
	}
	return f.hostErr
}

type fakeSyncStatus struct {
	mu      sync.Mutex
	pending map[string]string
	err     error
}

func newFakeSyncStatus() *fakeSyncStatus {
	return &fakeSyncStatus{pending: map[string]string{}}
}

func (f *fakeSyncStatus) MarkPending(_ context.Context, email, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[email] = role
	return f.err
}

func (f *fakeSyncStatus) Clear(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pending, email)
	return f.err
}

func (f *fakeSyncStatus) Pending(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.pending[email]
	return ok, nil
}

var errNetwork = errors.New("dial tcp: connection refused")
