package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcher_InvokesAllHandlersAndJoinsErrors(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls []string
	d.Subscribe(EventRoleChanged, func(context.Context, Event) error {
		calls = append(calls, "first")
		return errors.New("boom")
	})
	d.Subscribe(EventRoleChanged, func(context.Context, Event) error {
		calls = append(calls, "second")
		return nil
	})
	d.Subscribe(EventPrincipalCreated, func(context.Context, Event) error {
		calls = append(calls, "other")
		return nil
	})

	err := d.Publish(context.Background(), New(EventRoleChanged, "ana@example.com", nil))

	assert.EqualError(t, err, "boom")
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestNew_StampsEvent(t *testing.T) {
	e := New(EventRoleChanged, "ana@example.com", RoleChangedPayload{NewRole: "host"})
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, "ana@example.com", e.Subject)
}
