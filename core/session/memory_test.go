package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreMergePreservesUntouchedFields(t *testing.T) {
	store := NewMemoryStore(30 * time.Minute)
	ctx := context.Background()

	_, err := store.Merge(ctx, "tg:1", Partial{
		Services:    []string{"Haircut"},
		SetServices: true,
	})
	require.NoError(t, err)

	date := time.Date(2026, 9, 10, 0, 0, 0, 0, time.Local)
	sess, err := store.Merge(ctx, "tg:1", Partial{Date: &date, SetDate: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"Haircut"}, sess.Services)
	require.NotNil(t, sess.Date)
	assert.True(t, sess.Date.Equal(date))
}

func TestMemoryStoreMergeDistinguishesUnsetFromCleared(t *testing.T) {
	store := NewMemoryStore(30 * time.Minute)
	ctx := context.Background()

	_, err := store.Merge(ctx, "tg:1", Partial{Time: Ptr("11:30")})
	require.NoError(t, err)

	// No Time field at all: the slot stays.
	sess, err := store.Merge(ctx, "tg:1", Partial{WeekOffset: Ptr(1)})
	require.NoError(t, err)
	assert.Equal(t, "11:30", sess.Time)

	// Pointer to empty string: the slot is explicitly released.
	sess, err = store.Merge(ctx, "tg:1", Partial{Time: Ptr("")})
	require.NoError(t, err)
	assert.Equal(t, "", sess.Time)
}

func TestMemoryStoreStaleContextResetsVolatileState(t *testing.T) {
	store := NewMemoryStore(30 * time.Minute)
	ctx := context.Background()

	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.Local)
	store.SetClock(func() time.Time { return base })

	_, err := store.Merge(ctx, "tg:1", Partial{
		Services:    []string{"Haircut"},
		SetServices: true,
		Time:        Ptr("10:00"),
		LastService: Ptr("Haircut"),
	})
	require.NoError(t, err)

	store.SetClock(func() time.Time { return base.Add(31 * time.Minute) })

	sess, live, err := store.Get(ctx, "tg:1")
	require.NoError(t, err)
	assert.False(t, live)
	assert.Empty(t, sess.Services)
	assert.Equal(t, "", sess.Time)
	assert.Equal(t, "Haircut", sess.LastServiceBooked, "durable fields survive staleness")
}

func TestMemoryStoreGetUnknownIdentity(t *testing.T) {
	store := NewMemoryStore(time.Minute)

	sess, live, err := store.Get(context.Background(), "tg:404")
	require.NoError(t, err)
	assert.False(t, live)
	require.NotNil(t, sess)
	assert.False(t, sess.InFlow())
}

func TestMemoryStoreClearKeepsDurableFields(t *testing.T) {
	store := NewMemoryStore(30 * time.Minute)
	ctx := context.Background()

	id := int64(7)
	_, err := store.Merge(ctx, "tg:1", Partial{
		Services:      []string{"Haircut", "Beard Trim"},
		SetServices:   true,
		StylistID:     &id,
		SetStylist:    true,
		Time:          Ptr("14:00"),
		CustomerName:  Ptr("Dana"),
		LastService:   Ptr("Haircut"),
		LastStylist:   Ptr("Maria"),
		MessageID:     Ptr("123"),
		RescheduleID:  &id,
		SetReschedule: true,
	})
	require.NoError(t, err)

	require.NoError(t, store.Clear(ctx, "tg:1"))

	sess, live, err := store.Get(ctx, "tg:1")
	require.NoError(t, err)
	assert.True(t, live, "cleared record stays live")
	assert.False(t, sess.InFlow())
	assert.Nil(t, sess.StylistID)
	assert.Nil(t, sess.RescheduleID)
	assert.Equal(t, "", sess.CurrentStepMessageID)
	assert.Equal(t, "Dana", sess.CustomerName)
	assert.Equal(t, "Haircut", sess.LastServiceBooked)
	assert.Equal(t, "Maria", sess.LastStylistBooked)
}

func TestMemoryStoreClearCanKeepMessageID(t *testing.T) {
	store := NewMemoryStore(30 * time.Minute)
	ctx := context.Background()

	_, err := store.Merge(ctx, "tg:1", Partial{
		Services:    []string{"Haircut"},
		SetServices: true,
		MessageID:   Ptr("456"),
	})
	require.NoError(t, err)

	require.NoError(t, store.Clear(ctx, "tg:1", FieldMessageID))

	sess, _, err := store.Get(ctx, "tg:1")
	require.NoError(t, err)
	assert.Empty(t, sess.Services)
	assert.Equal(t, "456", sess.CurrentStepMessageID)
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	store := NewMemoryStore(30 * time.Minute)
	ctx := context.Background()

	_, err := store.Merge(ctx, "tg:1", Partial{
		Services:    []string{"Haircut"},
		SetServices: true,
	})
	require.NoError(t, err)

	sess, _, err := store.Get(ctx, "tg:1")
	require.NoError(t, err)
	sess.Services[0] = "mutated"

	again, _, err := store.Get(ctx, "tg:1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Haircut"}, again.Services)
}

func TestOptionRegistryReplaceAndResolve(t *testing.T) {
	store := NewMemoryStore(30 * time.Minute)
	ctx := context.Background()

	opts := []CommandOption{
		{ID: "1", Label: "Book an appointment", ActionCode: "cmd_book"},
		{ID: "2", Label: "My appointments", ActionCode: "cmd_appointments"},
	}
	require.NoError(t, store.ReplaceOptions(ctx, "wa:15550100", opts))

	opt, ok, err := store.Resolve(ctx, "wa:15550100", " 2 ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cmd_appointments", opt.ActionCode)

	_, ok, err = store.Resolve(ctx, "wa:15550100", "9")
	require.NoError(t, err)
	assert.False(t, ok)

	// A new empty menu clears the registry for the identity.
	require.NoError(t, store.ReplaceOptions(ctx, "wa:15550100", nil))
	_, ok, err = store.Resolve(ctx, "wa:15550100", "1")
	require.NoError(t, err)
	assert.False(t, ok)
}
