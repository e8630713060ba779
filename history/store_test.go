package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mhpenta/imagestudio"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactories builds one fresh instance of every backend.
func storeFactories(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"sqlite": func() Store {
			s, err := OpenSQL("sqlite", filepath.Join(t.TempDir(), "history.db"))
			require.NoError(t, err)
			return s
		},
		"redis": func() Store {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			return NewRedisStoreFromClient(client, RedisOptions{})
		},
	}
}

func newItem(userID, id string, ts time.Time) *imagestudio.HistoryItem {
	return &imagestudio.HistoryItem{
		ID:          id,
		UserID:      userID,
		Timestamp:   ts,
		Prompt:      "prompt " + id,
		ResultImage: "https://cdn.example.com/" + id + ".png",
		Type:        imagestudio.HistoryGeneration,
	}
}

func TestStores(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory()
			t.Cleanup(func() { _ = store.Close() })

			t.Run("list newest first", func(t *testing.T) {
				require.NoError(t, store.Save(ctx, newItem("alice", "a1", base)))
				require.NoError(t, store.Save(ctx, newItem("alice", "a3", base.Add(2*time.Minute))))
				require.NoError(t, store.Save(ctx, newItem("alice", "a2", base.Add(time.Minute))))

				edit := newItem("bob", "b1", base)
				edit.Type = imagestudio.HistoryEdit
				edit.OriginalImage = imagestudio.CanonicalImagePrefix + "AAAA"
				edit.Degraded = true
				require.NoError(t, store.Save(ctx, edit))

				items, err := store.List(ctx, "alice")
				require.NoError(t, err)
				require.Len(t, items, 3)
				assert.Equal(t, "a3", items[0].ID)
				assert.Equal(t, "a2", items[1].ID)
				assert.Equal(t, "a1", items[2].ID)
				assert.True(t, items[0].Timestamp.Equal(base.Add(2*time.Minute)))

				bobs, err := store.List(ctx, "bob")
				require.NoError(t, err)
				require.Len(t, bobs, 1)
				assert.Equal(t, imagestudio.HistoryEdit, bobs[0].Type)
				assert.Equal(t, edit.OriginalImage, bobs[0].OriginalImage)
				assert.True(t, bobs[0].Degraded)
			})

			t.Run("taken id is not overwritten", func(t *testing.T) {
				err := store.Save(ctx, newItem("mallory", "a1", base.Add(time.Hour)))
				assert.ErrorIs(t, err, imagestudio.ErrHistoryExists)

				err = store.Save(ctx, newItem("alice", "a1", base.Add(time.Hour)))
				assert.ErrorIs(t, err, imagestudio.ErrHistoryExists)

				mallory, err := store.List(ctx, "mallory")
				require.NoError(t, err)
				assert.Empty(t, mallory)

				items, err := store.List(ctx, "alice")
				require.NoError(t, err)
				require.Len(t, items, 3)
				assert.Equal(t, "a1", items[2].ID)
				assert.Equal(t, "prompt a1", items[2].Prompt)
				assert.True(t, items[2].Timestamp.Equal(base))
			})

			t.Run("delete one is scoped to user", func(t *testing.T) {
				err := store.DeleteOne(ctx, "bob", "a1")
				assert.ErrorIs(t, err, imagestudio.ErrHistoryNotFound)

				require.NoError(t, store.DeleteOne(ctx, "alice", "a2"))
				items, err := store.List(ctx, "alice")
				require.NoError(t, err)
				assert.Len(t, items, 2)

				assert.ErrorIs(t, store.DeleteOne(ctx, "alice", "a2"), imagestudio.ErrHistoryNotFound)
			})

			t.Run("delete all is scoped to user", func(t *testing.T) {
				require.NoError(t, store.DeleteAll(ctx, "alice"))

				items, err := store.List(ctx, "alice")
				require.NoError(t, err)
				assert.Empty(t, items)

				bobs, err := store.List(ctx, "bob")
				require.NoError(t, err)
				assert.Len(t, bobs, 1)

				require.NoError(t, store.DeleteAll(ctx, "nobody"))

				// Cleared IDs can be taken again.
				require.NoError(t, store.Save(ctx, newItem("carol", "a1", base)))
			})

			t.Run("rejects invalid items", func(t *testing.T) {
				assert.ErrorIs(t, store.Save(ctx, nil), ErrInvalidItem)
				assert.ErrorIs(t, store.Save(ctx, &imagestudio.HistoryItem{ID: "x"}), ErrInvalidItem)
			})
		})
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	mr := miniredis.RunT(t)
	s, err = Open(ctx, Options{Driver: "redis", RedisAddr: mr.Addr()})
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Options{Driver: "sqlite"})
	assert.Error(t, err)

	_, err = Open(ctx, Options{Driver: "mongo"})
	assert.Error(t, err)
}

func TestRedisStore_TTLAndStaleIndex(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(client, RedisOptions{KeyPrefix: "test:", TTL: time.Hour})
	t.Cleanup(func() { _ = store.Close() })

	now := time.Now()
	require.NoError(t, store.Save(ctx, newItem("u", "1", now)))
	require.NoError(t, store.Save(ctx, newItem("u", "2", now.Add(time.Second))))
	assert.True(t, mr.Exists("test:history:item:1"))
	assert.Greater(t, mr.TTL("test:history:item:1"), time.Duration(0))

	// Simulate the item expiring before its index entry.
	mr.Del("test:history:item:1")

	items, err := store.List(ctx, "u")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "2", items[0].ID)

	members, err := mr.ZMembers("test:history:user:u")
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, members)
}
