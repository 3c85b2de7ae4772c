package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payment struct {
	UserID    string    `json:"userId"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// runStoreSuite checks the behaviour every backend must share.
func runStoreSuite(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		_, err := store.Get(ctx, "payments", "pi_missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set merges fields", func(t *testing.T) {
		ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, store.Set(ctx, "payments", "pi_1", Fields{"userId": "u1", "amount": 49900, "status": "pending"}))
		require.NoError(t, store.Set(ctx, "payments", "pi_1", Fields{"status": "succeeded", "updatedAt": ts}))

		doc, err := store.Get(ctx, "payments", "pi_1")
		require.NoError(t, err)
		var p payment
		require.NoError(t, doc.Decode(&p))
		assert.Equal(t, payment{UserID: "u1", Amount: 49900, Status: "succeeded", UpdatedAt: ts}, p)
	})

	t.Run("create refuses existing", func(t *testing.T) {
		require.NoError(t, store.Create(ctx, "payments", "pi_2", Fields{"status": "succeeded"}))
		err := store.Create(ctx, "payments", "pi_2", Fields{"status": "pending"})
		assert.ErrorIs(t, err, ErrAlreadyExists)

		doc, err := store.Get(ctx, "payments", "pi_2")
		require.NoError(t, err)
		assert.Equal(t, "succeeded", doc.Data["status"])
	})

	t.Run("update requires document", func(t *testing.T) {
		err := store.Update(ctx, "users", "nobody", Fields{"verified": true})
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, store.Set(ctx, "users", "u9", Fields{"email": "u9@example.com"}))
		require.NoError(t, store.Update(ctx, "users", "u9", Fields{"verified": true}))
		doc, err := store.Get(ctx, "users", "u9")
		require.NoError(t, err)
		assert.Equal(t, "u9@example.com", doc.Data["email"])
		assert.Equal(t, true, doc.Data["verified"])
	})

	t.Run("query filters and limit", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "subscriptions", "sub_a", Fields{"userId": "u1", "status": "canceled"}))
		require.NoError(t, store.Set(ctx, "subscriptions", "sub_b", Fields{"userId": "u1", "status": "active"}))
		require.NoError(t, store.Set(ctx, "subscriptions", "sub_c", Fields{"userId": "u2", "status": "active"}))

		docs, err := store.Query(ctx, "subscriptions", []Filter{Eq("userId", "u1"), Eq("status", "active")}, 1)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "sub_b", docs[0].ID)

		docs, err = store.Query(ctx, "subscriptions", []Filter{Eq("status", "active")}, 0)
		require.NoError(t, err)
		assert.Len(t, docs, 2)

		docs, err = store.Query(ctx, "subscriptions", []Filter{Eq("userId", "u3")}, 1)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("query rejects bad field names", func(t *testing.T) {
		_, err := store.Query(ctx, "subscriptions", []Filter{Eq("status') OR 1=1 --", "x")}, 1)
		assert.Error(t, err)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, NewMemoryStore())
}

func TestMemoryStoreError(t *testing.T) {
	store := NewMemoryStore().WithError(assert.AnError)
	_, err := store.Get(context.Background(), "users", "u1")
	assert.ErrorIs(t, err, assert.AnError)
	assert.ErrorIs(t, store.Set(context.Background(), "users", "u1", Fields{}), assert.AnError)
	assert.Equal(t, 0, store.Writes())
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "docs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	runStoreSuite(t, store)
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := NewPool(ctx, url)
	require.NoError(t, err)
	store := NewPostgresStore(pool)
	require.NoError(t, store.EnsureSchema(ctx))
	_, err = pool.Exec(ctx, `DELETE FROM documents`)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	runStoreSuite(t, store)
}

func TestFirestoreStore(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	store, err := OpenFirestore(context.Background(), "demo-payments", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	runStoreSuite(t, store)
}

func TestDocumentDecode(t *testing.T) {
	doc := Document{ID: "sub_1", Data: map[string]any{"userId": "u1", "amount": float64(1000)}}
	var p payment
	require.NoError(t, doc.Decode(&p))
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, int64(1000), p.Amount)
}
