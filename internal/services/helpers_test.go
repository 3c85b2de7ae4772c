package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/config"
	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/db"
	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/pricing"
	"github.com/LVC-Solutions-LLC/stripepaymentservice/internal/processor"

	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test_secret"

var fixedNow = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *db.MemoryStore, *processor.Fake) {
	t.Helper()
	store := db.NewMemoryStore()
	fake := processor.NewFake(config.ModeTest, testWebhookSecret)
	cfg := config.Config{
		StripeMode:  config.ModeTest,
		FrontendURL: "https://app.example.com",
	}
	svc := New(store, processor.NewRegistry(fake), pricing.Default(), cfg)
	svc.now = func() time.Time { return fixedNow }
	return svc, store, fake
}

var eventCreated = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

// eventPayload builds a Stripe event body wrapping object.
func eventPayload(t *testing.T, id, eventType string, object any) []byte {
	t.Helper()
	obj, err := json.Marshal(object)
	require.NoError(t, err)
	body, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"created":     eventCreated.Unix(),
		"api_version": "2023-10-16",
		"data":        map[string]any{"object": json.RawMessage(obj)},
	})
	require.NoError(t, err)
	return body
}

func getDoc(t *testing.T, store db.Store, collection, id string) map[string]any {
	t.Helper()
	doc, err := store.Get(context.Background(), collection, id)
	require.NoError(t, err)
	return doc.Data
}

func decodeDoc(t *testing.T, store db.Store, collection, id string, v any) {
	t.Helper()
	doc, err := store.Get(context.Background(), collection, id)
	require.NoError(t, err)
	require.NoError(t, doc.Decode(v))
}
