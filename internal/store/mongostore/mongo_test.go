package mongostore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/conneroisu/plantlog/internal/store"
	"github.com/conneroisu/plantlog/internal/store/storetest"
)

// Integration tests need a reachable server, e.g.
//
//	PLANTLOG_TEST_MONGO_URI=mongodb://localhost:27017 go test ./internal/store/mongostore
func testURI(t *testing.T) string {
	t.Helper()
	uri := os.Getenv("PLANTLOG_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("PLANTLOG_TEST_MONGO_URI not set")
	}
	return uri
}

func TestMongoStore(t *testing.T) {
	uri := testURI(t)

	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		s, err := Open(ctx, Options{
			URI:      uri,
			Database: fmt.Sprintf("plantlog_test_%s", primitive.NewObjectID().Hex()),
			Timeout:  5 * time.Second,
		})
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = s.drop(ctx)
			_ = s.Close(ctx)
		})
		return s
	})
}

func TestOpen_Unreachable(t *testing.T) {
	ctx := context.Background()
	_, err := Open(ctx, Options{
		URI:      "mongodb://127.0.0.1:1/?connect=direct",
		Database: "plants",
		Timeout:  200 * time.Millisecond,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.ErrorIs(t, classify(mongo.ErrNoDocuments), store.ErrNotFound)
	assert.ErrorIs(t, classify(fmt.Errorf("find: %w", mongo.ErrNoDocuments)), store.ErrNotFound)
	assert.ErrorIs(t, classify(mongo.ErrClientDisconnected), store.ErrUnavailable)
	assert.ErrorIs(t, classify(context.DeadlineExceeded), store.ErrUnavailable)

	other := errors.New("duplicate key")
	assert.Equal(t, other, classify(other))
}
