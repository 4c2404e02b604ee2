package sqlitestore

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/conneroisu/plantlog/internal/logging"
	"github.com/conneroisu/plantlog/internal/store"
	"github.com/conneroisu/plantlog/internal/store/storetest"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "plants.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return openTemp(t)
	})
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "plants.db")
	s, err := Open(context.Background(), path, nil)
	require.NoError(t, err)
	defer s.Close(context.Background())

	assert.FileExists(t, path)
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "plants.db")

	s, err := Open(ctx, path, nil)
	require.NoError(t, err)
	id, err := s.CreatePlant(ctx, store.Plant{Name: "Kale", Extra: bson.M{"bed": "east"}})
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx))

	reopened, err := Open(ctx, path, nil)
	require.NoError(t, err)
	defer reopened.Close(ctx)

	got, err := reopened.GetPlant(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Kale", got.Name)
	assert.Equal(t, "east", got.Extra["bed"])
}

func TestStore_DocumentsAreExtendedJSON(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	id, err := s.CreatePlant(ctx, store.Plant{Name: "Mint", Variety: "Spearmint"})
	require.NoError(t, err)

	var doc string
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT doc FROM plants WHERE id = ?`, id.Hex()).Scan(&doc))
	assert.Contains(t, doc, `"$oid":"`+id.Hex()+`"`)
	assert.Contains(t, doc, `"name":"Mint"`)
}

func TestStore_ClosedIsUnavailable(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "plants.db"), nil)
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx))

	assert.ErrorIs(t, s.Ping(ctx), store.ErrUnavailable)

	_, err = s.ListPlants(ctx)
	assert.ErrorIs(t, err, store.ErrUnavailable)
	_, err = s.GetPlant(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, store.ErrUnavailable)
	_, err = s.CreatePlant(ctx, store.Plant{Name: "Leek"})
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.ErrorIs(t, s.UpdatePlant(ctx, primitive.NewObjectID(), store.PlantFields{}), store.ErrUnavailable)
	_, err = s.DeletePlant(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, store.ErrUnavailable)
	_, err = s.ListHarvests(ctx, primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestStore_LogsOperationTimings(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelDebug, Output: &buf})

	s, err := Open(ctx, filepath.Join(t.TempDir(), "plants.db"), logger)
	require.NoError(t, err)
	defer s.Close(ctx)

	id, err := s.CreatePlant(ctx, store.Plant{Name: "Chard"})
	require.NoError(t, err)
	_, err = s.DeletePlant(ctx, id)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "operation=create_plant")
	assert.Contains(t, out, "operation=delete_plant")
	assert.Contains(t, out, "duration_ms=")
	assert.Contains(t, out, "component=store")
}
