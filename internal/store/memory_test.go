package store_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/goleak"

	"github.com/conneroisu/plantlog/internal/store"
	"github.com/conneroisu/plantlog/internal/store/storetest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s := store.NewMemoryStore()
		t.Cleanup(func() { _ = s.Close(context.Background()) })
		return s
	})
}

func TestMemoryStore_ListPreservesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	for _, name := range []string{"a", "b", "c"} {
		_, err := s.CreatePlant(ctx, store.Plant{Name: name})
		require.NoError(t, err)
	}

	plants, err := s.ListPlants(ctx)
	require.NoError(t, err)
	names := []string{plants[0].Name, plants[1].Name, plants[2].Name}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	id, err := s.CreatePlant(ctx, store.Plant{Name: "Basil", Extra: bson.M{"bed": "north"}})
	require.NoError(t, err)

	got, err := s.GetPlant(ctx, id)
	require.NoError(t, err)
	got.Name = "mutated"
	got.Extra["bed"] = "mutated"

	again, err := s.GetPlant(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Basil", again.Name)
	assert.Equal(t, "north", again.Extra["bed"])
}

func TestMemoryStore_Closed(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Close(ctx))

	_, err := s.ListPlants(ctx)
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.ErrorIs(t, s.Ping(ctx), store.ErrUnavailable)
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.NewMemoryStore().ListPlants(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStore_ConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := s.CreatePlant(ctx, store.Plant{Name: "p"})
			assert.NoError(t, err)
			_, err = s.CreateHarvest(ctx, store.Harvest{PlantID: store.PlantRef(id), Quantity: "1"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	plants, err := s.ListPlants(ctx)
	require.NoError(t, err)
	assert.Len(t, plants, 20)
}

func TestParseID(t *testing.T) {
	id, err := store.ParseID("65f1c0ffee0000000000abcd")
	require.NoError(t, err)
	assert.Equal(t, "65f1c0ffee0000000000abcd", store.PlantRef(id))

	upper, err := store.ParseID("65F1C0FFEE0000000000ABCD")
	require.NoError(t, err)
	assert.Equal(t, id, upper, "hex parsing is case-insensitive")

	for _, bad := range []string{"", "abc", "zzzzzzzzzzzzzzzzzzzzzzzz", "65f1c0ffee0000000000abcd00"} {
		_, err := store.ParseID(bad)
		assert.ErrorIs(t, err, store.ErrInvalidID, bad)
	}
}

func TestPlantFields_SetDocument(t *testing.T) {
	doc := store.PlantFields{Name: "n", Variety: "v", PhotoURL: "p", DatePlanted: "d"}.SetDocument()
	assert.Equal(t, bson.M{"name": "n", "variety": "v", "photo_url": "p", "date_planted": "d"}, doc)
}
