// Package storetest holds the behavioural suite every store.Store backend
// must pass. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/conneroisu/plantlog/internal/store"
)

// Factory opens an empty store. Cleanup is registered on t by the factory.
type Factory func(t *testing.T) store.Store

var tomato = store.Plant{
	Name:        "Tomato",
	Variety:     "Roma",
	PhotoURL:    "http://x/1.jpg",
	DatePlanted: "2024-03-01",
}

// Run executes the suite against stores produced by open.
func Run(t *testing.T, open Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"CreateAndGet", testCreateAndGet},
		{"GetMissing", testGetMissing},
		{"ListPlants", testListPlants},
		{"UpdateSetsOnlyEditableFields", testUpdateSetsOnlyEditableFields},
		{"UpdateMissing", testUpdateMissing},
		{"IdenticalEditRoundTrip", testIdenticalEditRoundTrip},
		{"HarvestsByPlantRef", testHarvestsByPlantRef},
		{"HarvestRefIsPlainText", testHarvestRefIsPlainText},
		{"DeleteCascades", testDeleteCascades},
		{"DeleteMissing", testDeleteMissing},
		{"Ping", testPing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, open(t))
		})
	}
}

func diffPlants(want, got store.Plant) string {
	return cmp.Diff(want, got, cmpopts.EquateEmpty())
}

func testCreateAndGet(t *testing.T, s store.Store) {
	ctx := context.Background()

	id, err := s.CreatePlant(ctx, tomato)
	require.NoError(t, err)
	require.False(t, id.IsZero(), "store must assign an id")

	got, err := s.GetPlant(ctx, id)
	require.NoError(t, err)

	want := tomato
	want.ID = id
	if diff := diffPlants(want, *got); diff != "" {
		t.Errorf("GetPlant mismatch (-want +got):\n%s", diff)
	}
}

func testGetMissing(t *testing.T, s store.Store) {
	_, err := s.GetPlant(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testListPlants(t *testing.T, s store.Store) {
	ctx := context.Background()

	empty, err := s.ListPlants(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	var ids []primitive.ObjectID
	for _, name := range []string{"Tomato", "Basil", "Pepper"} {
		p := tomato
		p.Name = name
		id, err := s.CreatePlant(ctx, p)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	first, err := s.ListPlants(ctx)
	require.NoError(t, err)
	require.Len(t, first, 3)

	second, err := s.ListPlants(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(first, second, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("repeated list differs (-first +second):\n%s", diff)
	}

	listed := make([]primitive.ObjectID, 0, len(first))
	for _, p := range first {
		listed = append(listed, p.ID)
	}
	assert.ElementsMatch(t, ids, listed)
}

func testUpdateSetsOnlyEditableFields(t *testing.T, s store.Store) {
	ctx := context.Background()

	p := tomato
	p.Extra = bson.M{"notes": "south bed"}
	id, err := s.CreatePlant(ctx, p)
	require.NoError(t, err)

	fields := store.PlantFields{
		Name:        "Cherry Tomato",
		Variety:     "Sungold",
		PhotoURL:    "http://x/2.jpg",
		DatePlanted: "2024-04-15",
	}
	require.NoError(t, s.UpdatePlant(ctx, id, fields))

	got, err := s.GetPlant(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, fields, got.Fields())
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "south bed", got.Extra["notes"])
}

func testUpdateMissing(t *testing.T, s store.Store) {
	err := s.UpdatePlant(context.Background(), primitive.NewObjectID(), tomato.Fields())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testIdenticalEditRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()

	id, err := s.CreatePlant(ctx, tomato)
	require.NoError(t, err)
	before, err := s.GetPlant(ctx, id)
	require.NoError(t, err)

	require.NoError(t, s.UpdatePlant(ctx, id, before.Fields()))

	after, err := s.GetPlant(ctx, id)
	require.NoError(t, err)
	if diff := diffPlants(*before, *after); diff != "" {
		t.Errorf("identical edit changed the plant (-before +after):\n%s", diff)
	}
}

func testHarvestsByPlantRef(t *testing.T, s store.Store) {
	ctx := context.Background()

	a, err := s.CreatePlant(ctx, tomato)
	require.NoError(t, err)
	b, err := s.CreatePlant(ctx, tomato)
	require.NoError(t, err)

	none, err := s.ListHarvests(ctx, store.PlantRef(a))
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	for _, q := range []string{"12", "7"} {
		_, err := s.CreateHarvest(ctx, store.Harvest{Quantity: q, Date: "2024-06-01", PlantID: store.PlantRef(a)})
		require.NoError(t, err)
	}
	_, err = s.CreateHarvest(ctx, store.Harvest{Quantity: "3", Date: "2024-06-02", PlantID: store.PlantRef(b)})
	require.NoError(t, err)

	got, err := s.ListHarvests(ctx, store.PlantRef(a))
	require.NoError(t, err)
	require.Len(t, got, 2)

	quantities := []string{got[0].Quantity, got[1].Quantity}
	assert.ElementsMatch(t, []string{"12", "7"}, quantities)
	for _, h := range got {
		assert.Equal(t, store.PlantRef(a), h.PlantID)
		assert.Equal(t, "2024-06-01", h.Date)
		assert.False(t, h.ID.IsZero())
	}
}

func testHarvestRefIsPlainText(t *testing.T, s store.Store) {
	ctx := context.Background()

	// Nothing enforces that a harvest points at a real plant.
	_, err := s.CreateHarvest(ctx, store.Harvest{Quantity: "1", Date: "2024-01-01", PlantID: "orphan"})
	require.NoError(t, err)

	got, err := s.ListHarvests(ctx, "orphan")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "orphan", got[0].PlantID)
}

func testDeleteCascades(t *testing.T, s store.Store) {
	ctx := context.Background()

	doomed, err := s.CreatePlant(ctx, tomato)
	require.NoError(t, err)
	kept, err := s.CreatePlant(ctx, tomato)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := s.CreateHarvest(ctx, store.Harvest{Quantity: "1", Date: "2024-06-01", PlantID: store.PlantRef(doomed)})
		require.NoError(t, err)
	}
	_, err = s.CreateHarvest(ctx, store.Harvest{Quantity: "9", Date: "2024-06-01", PlantID: store.PlantRef(kept)})
	require.NoError(t, err)

	res, err := s.DeletePlant(ctx, doomed)
	require.NoError(t, err)
	assert.Equal(t, store.DeleteResult{Plants: 1, Harvests: 2}, res)

	_, err = s.GetPlant(ctx, doomed)
	assert.ErrorIs(t, err, store.ErrNotFound)

	plants, err := s.ListPlants(ctx)
	require.NoError(t, err)
	require.Len(t, plants, 1)
	assert.Equal(t, kept, plants[0].ID)

	gone, err := s.ListHarvests(ctx, store.PlantRef(doomed))
	require.NoError(t, err)
	assert.Empty(t, gone)

	remaining, err := s.ListHarvests(ctx, store.PlantRef(kept))
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func testDeleteMissing(t *testing.T, s store.Store) {
	res, err := s.DeletePlant(context.Background(), primitive.NewObjectID())
	require.NoError(t, err)
	assert.Equal(t, store.DeleteResult{}, res)
}

func testPing(t *testing.T, s store.Store) {
	assert.NoError(t, s.Ping(context.Background()))
}
