// Package store defines the plant and harvest documents and the Store
// interface the HTTP layer talks to. Backends live in sub-packages
// (mongostore, sqlitestore); an in-memory backend lives here for tests and
// throwaway runs.
//
// Plant ids are Mongo ObjectIDs in every backend. Harvests reference their
// plant by the canonical hex string of that id, persisted as plain text.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Collection names shared by every backend.
const (
	PlantsCollection   = "plants"
	HarvestsCollection = "harvests"
)

var (
	// ErrNotFound is returned when no plant matches an id.
	ErrNotFound = errors.New("store: document not found")
	// ErrInvalidID is returned by ParseID for text that is not an ObjectID.
	ErrInvalidID = errors.New("store: invalid document id")
	// ErrUnavailable wraps failures to reach the backing database.
	ErrUnavailable = errors.New("store: unavailable")
)

// Plant is a tracked growing specimen. Attributes other than the four
// editable ones are kept in Extra and survive edits untouched.
type Plant struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Variety     string             `bson:"variety" json:"variety"`
	PhotoURL    string             `bson:"photo_url" json:"photo_url"`
	DatePlanted string             `bson:"date_planted" json:"date_planted"`
	Extra       bson.M             `bson:",inline" json:"-"`
}

// Fields returns the editable attributes of p.
func (p Plant) Fields() PlantFields {
	return PlantFields{
		Name:        p.Name,
		Variety:     p.Variety,
		PhotoURL:    p.PhotoURL,
		DatePlanted: p.DatePlanted,
	}
}

// PlantFields are the four attributes replaced by an edit.
type PlantFields struct {
	Name        string
	Variety     string
	PhotoURL    string
	DatePlanted string
}

// SetDocument returns the partial document an edit applies with $set.
func (f PlantFields) SetDocument() bson.M {
	return bson.M{
		"name":         f.Name,
		"variety":      f.Variety,
		"photo_url":    f.PhotoURL,
		"date_planted": f.DatePlanted,
	}
}

// Harvest records one harvest event.
type Harvest struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Quantity string             `bson:"quantity" json:"quantity"`
	Date     string             `bson:"date" json:"date"`
	PlantID  string             `bson:"plant_id" json:"plant_id"`
}

// DeleteResult reports what a cascading plant delete removed.
type DeleteResult struct {
	Plants   int64
	Harvests int64
}

// Store is the document store the request handlers depend on.
type Store interface {
	// ListPlants returns every plant in store-native order.
	ListPlants(ctx context.Context) ([]Plant, error)
	// GetPlant returns ErrNotFound when no plant has id.
	GetPlant(ctx context.Context, id primitive.ObjectID) (*Plant, error)
	// CreatePlant inserts p under a freshly generated id; p.ID is ignored.
	CreatePlant(ctx context.Context, p Plant) (primitive.ObjectID, error)
	// UpdatePlant sets the four editable attributes and leaves every other
	// attribute alone. It returns ErrNotFound when no plant has id.
	UpdatePlant(ctx context.Context, id primitive.ObjectID, fields PlantFields) error
	// DeletePlant removes the plant and every harvest referencing it.
	DeletePlant(ctx context.Context, id primitive.ObjectID) (DeleteResult, error)

	// ListHarvests returns the harvests whose plant_id equals plantID.
	ListHarvests(ctx context.Context, plantID string) ([]Harvest, error)
	// CreateHarvest inserts h under a freshly generated id; h.ID is ignored.
	CreateHarvest(ctx context.Context, h Harvest) (primitive.ObjectID, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// ParseID converts a path segment into a plant id.
func ParseID(s string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id, nil
}

// PlantRef is the text form harvests use to reference a plant.
func PlantRef(id primitive.ObjectID) string {
	return id.Hex()
}
