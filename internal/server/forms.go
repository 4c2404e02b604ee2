package server

import (
	"net/url"

	"github.com/conneroisu/plantlog/internal/errors"
	"github.com/conneroisu/plantlog/internal/store"
)

// formField names a submitted field and the older names it may arrive under.
type formField struct {
	name    string
	aliases []string
}

func (f formField) lookup(values url.Values) (string, bool) {
	if values.Has(f.name) {
		return values.Get(f.name), true
	}
	for _, alias := range f.aliases {
		if values.Has(alias) {
			return values.Get(alias), true
		}
	}
	return "", false
}

var (
	fieldName        = formField{name: "name", aliases: []string{"plant_name"}}
	fieldVariety     = formField{name: "variety"}
	fieldPhotoURL    = formField{name: "photo_url", aliases: []string{"photo"}}
	fieldDatePlanted = formField{name: "date_planted"}

	fieldQuantity    = formField{name: "harvested_amount"}
	fieldDateHarvest = formField{name: "date_harvested", aliases: []string{"date_planted"}}
)

// PlantForm is the create and edit form. Every field must be present;
// empty values are accepted.
type PlantForm struct {
	Name        string
	Variety     string
	PhotoURL    string
	DatePlanted string
}

// Fields converts the form into the editable plant attributes.
func (f PlantForm) Fields() store.PlantFields {
	return store.PlantFields{
		Name:        f.Name,
		Variety:     f.Variety,
		PhotoURL:    f.PhotoURL,
		DatePlanted: f.DatePlanted,
	}
}

// Plant builds a new plant document from the form.
func (f PlantForm) Plant() store.Plant {
	return store.Plant{
		Name:        f.Name,
		Variety:     f.Variety,
		PhotoURL:    f.PhotoURL,
		DatePlanted: f.DatePlanted,
	}
}

// HarvestForm is the harvest logging form.
type HarvestForm struct {
	Quantity string
	Date     string
}

type formDecoder struct {
	values  url.Values
	missing *errors.AppError
}

func (d *formDecoder) field(f formField, dst *string) {
	v, ok := f.lookup(d.values)
	if !ok {
		if d.missing == nil {
			d.missing = errors.NewValidationError("missing_fields", "Some required fields were not submitted.")
		}
		d.missing.WithField(f.name, "is required")
		return
	}
	*dst = v
}

func (d *formDecoder) err() error {
	if d.missing == nil {
		return nil
	}
	return d.missing
}

// DecodePlantForm reads a PlantForm from submitted values. The returned
// error lists every missing field.
func DecodePlantForm(values url.Values) (PlantForm, error) {
	var f PlantForm
	d := formDecoder{values: values}
	d.field(fieldName, &f.Name)
	d.field(fieldVariety, &f.Variety)
	d.field(fieldPhotoURL, &f.PhotoURL)
	d.field(fieldDatePlanted, &f.DatePlanted)
	return f, d.err()
}

// DecodeHarvestForm reads a HarvestForm from submitted values.
func DecodeHarvestForm(values url.Values) (HarvestForm, error) {
	var f HarvestForm
	d := formDecoder{values: values}
	d.field(fieldQuantity, &f.Quantity)
	d.field(fieldDateHarvest, &f.Date)
	return f, d.err()
}
