//go:build property
// +build property

package server

import (
	"net/url"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestPlantFormProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("present fields decode verbatim", prop.ForAll(
		func(name, variety, photo, planted string) bool {
			got, err := DecodePlantForm(url.Values{
				"name":         {name},
				"variety":      {variety},
				"photo_url":    {photo},
				"date_planted": {planted},
			})
			return err == nil && got == PlantForm{Name: name, Variety: variety, PhotoURL: photo, DatePlanted: planted}
		},
		gen.AnyString(), gen.AnyString(), gen.AnyString(), gen.AnyString(),
	))

	properties.Property("each dropped field is reported", prop.ForAll(
		func(drop []bool) bool {
			keys := []string{"name", "variety", "photo_url", "date_planted"}
			values := url.Values{}
			dropped := 0
			for i, k := range keys {
				if drop[i] {
					dropped++
					continue
				}
				values.Set(k, "v")
			}
			_, err := DecodePlantForm(values)
			if dropped == 0 {
				return err == nil
			}
			return err != nil && len(err.(interface{ FieldNames() []string }).FieldNames()) == dropped
		},
		gen.SliceOfN(4, gen.Bool()),
	))

	properties.TestingRun(t)
}
