package catalog

import (
	"reflect"

	"github.com/invopop/jsonschema"
)

// Schema describes hustles.json for designers editing the catalog by hand.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}

	entry := reflector.ReflectFromType(reflect.TypeOf(Definition{}))
	entry.Version = ""
	entry.Title = "Hustle Definition"
	entry.Description = "One income track. The first entry must cost 0 and is the starting hustle."

	return &jsonschema.Schema{
		Version:     jsonschema.Version,
		Title:       "Hustle Catalog",
		Description: "Ordered list of hustles; each unlocks once the previous one reaches the unlock level.",
		Type:        "array",
		Items:       entry,
		MinItems:    1,
	}
}
