package searchindex

import (
	"errors"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaURL = "https://docsearch.local/schema/search-index.json"

// documentSchema describes the contract consumers rely on: a "docs" array of
// objects whose known fields are strings. Extra fields are allowed and every
// record field is optional.
const documentSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["docs"],
  "properties": {
    "docs": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "location": {"type": "string"},
          "page":     {"type": "string"},
          "title":    {"type": "string"},
          "text":     {"type": "string"},
          "category": {"type": "string"}
        }
      }
    }
  }
}`

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(documentSchema))
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, doc); err != nil {
		return nil, err
	}
	return compiler.Compile(schemaURL)
})

func validateDocument(doc any) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}

	err = schema.Validate(doc)
	if err == nil {
		return nil
	}

	var validationErr *jsonschema.ValidationError
	if !errors.As(err, &validationErr) {
		return &ParseError{Offset: -1, Msg: err.Error(), Err: err}
	}

	leaf := deepestCause(validationErr)
	return &ParseError{
		Offset: -1,
		Path:   "/" + strings.Join(leaf.InstanceLocation, "/"),
		Msg:    leaf.Error(),
		Err:    validationErr,
	}
}

// deepestCause follows the first cause chain to the most specific failure
func deepestCause(err *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(err.Causes) > 0 {
		err = err.Causes[0]
	}
	return err
}
