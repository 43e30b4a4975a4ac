package protocol

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed envelope.schema.json
var envelopeSchema []byte

const envelopeSchemaURL = "mem://ardice/envelope.schema.json"

var (
	compiledOnce   sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func schema() (*jsonschema.Schema, error) {
	compiledOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft7
		if err := compiler.AddResource(envelopeSchemaURL, bytes.NewReader(envelopeSchema)); err != nil {
			compileErr = errors.Wrap(err, "add envelope schema")
			return
		}
		compiledSchema, compileErr = compiler.Compile(envelopeSchemaURL)
		if compileErr != nil {
			compileErr = errors.Wrap(compileErr, "compile envelope schema")
		}
	})
	return compiledSchema, compileErr
}

// Validate checks a raw inbound frame against the envelope schema.
func Validate(data []byte) error {
	s, err := schema()
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err = dec.Decode(&doc); err != nil {
		return errors.Wrap(ErrInvalidFrame, err.Error())
	}
	if err = s.Validate(doc); err != nil {
		return errors.Wrap(ErrInvalidFrame, err.Error())
	}
	return nil
}
