package validate

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/mondai/internal/ir"
)

//go:embed record.schema.json
var recordSchemaJSON []byte

const recordSchemaURL = "mondai://record.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func recordSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(recordSchemaJSON))
		if err != nil {
			schemaErr = fmt.Errorf("parse record schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(recordSchemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("add record schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile(recordSchemaURL)
	})
	return schema, schemaErr
}

// CheckSchema type-checks a raw record document. Every problem is returned
// as a MalformedRecord issue; an empty result means the document can be
// decoded into an ir.Record.
func CheckSchema(raw []byte) ([]Issue, error) {
	s, err := recordSchema()
	if err != nil {
		return nil, err
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return []Issue{newIssue(ir.KindMalformedRecord, "", 0, "invalid JSON: %v", err)}, nil
	}

	err = s.Validate(doc)
	if err == nil {
		return nil, nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	printer := message.NewPrinter(language.English)
	var issues []Issue
	for _, leaf := range leaves(verr) {
		issues = append(issues, newIssue(ir.KindMalformedRecord, fieldPath(leaf.InstanceLocation), 0,
			"%s", leaf.ErrorKind.LocalizedString(printer)))
	}
	return issues, nil
}

func leaves(e *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(e.Causes) == 0 {
		return []*jsonschema.ValidationError{e}
	}
	var out []*jsonschema.ValidationError
	for _, c := range e.Causes {
		out = append(out, leaves(c)...)
	}
	return out
}

// fieldPath turns ["sections", "2", "mondai"] into "sections[2].mondai".
func fieldPath(loc []string) string {
	var b strings.Builder
	for _, tok := range loc {
		if _, err := strconv.Atoi(tok); err == nil {
			b.WriteString("[" + tok + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(tok)
	}
	return b.String()
}
