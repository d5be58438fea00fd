// Package jsonfile loads raw pump records from JSON export files.
package jsonfile

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/medpipe/pump-history-cli/internal/domain"
	"github.com/medpipe/pump-history-cli/internal/ports"
)

//go:embed records.schema.json
var recordsSchema string

const schemaURL = "records.schema.json"

var errEmptyPath = errors.New("records file path is empty")

// Source reads one device upload from a JSON file. Every load validates the
// payload against the embedded record schema before decoding, so malformed
// exports fail with a schema position instead of a half-decoded stream.
type Source struct {
	path   string
	schema *jsonschema.Schema
}

var _ ports.RecordSource = (*Source)(nil)

func NewSource(path string) (*Source, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errEmptyPath
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, strings.NewReader(recordsSchema)); err != nil {
		return nil, fmt.Errorf("add records schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile records schema: %w", err)
	}

	return &Source{path: path, schema: schema}, nil
}

func (s *Source) Load(ctx context.Context) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read records file: %w", err)
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("parse records file: %w", err)
	}
	if err := s.schema.Validate(payload); err != nil {
		return nil, fmt.Errorf("records file %s: %w", s.path, err)
	}

	var records []domain.Record
	if err := strictUnmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}

	// Records without an upload-assigned ID still need a stable identity for
	// error reporting and the previous-segment chain.
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
	}

	return records, nil
}

func strictUnmarshal(raw []byte, out *[]domain.Record) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}

	var extra any
	if err := dec.Decode(&extra); err != io.EOF {
		return errors.New("trailing data after records array")
	}

	return nil
}
