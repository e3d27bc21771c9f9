// Package yamlfile keeps exported records as one YAML document per kind.
//
// A transfer directory holds <kind>.yaml files shaped as
//
//	kind: iblock.iblock
//	records:
//	  - xml_id: products
//	    fields:
//	      NAME: Products
//	    dependencies:
//	      IBLOCK_TYPE_ID:
//	        kind: iblock.type
//	        values: [catalog]
//
// Live IDs are never written: the files are meant to move between sites.
package yamlfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/migrato/internal/core/domain"
	"github.com/custodia-labs/migrato/internal/core/ports/driven"
)

// Ext is the extension of transfer files.
const Ext = ".yaml"

var (
	_ driven.RecordStore  = (*Store)(nil)
	_ driven.ChangeSource = (*Store)(nil)
)

type document struct {
	Kind    string        `yaml:"kind"`
	Records []recordEntry `yaml:"records"`
}

type recordEntry struct {
	XMLID        string                     `yaml:"xml_id"`
	Fields       map[string]any             `yaml:"fields,omitempty"`
	Dependencies map[string]dependencyEntry `yaml:"dependencies,omitempty"`
}

type dependencyEntry struct {
	Kind   string   `yaml:"kind"`
	Values []string `yaml:"values,flow"`
}

// Store is a directory of transfer files.
type Store struct {
	mu  sync.Mutex
	dir string
}

// NewStore returns a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: transfer directory is empty", domain.ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transfer directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Location returns the transfer directory.
func (s *Store) Location() string {
	return s.dir
}

// Save replaces the file of one kind. Records of another kind are rejected.
// An empty batch removes the file.
func (s *Store) Save(ctx context.Context, kind string, records []domain.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validKind(kind) {
		return fmt.Errorf("%w: kind %q", domain.ErrInvalidInput, kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(kind)
	if len(records) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", path, err)
		}
		return nil
	}

	doc := document{Kind: kind, Records: make([]recordEntry, 0, len(records))}
	for _, rec := range records {
		if rec.Kind != kind {
			return fmt.Errorf("%w: %s record in %s file", domain.ErrInvalidInput, rec.Kind, kind)
		}
		doc.Records = append(doc.Records, toEntry(rec))
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	return writeAtomic(path, out)
}

// Load reads every transfer file, kinds in name order.
func (s *Store) Load(ctx context.Context) ([]domain.Record, error) {
	kinds, err := s.Kinds(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var records []domain.Record
	for _, kind := range kinds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		list, err := s.load(kind)
		if err != nil {
			return nil, err
		}
		records = append(records, list...)
	}
	return records, nil
}

// Kinds lists the kinds that have a transfer file.
func (s *Store) Kinds(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.dir, err)
	}
	var kinds []string
	for _, e := range entries {
		if kind, ok := kindOf(e.Name()); ok && !e.IsDir() {
			kinds = append(kinds, kind)
		}
	}
	sort.Strings(kinds)
	return kinds, nil
}

func (s *Store) load(kind string) ([]domain.Record, error) {
	path := s.path(kind)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if doc.Kind == "" {
		doc.Kind = kind
	}
	if doc.Kind != kind {
		return nil, fmt.Errorf("%w: %s declares kind %q", domain.ErrInvalidInput, path, doc.Kind)
	}

	records := make([]domain.Record, 0, len(doc.Records))
	for _, e := range doc.Records {
		records = append(records, fromEntry(kind, e))
	}
	return records, nil
}

func (s *Store) path(kind string) string {
	return filepath.Join(s.dir, kind+Ext)
}

func toEntry(rec domain.Record) recordEntry {
	e := recordEntry{XMLID: rec.XMLID}
	if len(rec.Fields) > 0 {
		e.Fields = make(map[string]any, len(rec.Fields))
		for k, v := range rec.Fields {
			e.Fields[k] = domain.CloneValue(v)
		}
	}
	if len(rec.Dependencies) > 0 {
		e.Dependencies = make(map[string]dependencyEntry, len(rec.Dependencies))
		for name, dep := range rec.Dependencies {
			e.Dependencies[name] = dependencyEntry{Kind: dep.Kind, Values: append([]string(nil), dep.Values...)}
		}
	}
	return e
}

func fromEntry(kind string, e recordEntry) domain.Record {
	rec := domain.NewRecord(kind, e.XMLID)
	rec.SetFields(e.Fields)
	for name, dep := range e.Dependencies {
		rec.SetDependency(name, domain.NewDependency(dep.Kind, dep.Values...))
	}
	return rec
}

// kindOf maps a file name to its kind. Hidden files are the atomic
// writer's scratch space.
func kindOf(name string) (string, bool) {
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, Ext) {
		return "", false
	}
	kind := strings.TrimSuffix(name, Ext)
	return kind, validKind(kind)
}

func validKind(kind string) bool {
	return kind != "" && !strings.ContainsAny(kind, `/\`) && !strings.HasPrefix(kind, ".")
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
