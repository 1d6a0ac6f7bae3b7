package jsonnet

import (
	"os"
	"path/filepath"

	"github.com/google/jsonnet-sub000/ast"
)

// Importer resolves `import`/`importstr` expressions. Contents is the
// file's raw bytes (as a string); FoundAt is whatever path the importer
// wants recorded as the cache key and used as the base for further
// relative imports from within that file -- path resolution is
// deliberately left up to the host.
type Importer interface {
	Import(importedFrom, path string) (contents string, foundAt string, err error)
}

// FileImporter is the default Importer: relative paths are resolved
// against the importing file's directory, then against each entry of
// JPaths, mirroring the `-J` CLI flag.
type FileImporter struct {
	JPaths []string
}

func (fi *FileImporter) Import(importedFrom, path string) (string, string, error) {
	candidates := []string{filepath.Join(filepath.Dir(importedFrom), path)}
	for _, jp := range fi.JPaths {
		candidates = append(candidates, filepath.Join(jp, path))
	}
	if filepath.IsAbs(path) {
		candidates = []string{path}
	}
	var lastErr error
	for _, c := range candidates {
		data, err := os.ReadFile(c)
		if err == nil {
			return string(data), c, nil
		}
		lastErr = err
	}
	return "", "", lastErr
}

type importCacheKey struct {
	importedFrom string
	path         string
}

type importedFile struct {
	contents string
	foundAt  string
}

// importCache memoizes (importing file, imported path) -> (contents,
// resolved_path), and separately caches the already-evaluated
// Value of each distinct resolved file so `import "x"` used twice in one
// program only evaluates "x" once.
type importCache struct {
	importer Importer
	raw      map[importCacheKey]importedFile
	values   map[string]*Thunk
}

func newImportCache(importer Importer) *importCache {
	return &importCache{
		importer: importer,
		raw:      make(map[importCacheKey]importedFile),
		values:   make(map[string]*Thunk),
	}
}

func (c *importCache) resolve(importedFrom, path string) (importedFile, error) {
	key := importCacheKey{importedFrom, path}
	if f, ok := c.raw[key]; ok {
		return f, nil
	}
	contents, foundAt, err := c.importer.Import(importedFrom, path)
	if err != nil {
		return importedFile{}, err
	}
	f := importedFile{contents: contents, foundAt: foundAt}
	c.raw[key] = f
	return f, nil
}

func (i *interpreter) evalImportStr(env *Environment, n *ast.ImportStr) (Value, error) {
	f, err := i.imports.resolve(n.Loc().FileName, n.File.Value)
	if err != nil {
		return nil, i.runtimeErrorf(*n.Loc(), "Couldn't open import %q: %v", n.File.Value, err)
	}
	return makeValueString(f.contents), nil
}

func (i *interpreter) evalImport(env *Environment, n *ast.Import) (Value, error) {
	f, err := i.imports.resolve(n.Loc().FileName, n.File.Value)
	if err != nil {
		return nil, i.runtimeErrorf(*n.Loc(), "Couldn't open import %q: %v", n.File.Value, err)
	}
	if t, ok := i.imports.values[f.foundAt]; ok {
		return i.force(t, *n.Loc(), f.foundAt)
	}
	node, err := i.parseAndDesugar(f.foundAt, f.contents)
	if err != nil {
		return nil, err
	}
	t := newThunk(i.heap, "", i.rootEnv(), node)
	i.imports.values[f.foundAt] = t
	return i.force(t, *n.Loc(), f.foundAt)
}
