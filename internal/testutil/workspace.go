// Package testutil builds temporary document trees for tests.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Workspace is a temporary directory of documents and configuration.
type Workspace struct {
	Path  string
	t     *testing.T
	files map[string]string
}

// NewWorkspace creates a workspace builder. Call Build to write it to disk.
func NewWorkspace(t *testing.T) *Workspace {
	t.Helper()
	return &Workspace{t: t, files: make(map[string]string)}
}

// WithFile adds a file relative to the workspace root.
func (w *Workspace) WithFile(path, content string) *Workspace {
	w.files[path] = content
	return w
}

// WithConfig sets config.toml.
func (w *Workspace) WithConfig(toml string) *Workspace {
	return w.WithFile("config.toml", toml)
}

// WithOrderSchemas adds common.xsd and orders.xsd, where orders.xsd imports
// common.xsd and extends its BaseDocument type.
func (w *Workspace) WithOrderSchemas() *Workspace {
	return w.WithFile("common.xsd", CommonXSD).WithFile("orders.xsd", OrdersXSD)
}

// Build creates the directory and writes every configured file.
func (w *Workspace) Build() *Workspace {
	w.t.Helper()
	w.Path = w.t.TempDir()
	for path, content := range w.files {
		w.WriteFile(path, content)
	}
	return w
}

// File returns the absolute path of relPath.
func (w *Workspace) File(relPath string) string {
	return filepath.Join(w.Path, relPath)
}

// WriteFile writes relPath, creating parent directories.
func (w *Workspace) WriteFile(relPath, content string) {
	w.t.Helper()
	full := w.File(relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		w.t.Fatalf("failed to create directory for %s: %v", relPath, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		w.t.Fatalf("failed to write %s: %v", relPath, err)
	}
}

// ReadFile returns the content of relPath.
func (w *Workspace) ReadFile(relPath string) string {
	w.t.Helper()
	content, err := os.ReadFile(w.File(relPath))
	if err != nil {
		w.t.Fatalf("failed to read %s: %v", relPath, err)
	}
	return string(content)
}

// FileExists reports whether relPath exists.
func (w *Workspace) FileExists(relPath string) bool {
	_, err := os.Stat(w.File(relPath))
	return err == nil
}

// AssertFileExists fails the test if relPath does not exist.
func (w *Workspace) AssertFileExists(relPath string) {
	w.t.Helper()
	if !w.FileExists(relPath) {
		w.t.Errorf("expected file to exist: %s", relPath)
	}
}

// AssertFileContains fails the test if relPath does not contain substr.
func (w *Workspace) AssertFileContains(relPath, substr string) {
	w.t.Helper()
	content := w.ReadFile(relPath)
	if !strings.Contains(content, substr) {
		w.t.Errorf("expected %s to contain %q, got:\n%s", relPath, substr, content)
	}
}

// MinimalConfig is a config.toml with a relative database, every YAML file
// in the workspace as an ontology, and quiet logging.
const MinimalConfig = `database = "catalog.db"
ontologies = ["*.yaml"]

[log]
level = "error"
`

// DocsOntology defines Schema with the child OrderSchema ("Order Schema").
const DocsOntology = `
id: docs
base: urn:docs
classes:
  - id: Schema
    children:
      - id: OrderSchema
        label: Order Schema
`

const CommonXSD = `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema" targetNamespace="urn:common">
  <xs:complexType name="BaseDocument"/>
</xs:schema>`

const OrdersXSD = `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"
           xmlns:c="urn:common" targetNamespace="urn:orders">
  <xs:import namespace="urn:common" schemaLocation="common.xsd"/>
  <xs:element name="order" type="xs:string"/>
  <xs:complexType name="OrderType">
    <xs:complexContent><xs:extension base="c:BaseDocument"/></xs:complexContent>
  </xs:complexType>
</xs:schema>`
