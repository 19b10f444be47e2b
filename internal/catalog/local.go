package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kiranshivaraju/propchat/pkg/models"
)

// LocalSource reads catalogs from <Dir>/<tenant>/properties.json, falling back
// to <Dir>/<tenant>.json.
type LocalSource struct {
	Dir string
}

// NewLocalSource creates a LocalSource rooted at dir.
func NewLocalSource(dir string) *LocalSource {
	return &LocalSource{Dir: dir}
}

func (s *LocalSource) Name() string { return "local" }

func (s *LocalSource) Load(_ context.Context, tenantID string) ([]models.Property, error) {
	name, err := safeName(tenantID)
	if err != nil {
		return nil, err
	}
	for _, path := range []string{
		filepath.Join(s.Dir, name, "properties.json"),
		filepath.Join(s.Dir, name+".json"),
	} {
		b, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return decodeCatalog(bytes.NewReader(b))
	}
	return nil, ErrTenantNotFound
}

// safeName rejects tenant ids that could escape the catalog directory.
func safeName(tenantID string) (string, error) {
	name := models.TenantDomain(tenantID)
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid tenant id %q: %w", tenantID, ErrTenantNotFound)
	}
	return name, nil
}

// decodeCatalog accepts either a bare JSON array of listings or an object with a
// "properties" array.
func decodeCatalog(r io.Reader) ([]models.Property, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}

	var props []models.Property
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &props); err != nil {
			return nil, fmt.Errorf("decode catalog: %w", err)
		}
		return props, nil
	}

	var wrapped struct {
		Properties []models.Property `json:"properties"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return wrapped.Properties, nil
}
