package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"policy_compass/pkg/models"
)

// FileRepo stores one JSON file per record under a directory. It is the
// local option when no database is configured but history should survive
// restarts.
type FileRepo struct {
	dir string
}

var _ Repository = (*FileRepo)(nil)

func NewFileRepo(dir string) (*FileRepo, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store dir: %w", err)
	}
	return &FileRepo{dir: dir}, nil
}

func (r *FileRepo) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", fmt.Errorf("invalid record id %q", id)
	}
	return filepath.Join(r.dir, id+".json"), nil
}

func (r *FileRepo) Save(ctx context.Context, rec *models.AnalysisRecord) error {
	if rec == nil {
		return errors.New("record is nil")
	}
	path, err := r.path(rec.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return os.Rename(tmp, path)
}

func (r *FileRepo) Load(ctx context.Context, id string) (*models.AnalysisRecord, error) {
	path, err := r.path(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return readRecord(path)
}

func (r *FileRepo) List(ctx context.Context, limit int) ([]*models.AnalysisRecord, error) {
	matches, err := filepath.Glob(filepath.Join(r.dir, "*.json"))
	if err != nil {
		return nil, err
	}
	out := make([]*models.AnalysisRecord, 0, len(matches))
	for _, m := range matches {
		rec, err := readRecord(m)
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	sortRecent(out)
	return clampList(out, limit), nil
}

func readRecord(path string) (*models.AnalysisRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	var rec models.AnalysisRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &rec, nil
}
