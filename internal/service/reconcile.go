package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"podocs/internal/logging"
	"podocs/internal/model"
	"podocs/internal/repository"
	"podocs/internal/storage"
)

const verifyPageSize = 200

// MissingArtifact is a record whose file could not be found.
type MissingArtifact struct {
	Document model.Document
	Err      error
}

// Reconciler compares the document store with the records table. It is run
// by operators; nothing in the request path calls it.
type Reconciler struct {
	store storage.Store
	docs  repository.DocumentRepository
	log   *logging.Logger
	now   func() time.Time
}

// NewReconciler returns a Reconciler over store and docs.
func NewReconciler(store storage.Store, docs repository.DocumentRepository, log *logging.Logger) *Reconciler {
	if log == nil {
		log = logging.Discard()
	}
	return &Reconciler{store: store, docs: docs, log: log.With("reconciler"), now: time.Now}
}

// FindOrphans lists stored artifacts that no record references and that are
// older than minAge. The grace period skips files whose insert is still in
// flight.
func (r *Reconciler) FindOrphans(ctx context.Context, minAge time.Duration) ([]storage.ObjectInfo, error) {
	objects, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	paths, err := r.docs.ListFilePaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recorded paths: %w", err)
	}

	referenced := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		referenced[p] = struct{}{}
	}

	cutoff := r.now().Add(-minAge)
	orphans := make([]storage.ObjectInfo, 0)
	for _, obj := range objects {
		if _, ok := referenced[obj.Path]; ok {
			continue
		}
		if obj.ModTime.After(cutoff) {
			continue
		}
		orphans = append(orphans, obj)
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].Path < orphans[j].Path })
	return orphans, nil
}

// RemoveOrphans deletes what FindOrphans reports and returns the removed
// artifacts. It stops at the first removal error.
func (r *Reconciler) RemoveOrphans(ctx context.Context, minAge time.Duration) ([]storage.ObjectInfo, error) {
	orphans, err := r.FindOrphans(ctx, minAge)
	if err != nil {
		return nil, err
	}

	removed := make([]storage.ObjectInfo, 0, len(orphans))
	for _, obj := range orphans {
		if err := r.store.Remove(ctx, obj.Path); err != nil {
			r.log.Error("orphan_remove_failed", err, map[string]any{"file_path": obj.Path})
			return removed, err
		}
		r.log.Info("orphan_removed", map[string]any{"file_path": obj.Path, "size": obj.Size})
		removed = append(removed, obj)
	}
	return removed, nil
}

// VerifyArtifacts reads every record's artifact and reports those that are
// missing. Read errors other than a missing artifact abort the scan.
func (r *Reconciler) VerifyArtifacts(ctx context.Context) ([]MissingArtifact, error) {
	missing := make([]MissingArtifact, 0)
	for offset := 0; ; offset += verifyPageSize {
		page, err := r.docs.List(ctx, repository.PageQuery{Limit: verifyPageSize, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}

		for _, doc := range page.Items {
			if _, err := r.store.Read(ctx, doc.FilePath); err != nil {
				if !errors.Is(err, storage.ErrNotFound) {
					return nil, fmt.Errorf("verify document %d: %w", doc.ID, err)
				}
				r.log.Warn("document_artifact_missing", map[string]any{
					"document_id": doc.ID,
					"po_id":       doc.POID,
					"file_path":   doc.FilePath,
				})
				missing = append(missing, MissingArtifact{
					Document: doc,
					Err:      fmt.Errorf("%w: document %d: %w", ErrArtifactMissing, doc.ID, err),
				})
			}
		}

		if len(page.Items) < verifyPageSize {
			return missing, nil
		}
	}
}
