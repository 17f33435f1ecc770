package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"podocs/internal/database"
	"podocs/internal/logging"
	"podocs/internal/model"
	"podocs/internal/repository"
	"podocs/internal/storage"
)

var (
	ErrIDRequired               = errors.New("id is required")
	ErrActorRequired            = errors.New("actor is required")
	ErrInvalidDocumentType      = errors.New("document type must match [a-z_]+")
	ErrReaderNil                = errors.New("reader is nil")
	ErrDocumentNotFound         = errors.New("document not found")
	ErrPurchaseOrderNotFound    = errors.New("purchase order not found")
	ErrArtifactMissing          = errors.New("document artifact missing")
	ErrDocumentGenerationFailed = errors.New("failed to generate document")
)

var documentTypePattern = regexp.MustCompile(`^[a-z][a-z_]*$`)

// Generator renders the artifact for a purchase order.
type Generator interface {
	Generate(ctx context.Context, po model.PurchaseOrder, documentType string) ([]byte, error)
}

// DocumentListResult is the service-level DTO for paginated documents.
type DocumentListResult struct {
	Items []model.Document `json:"data"`
	Total int              `json:"total"`
}

// DocumentService defines the use cases for purchase-order documents.
type DocumentService interface {
	// GenerateDocument renders po, writes the artifact and then records it.
	// The artifact is always written before the row, so a failure in between
	// leaves at worst an unreferenced file, never a record without one.
	GenerateDocument(ctx context.Context, po model.PurchaseOrder, documentType, actor string) (*model.Document, error)

	// GenerateForPurchaseOrder loads the purchase order and generates from it.
	GenerateForPurchaseOrder(ctx context.Context, poID int64, documentType, actor string) (*model.Document, error)

	// AttachDocument stores caller-supplied bytes with the same ordering as
	// GenerateDocument.
	AttachDocument(ctx context.Context, poID int64, fileName, documentType, actor string, r io.Reader) (*model.Document, error)

	// GetDocumentsByPOID returns a purchase order's documents oldest first.
	GetDocumentsByPOID(ctx context.Context, poID int64) ([]model.Document, error)

	// GetDocumentByID returns one record or ErrDocumentNotFound.
	GetDocumentByID(ctx context.Context, id int64) (*model.Document, error)

	// GetDocumentContent returns the artifact bytes of a record.
	// ErrArtifactMissing means the record exists but its file does not.
	GetDocumentContent(ctx context.Context, id int64) ([]byte, error)

	// OpenDocument returns a record together with its artifact bytes.
	OpenDocument(ctx context.Context, id int64) (*model.Document, []byte, error)

	// List returns documents using limit/offset and a total count.
	List(ctx context.Context, limit, offset int) (*DocumentListResult, error)
}

// Option configures the document service.
type Option func(*documentService)

// WithLogger sets the service logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *documentService) {
		if l != nil {
			s.log = l.With("document_service")
		}
	}
}

// WithMetrics attaches prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(s *documentService) { s.metrics = m }
}

// WithClock replaces time.Now for file names and notes.
func WithClock(now func() time.Time) Option {
	return func(s *documentService) { s.now = now }
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	store   storage.Store
	docs    repository.DocumentRepository
	pos     repository.PurchaseOrderRepository
	gen     Generator
	log     *logging.Logger
	metrics *Metrics
	now     func() time.Time
	tracer  trace.Tracer
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(
	store storage.Store,
	docs repository.DocumentRepository,
	pos repository.PurchaseOrderRepository,
	gen Generator,
	opts ...Option,
) DocumentService {
	s := &documentService{
		store:  store,
		docs:   docs,
		pos:    pos,
		gen:    gen,
		log:    logging.Discard(),
		now:    time.Now,
		tracer: otel.Tracer("podocs/internal/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *documentService) GenerateDocument(ctx context.Context, po model.PurchaseOrder, documentType, actor string) (doc *model.Document, err error) {
	ctx, span := s.tracer.Start(ctx, "DocumentService.GenerateDocument", trace.WithAttributes(
		attribute.Int64("po.id", po.ID),
		attribute.String("document.type", documentType),
	))
	defer func() { s.endGeneration(span, "generated", po.ID, documentType, err) }()

	if err := validate(po.ID, documentType, actor); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDocumentGenerationFailed, err)
	}

	if err := s.store.EnsureDirectory(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDocumentGenerationFailed, err)
	}

	content, err := s.gen.Generate(ctx, po, documentType)
	if err != nil {
		return nil, fmt.Errorf("%w: render: %w", ErrDocumentGenerationFailed, err)
	}

	now := s.now().UTC()
	name := FileName(po.Number, documentType, now)
	return s.persist(ctx, &model.Document{
		POID:         po.ID,
		FileName:     name,
		DocumentType: documentType,
		CreatedBy:    strings.TrimSpace(actor),
		Notes:        fmt.Sprintf("%s document generated on %s", documentType, now.Format(time.RFC3339)),
	}, name, bytes.NewReader(content))
}

func (s *documentService) GenerateForPurchaseOrder(ctx context.Context, poID int64, documentType, actor string) (*model.Document, error) {
	if err := validate(poID, documentType, actor); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDocumentGenerationFailed, err)
	}
	po, err := s.pos.FindByID(ctx, poID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w: %d", ErrDocumentGenerationFailed, ErrPurchaseOrderNotFound, poID)
		}
		return nil, fmt.Errorf("%w: load purchase order %d: %w", ErrDocumentGenerationFailed, poID, err)
	}
	return s.GenerateDocument(ctx, *po, documentType, actor)
}

func (s *documentService) AttachDocument(ctx context.Context, poID int64, fileName, documentType, actor string, r io.Reader) (doc *model.Document, err error) {
	ctx, span := s.tracer.Start(ctx, "DocumentService.AttachDocument", trace.WithAttributes(
		attribute.Int64("po.id", poID),
		attribute.String("document.type", documentType),
	))
	defer func() { s.endGeneration(span, "attached", poID, documentType, err) }()

	if r == nil {
		return nil, fmt.Errorf("%w: %w", ErrDocumentGenerationFailed, ErrReaderNil)
	}
	if err := validate(poID, documentType, actor); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDocumentGenerationFailed, err)
	}
	if err := s.store.EnsureDirectory(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDocumentGenerationFailed, err)
	}

	now := s.now().UTC()
	display := DisplayName(fileName)
	stored := StoredName(poID, documentType, display, now)
	if display == "" {
		display = stored
	}

	return s.persist(ctx, &model.Document{
		POID:         poID,
		FileName:     display,
		DocumentType: documentType,
		CreatedBy:    strings.TrimSpace(actor),
	}, stored, r)
}

// persist writes the artifact and then inserts its record. When the insert
// provably created no row the artifact is removed again; otherwise it is left
// for the reconciler.
func (s *documentService) persist(ctx context.Context, doc *model.Document, name string, r io.Reader) (*model.Document, error) {
	path, err := s.store.Write(ctx, name, r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDocumentGenerationFailed, err)
	}
	doc.FilePath = path

	stored, err := s.docs.Create(ctx, doc)
	if err != nil {
		s.compensate(ctx, path, err)
		return nil, fmt.Errorf("%w: record %s: %w", ErrDocumentGenerationFailed, doc.FileName, err)
	}
	return stored, nil
}

func (s *documentService) compensate(ctx context.Context, path string, cause error) {
	if !database.IsForeignKeyViolation(cause) {
		s.log.Warn("document_artifact_orphaned", map[string]any{
			"file_path":     path,
			"error_message": cause.Error(),
		})
		return
	}

	if err := s.store.Remove(context.WithoutCancel(ctx), path); err != nil {
		s.log.Error("document_compensation_failed", err, map[string]any{"file_path": path})
		return
	}
	s.log.Info("document_artifact_removed", map[string]any{"file_path": path})
}

func (s *documentService) endGeneration(span trace.Span, outcome string, poID int64, documentType string, err error) {
	defer span.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrDocumentGenerationFailed.Error())
		s.metrics.incGeneration("failed")
		s.log.Error("document_generation_failed", err, map[string]any{
			"po_id":         poID,
			"document_type": documentType,
		})
		return
	}
	s.metrics.incGeneration(outcome)
	s.log.Info("document_"+outcome, map[string]any{
		"po_id":         poID,
		"document_type": documentType,
	})
}

func (s *documentService) GetDocumentsByPOID(ctx context.Context, poID int64) ([]model.Document, error) {
	if poID <= 0 {
		return nil, ErrIDRequired
	}
	docs, err := s.docs.ListByPOID(ctx, poID)
	if err != nil {
		return nil, fmt.Errorf("list documents of purchase order %d: %w", poID, err)
	}
	return docs, nil
}

// GetDocumentByID returns a document by ID.
func (s *documentService) GetDocumentByID(ctx context.Context, id int64) (*model.Document, error) {
	if id <= 0 {
		return nil, ErrIDRequired
	}
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrDocumentNotFound, id)
		}
		return nil, fmt.Errorf("get document %d: %w", id, err)
	}
	return doc, nil
}

func (s *documentService) GetDocumentContent(ctx context.Context, id int64) ([]byte, error) {
	_, content, err := s.OpenDocument(ctx, id)
	return content, err
}

func (s *documentService) OpenDocument(ctx context.Context, id int64) (*model.Document, []byte, error) {
	ctx, span := s.tracer.Start(ctx, "DocumentService.OpenDocument", trace.WithAttributes(attribute.Int64("document.id", id)))
	defer span.End()

	doc, err := s.GetDocumentByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	content, err := s.store.Read(ctx, doc.FilePath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "artifact read failed")
		if errors.Is(err, storage.ErrNotFound) {
			s.log.Error("document_artifact_missing", err, map[string]any{
				"document_id": id,
				"po_id":       doc.POID,
				"file_path":   doc.FilePath,
			})
			return nil, nil, fmt.Errorf("%w: document %d: %w", ErrArtifactMissing, id, err)
		}
		return nil, nil, fmt.Errorf("read document %d: %w", id, err)
	}
	return doc, content, nil
}

// List returns paginated documents without exposing repository types.
func (s *documentService) List(ctx context.Context, limit, offset int) (*DocumentListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.docs.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{Items: res.Items, Total: res.Total}, nil
}

func validate(poID int64, documentType, actor string) error {
	switch {
	case poID <= 0:
		return ErrIDRequired
	case !documentTypePattern.MatchString(documentType):
		return fmt.Errorf("%w: %q", ErrInvalidDocumentType, documentType)
	case strings.TrimSpace(actor) == "":
		return ErrActorRequired
	}
	return nil
}
