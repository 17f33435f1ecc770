package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"podocs/internal/database"
	"podocs/internal/logging"
	"podocs/internal/model"
	"podocs/internal/repository"
	repoMocks "podocs/internal/repository/mocks"
	"podocs/internal/storage"
	storeMocks "podocs/internal/storage/mocks"
)

var fixedNow = time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)

type deps struct {
	store *storeMocks.MockStore
	docs  *repoMocks.MockDocumentRepository
	pos   *repoMocks.MockPurchaseOrderRepository
	gen   *mockGenerator
}

func newDeps() deps {
	return deps{
		store: new(storeMocks.MockStore),
		docs:  new(repoMocks.MockDocumentRepository),
		pos:   new(repoMocks.MockPurchaseOrderRepository),
		gen:   new(mockGenerator),
	}
}

func (d deps) service(opts ...Option) DocumentService {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewDocumentService(d.store, d.docs, d.pos, d.gen, opts...)
}

func (d deps) assertExpectations(t *testing.T) {
	d.store.AssertExpectations(t)
	d.docs.AssertExpectations(t)
	d.pos.AssertExpectations(t)
	d.gen.AssertExpectations(t)
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, po model.PurchaseOrder, documentType string) ([]byte, error) {
	args := m.Called(ctx, po, documentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func fkViolation() error {
	return fmt.Errorf("%w: %w", database.ErrConstraintViolation, &pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"})
}

func TestDocumentService_GenerateDocument(t *testing.T) {
	po := model.PurchaseOrder{ID: 123, Number: "PO-2023-001", Status: "received"}
	pdf := []byte("%PDF-1.4 receipt")
	namePrefix := "PO-2023-001-receipt-20230102T030405.000Z-"

	tests := []struct {
		name         string
		documentType string
		actor        string
		setupMocks   func(d deps)
		wantErr      []error
		wantNotErr   []error
		check        func(t *testing.T, d deps, doc *model.Document)
	}{
		{
			name:         "happy path",
			documentType: "receipt",
			actor:        "test-user",
			setupMocks: func(d deps) {
				d.store.On("EnsureDirectory", mock.Anything).Return(nil)
				d.gen.On("Generate", mock.Anything, po, "receipt").Return(pdf, nil)
				d.store.On("Write", mock.Anything, mock.MatchedBy(func(name string) bool {
					return strings.HasPrefix(name, namePrefix) && strings.HasSuffix(name, ".pdf") && len(name) == len(namePrefix)+8+4
				}), mock.MatchedBy(func(r io.Reader) bool {
					br, ok := r.(*bytes.Reader)
					return ok && br.Size() == int64(len(pdf))
				})).Return(func(_ context.Context, name string, _ io.Reader) string {
					return "/docs/" + name
				}, nil)
				d.docs.On("Create", mock.Anything, mock.MatchedBy(func(doc *model.Document) bool {
					return doc.POID == 123 &&
						doc.DocumentType == "receipt" &&
						doc.CreatedBy == "test-user" &&
						doc.FilePath == "/docs/"+doc.FileName &&
						doc.Notes == "receipt document generated on 2023-01-02T03:04:05Z"
				})).Return(func(_ context.Context, doc *model.Document) *model.Document {
					out := *doc
					out.ID = 1
					out.CreatedAt = fixedNow
					return &out
				}, nil)
			},
			check: func(t *testing.T, d deps, doc *model.Document) {
				require.NotNil(t, doc)
				assert.Equal(t, int64(1), doc.ID)
				assert.True(t, strings.HasPrefix(doc.FileName, namePrefix))
			},
		},
		{
			name:         "validation - bad document type",
			documentType: "Receipt!",
			actor:        "test-user",
			setupMocks:   func(d deps) {},
			wantErr:      []error{ErrDocumentGenerationFailed, ErrInvalidDocumentType},
		},
		{
			name:         "validation - empty actor",
			documentType: "receipt",
			actor:        "  ",
			setupMocks:   func(d deps) {},
			wantErr:      []error{ErrDocumentGenerationFailed, ErrActorRequired},
		},
		{
			name:         "directory create error",
			documentType: "receipt",
			actor:        "test-user",
			setupMocks: func(d deps) {
				d.store.On("EnsureDirectory", mock.Anything).Return(fmt.Errorf("%w: permission denied", storage.ErrDirectoryCreate))
			},
			wantErr: []error{ErrDocumentGenerationFailed, storage.ErrDirectoryCreate},
		},
		{
			name:         "generator error",
			documentType: "receipt",
			actor:        "test-user",
			setupMocks: func(d deps) {
				d.store.On("EnsureDirectory", mock.Anything).Return(nil)
				d.gen.On("Generate", mock.Anything, po, "receipt").Return(nil, errors.New("font missing"))
			},
			wantErr: []error{ErrDocumentGenerationFailed},
		},
		{
			name:         "write error records nothing",
			documentType: "receipt",
			actor:        "test-user",
			setupMocks: func(d deps) {
				d.store.On("EnsureDirectory", mock.Anything).Return(nil)
				d.gen.On("Generate", mock.Anything, po, "receipt").Return(pdf, nil)
				d.store.On("Write", mock.Anything, mock.Anything, mock.Anything).Return("", fmt.Errorf("%w: disk full", storage.ErrWrite))
			},
			wantErr: []error{ErrDocumentGenerationFailed, storage.ErrWrite},
			check: func(t *testing.T, d deps, _ *model.Document) {
				d.docs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			},
		},
		{
			name:         "foreign key violation removes the artifact",
			documentType: "receipt",
			actor:        "test-user",
			setupMocks: func(d deps) {
				d.store.On("EnsureDirectory", mock.Anything).Return(nil)
				d.gen.On("Generate", mock.Anything, po, "receipt").Return(pdf, nil)
				d.store.On("Write", mock.Anything, mock.Anything, mock.Anything).Return("/docs/a.pdf", nil)
				d.docs.On("Create", mock.Anything, mock.Anything).Return(nil, fkViolation())
				d.store.On("Remove", mock.Anything, "/docs/a.pdf").Return(nil)
			},
			wantErr: []error{ErrDocumentGenerationFailed, database.ErrConstraintViolation},
		},
		{
			name:         "foreign key violation with failed removal",
			documentType: "receipt",
			actor:        "test-user",
			setupMocks: func(d deps) {
				d.store.On("EnsureDirectory", mock.Anything).Return(nil)
				d.gen.On("Generate", mock.Anything, po, "receipt").Return(pdf, nil)
				d.store.On("Write", mock.Anything, mock.Anything, mock.Anything).Return("/docs/a.pdf", nil)
				d.docs.On("Create", mock.Anything, mock.Anything).Return(nil, fkViolation())
				d.store.On("Remove", mock.Anything, "/docs/a.pdf").Return(errors.New("busy"))
			},
			wantErr: []error{ErrDocumentGenerationFailed, database.ErrConstraintViolation},
		},
		{
			name:         "exhausted retries leave the artifact",
			documentType: "invoice",
			actor:        "test-user",
			setupMocks: func(d deps) {
				d.store.On("EnsureDirectory", mock.Anything).Return(nil)
				d.gen.On("Generate", mock.Anything, po, "invoice").Return(pdf, nil)
				d.store.On("Write", mock.Anything, mock.Anything, mock.Anything).Return("/docs/b.pdf", nil)
				d.docs.On("Create", mock.Anything, mock.Anything).
					Return(nil, fmt.Errorf("%w after 3 attempts: %w", database.ErrRetriesExhausted, &pgconn.PgError{Code: "08006"}))
			},
			wantErr:    []error{ErrDocumentGenerationFailed, database.ErrRetriesExhausted},
			wantNotErr: []error{database.ErrConstraintViolation},
			check: func(t *testing.T, d deps, _ *model.Document) {
				d.store.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDeps()
			tt.setupMocks(d)

			doc, err := d.service().GenerateDocument(context.Background(), po, tt.documentType, tt.actor)

			if len(tt.wantErr) > 0 {
				require.Error(t, err)
				assert.Nil(t, doc)
				for _, target := range tt.wantErr {
					assert.ErrorIs(t, err, target)
				}
				assert.Contains(t, err.Error(), "failed to generate document")
			} else {
				assert.NoError(t, err)
			}
			for _, target := range tt.wantNotErr {
				assert.NotErrorIs(t, err, target)
			}
			if tt.check != nil {
				tt.check(t, d, doc)
			}
			d.assertExpectations(t)
		})
	}
}

func TestDocumentService_GenerateMetricsAndLogs(t *testing.T) {
	d := newDeps()
	metrics, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	var logs bytes.Buffer

	po := model.PurchaseOrder{ID: 123, Number: "PO-2023-001"}
	d.store.On("EnsureDirectory", mock.Anything).Return(nil)
	d.gen.On("Generate", mock.Anything, po, "receipt").Return([]byte("pdf"), nil)
	d.store.On("Write", mock.Anything, mock.Anything, mock.Anything).Return("/docs/a.pdf", nil).Once()
	d.docs.On("Create", mock.Anything, mock.Anything).Return(&model.Document{ID: 1}, nil).Once()
	d.store.On("Write", mock.Anything, mock.Anything, mock.Anything).Return("/docs/b.pdf", nil).Once()
	d.docs.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("boom")).Once()

	svc := d.service(WithMetrics(metrics), WithLogger(logging.New(&logs, time.UTC)))

	_, err = svc.GenerateDocument(context.Background(), po, "receipt", "test-user")
	require.NoError(t, err)
	_, err = svc.GenerateDocument(context.Background(), po, "receipt", "test-user")
	require.Error(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.generations.WithLabelValues("generated")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.generations.WithLabelValues("failed")))
	assert.Contains(t, logs.String(), `"event":"document_generated"`)
	assert.Contains(t, logs.String(), `"event":"document_generation_failed"`)
	assert.Contains(t, logs.String(), `"event":"document_artifact_orphaned"`)
	assert.Contains(t, logs.String(), `"file_path":"/docs/b.pdf"`)
}

func TestDocumentService_GenerateForPurchaseOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("loads the purchase order", func(t *testing.T) {
		d := newDeps()
		po := &model.PurchaseOrder{ID: 123, Number: "PO-2023-001", Status: "received"}
		d.pos.On("FindByID", ctx, int64(123)).Return(po, nil)
		d.store.On("EnsureDirectory", mock.Anything).Return(nil)
		d.gen.On("Generate", mock.Anything, *po, "receipt").Return([]byte("pdf"), nil)
		d.store.On("Write", mock.Anything, mock.Anything, mock.Anything).Return("/docs/a.pdf", nil)
		d.docs.On("Create", mock.Anything, mock.Anything).Return(&model.Document{ID: 9, POID: 123}, nil)

		doc, err := d.service().GenerateForPurchaseOrder(ctx, 123, "receipt", "test-user")
		require.NoError(t, err)
		assert.Equal(t, int64(9), doc.ID)
		d.assertExpectations(t)
	})

	t.Run("unknown purchase order writes nothing", func(t *testing.T) {
		d := newDeps()
		d.pos.On("FindByID", ctx, int64(99999)).Return(nil, fmt.Errorf("%w: purchase order 99999", repository.ErrNotFound))

		_, err := d.service().GenerateForPurchaseOrder(ctx, 99999, "receipt", "test-user")
		assert.ErrorIs(t, err, ErrDocumentGenerationFailed)
		assert.ErrorIs(t, err, ErrPurchaseOrderNotFound)
		d.store.AssertNotCalled(t, "Write", mock.Anything, mock.Anything, mock.Anything)
		d.assertExpectations(t)
	})

	t.Run("lookup error", func(t *testing.T) {
		d := newDeps()
		d.pos.On("FindByID", ctx, int64(5)).Return(nil, errors.New("db fail"))

		_, err := d.service().GenerateForPurchaseOrder(ctx, 5, "receipt", "test-user")
		assert.ErrorIs(t, err, ErrDocumentGenerationFailed)
		assert.NotErrorIs(t, err, ErrPurchaseOrderNotFound)
	})

	t.Run("validation runs before lookup", func(t *testing.T) {
		d := newDeps()
		_, err := d.service().GenerateForPurchaseOrder(ctx, 0, "receipt", "test-user")
		assert.ErrorIs(t, err, ErrIDRequired)
		d.pos.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})
}

func TestDocumentService_AttachDocument(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		d := newDeps()
		r := strings.NewReader("quote bytes")
		d.store.On("EnsureDirectory", mock.Anything).Return(nil)
		d.store.On("Write", mock.Anything, mock.MatchedBy(func(name string) bool {
			return strings.HasPrefix(name, "PO-123-supplier_quote-20230102T030405.000Z-") && strings.HasSuffix(name, ".pdf")
		}), r).Return("/docs/stored.pdf", nil)
		d.docs.On("Create", mock.Anything, mock.MatchedBy(func(doc *model.Document) bool {
			return doc.FileName == "Quote-final.PDF" && doc.FilePath == "/docs/stored.pdf" && doc.Notes == ""
		})).Return(&model.Document{ID: 3}, nil)

		doc, err := d.service().AttachDocument(ctx, 123, `C:\Users\me\Quote final.PDF`, "supplier_quote", "buyer", r)
		require.NoError(t, err)
		assert.Equal(t, int64(3), doc.ID)
		d.assertExpectations(t)
	})

	t.Run("nil reader", func(t *testing.T) {
		d := newDeps()
		_, err := d.service().AttachDocument(ctx, 123, "a.pdf", "receipt", "buyer", nil)
		assert.ErrorIs(t, err, ErrReaderNil)
		assert.ErrorIs(t, err, ErrDocumentGenerationFailed)
	})

	t.Run("foreign key violation removes upload", func(t *testing.T) {
		d := newDeps()
		d.store.On("EnsureDirectory", mock.Anything).Return(nil)
		d.store.On("Write", mock.Anything, mock.Anything, mock.Anything).Return("/docs/x.pdf", nil)
		d.docs.On("Create", mock.Anything, mock.Anything).Return(nil, fkViolation())
		d.store.On("Remove", mock.Anything, "/docs/x.pdf").Return(nil)

		_, err := d.service().AttachDocument(ctx, 99999, "x.pdf", "receipt", "buyer", strings.NewReader("x"))
		assert.ErrorIs(t, err, database.ErrConstraintViolation)
		d.assertExpectations(t)
	})
}

func TestDocumentService_GetDocumentByID(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		id         int64
		setupMocks func(mRepo *repoMocks.MockDocumentRepository)
		wantErr    error
	}{
		{
			name: "happy path",
			id:   1,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, int64(1)).Return(&model.Document{ID: 1}, nil)
			},
		},
		{
			name:       "validation - zero id",
			id:         0,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {},
			wantErr:    ErrIDRequired,
		},
		{
			name: "not found - mapping repository.ErrNotFound",
			id:   404,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, int64(404)).Return(nil, fmt.Errorf("%w: document 404", repository.ErrNotFound))
			},
			wantErr: ErrDocumentNotFound,
		},
		{
			name: "generic repository error",
			id:   500,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, int64(500)).Return(nil, database.ErrRetriesExhausted)
			},
			wantErr: database.ErrRetriesExhausted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDeps()
			tt.setupMocks(d.docs)

			doc, err := d.service().GetDocumentByID(ctx, tt.id)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, doc)
			} else {
				assert.NoError(t, err)
				require.NotNil(t, doc)
				assert.Equal(t, tt.id, doc.ID)
			}
			d.docs.AssertExpectations(t)
		})
	}
}

func TestDocumentService_GetDocumentContent(t *testing.T) {
	ctx := context.Background()
	record := &model.Document{ID: 1, POID: 123, FilePath: "/docs/a.pdf"}

	tests := []struct {
		name       string
		setupMocks func(d deps)
		want       []byte
		wantErr    error
		wantNotErr error
	}{
		{
			name: "happy path",
			setupMocks: func(d deps) {
				d.docs.On("FindByID", mock.Anything, int64(1)).Return(record, nil)
				d.store.On("Read", mock.Anything, "/docs/a.pdf").Return([]byte("%PDF"), nil)
			},
			want: []byte("%PDF"),
		},
		{
			name: "record missing",
			setupMocks: func(d deps) {
				d.docs.On("FindByID", mock.Anything, int64(1)).Return(nil, repository.ErrNotFound)
			},
			wantErr:    ErrDocumentNotFound,
			wantNotErr: ErrArtifactMissing,
		},
		{
			name: "artifact missing",
			setupMocks: func(d deps) {
				d.docs.On("FindByID", mock.Anything, int64(1)).Return(record, nil)
				d.store.On("Read", mock.Anything, "/docs/a.pdf").Return(nil, fmt.Errorf("%w: /docs/a.pdf", storage.ErrNotFound))
			},
			wantErr:    ErrArtifactMissing,
			wantNotErr: ErrDocumentNotFound,
		},
		{
			name: "read error",
			setupMocks: func(d deps) {
				d.docs.On("FindByID", mock.Anything, int64(1)).Return(record, nil)
				d.store.On("Read", mock.Anything, "/docs/a.pdf").Return(nil, fmt.Errorf("%w: /docs/a.pdf: EIO", storage.ErrRead))
			},
			wantErr:    storage.ErrRead,
			wantNotErr: ErrArtifactMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDeps()
			tt.setupMocks(d)

			got, err := d.service().GetDocumentContent(ctx, 1)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.NotErrorIs(t, err, tt.wantNotErr)
				assert.Nil(t, got)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			d.assertExpectations(t)
		})
	}
}

func TestDocumentService_GetDocumentsByPOID(t *testing.T) {
	ctx := context.Background()

	d := newDeps()
	d.docs.On("ListByPOID", ctx, int64(123)).Return([]model.Document{{ID: 1}, {ID: 2}}, nil)
	d.docs.On("ListByPOID", ctx, int64(124)).Return([]model.Document{}, nil)
	d.docs.On("ListByPOID", ctx, int64(125)).Return(nil, errors.New("db fail"))
	svc := d.service()

	docs, err := svc.GetDocumentsByPOID(ctx, 123)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = svc.GetDocumentsByPOID(ctx, 124)
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, err = svc.GetDocumentsByPOID(ctx, 125)
	assert.ErrorContains(t, err, "db fail")

	_, err = svc.GetDocumentsByPOID(ctx, 0)
	assert.ErrorIs(t, err, ErrIDRequired)
	d.assertExpectations(t)
}

func TestDocumentService_List(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		limit      int
		offset     int
		setupMocks func(mRepo *repoMocks.MockDocumentRepository)
		wantErr    error
		checkRes   func(t *testing.T, res *DocumentListResult)
	}{
		{
			name:   "happy path",
			limit:  10,
			offset: 0,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("List", ctx, repository.PageQuery{Limit: 10, Offset: 0}).
					Return(&repository.PageResult[model.Document]{
						Items: []model.Document{{ID: 1}, {ID: 2}},
						Total: 2,
					}, nil)
			},
			checkRes: func(t *testing.T, res *DocumentListResult) {
				assert.Equal(t, 2, len(res.Items))
				assert.Equal(t, 2, res.Total)
			},
		},
		{
			name:   "pagination boundary - zero limit uses default",
			limit:  0,
			offset: -1,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("List", ctx, repository.PageQuery{Limit: 10, Offset: 0}).
					Return(&repository.PageResult[model.Document]{Items: []model.Document{}, Total: 0}, nil)
			},
		},
		{
			name:  "repository error",
			limit: 10,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("List", ctx, mock.Anything).Return(nil, errors.New("db fail"))
			},
			wantErr: errors.New("db fail"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDeps()
			tt.setupMocks(d.docs)

			res, err := d.service().List(ctx, tt.limit, tt.offset)

			if tt.wantErr != nil {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				if tt.checkRes != nil {
					tt.checkRes(t, res)
				}
			}
			d.docs.AssertExpectations(t)
		})
	}
}
