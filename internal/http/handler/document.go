package handler

import (
	"mime"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"podocs/internal/service"
)

const (
	// ActorHeader names the user a document is created on behalf of.
	ActorHeader = "X-Actor"

	defaultGeneratedType = "receipt"
	defaultAttachedType  = "invoice"
)

type generateRequest struct {
	DocumentType string `json:"document_type" example:"receipt"`
}

func parseID(c *fiber.Ctx, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Params(param), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ListDocuments godoc
// @Summary List documents
// @Description Pages through all purchase-order documents
// @Tags documents
// @Produce json
// @Param limit query int false "page size" default(10)
// @Param offset query int false "offset" default(0)
// @Success 200 {object} service.DocumentListResult
// @Failure 400 {object} errorPayload
// @Router /documents [get]
func ListDocuments(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := docSvc.List(c.UserContext(), limit, offset)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// ListPurchaseOrderDocuments godoc
// @Summary Documents of a purchase order
// @Description Returns a purchase order's documents, oldest first
// @Tags documents
// @Produce json
// @Param poId path int true "purchase order id"
// @Success 200 {object} service.DocumentListResult
// @Failure 400 {object} errorPayload
// @Router /purchase-orders/{poId}/documents [get]
func ListPurchaseOrderDocuments(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		poID, ok := parseID(c, "poId")
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid purchase order id")
		}
		docs, err := docSvc.GetDocumentsByPOID(c.UserContext(), poID)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(service.DocumentListResult{Items: docs, Total: len(docs)})
	}
}

// CreatePurchaseOrderDocument godoc
// @Summary Generate or attach a document
// @Description JSON bodies generate a PDF for the purchase order. Multipart bodies attach the uploaded "file".
// @Tags documents
// @Accept json,mpfd
// @Produce json
// @Param poId path int true "purchase order id"
// @Param X-Actor header string true "user the document is created for"
// @Param request body generateRequest false "generation request"
// @Param file formData file false "document to attach"
// @Param document_type formData string false "document type of the attachment"
// @Success 201 {object} model.Document
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Failure 503 {object} errorPayload
// @Router /purchase-orders/{poId}/documents [post]
func CreatePurchaseOrderDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		poID, ok := parseID(c, "poId")
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid purchase order id")
		}
		actor := strings.TrimSpace(c.Get(ActorHeader))
		if actor == "" {
			return writeError(c, fiber.StatusBadRequest, "ACTOR_REQUIRED", "X-Actor header is required")
		}

		if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
			return attach(c, docSvc, poID, actor)
		}

		var req generateRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
			}
		}
		if req.DocumentType == "" {
			req.DocumentType = defaultGeneratedType
		}

		doc, err := docSvc.GenerateForPurchaseOrder(c.UserContext(), poID, req.DocumentType, actor)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(doc)
	}
}

func attach(c *fiber.Ctx, docSvc service.DocumentService, poID int64, actor string) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
	}

	f, err := fh.Open()
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
	}
	defer f.Close()

	docType := c.FormValue("document_type", defaultAttachedType)
	doc, err := docSvc.AttachDocument(c.UserContext(), poID, fh.Filename, docType, actor, f)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(doc)
}

// GetDocument godoc
// @Summary Get document metadata
// @Tags documents
// @Produce json
// @Param id path int true "document id"
// @Success 200 {object} model.Document
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /documents/{id} [get]
func GetDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c, "id")
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		doc, err := docSvc.GetDocumentByID(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}

// DownloadDocument godoc
// @Summary Download a document
// @Description 404 when no record exists, 409 when the record exists but its file is gone
// @Tags documents
// @Produce application/pdf
// @Param id path int true "document id"
// @Success 200 {file} file
// @Failure 404 {object} errorPayload
// @Failure 409 {object} errorPayload
// @Router /documents/{id}/download [get]
func DownloadDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := parseID(c, "id")
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		doc, content, err := docSvc.OpenDocument(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}

		c.Set(fiber.HeaderContentType, contentType(doc.FileName))
		c.Set(fiber.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": doc.FileName}))
		return c.Status(fiber.StatusOK).Send(content)
	}
}

func contentType(fileName string) string {
	if strings.EqualFold(filepath.Ext(fileName), ".pdf") {
		return "application/pdf"
	}
	if ct := mime.TypeByExtension(filepath.Ext(fileName)); ct != "" {
		return ct
	}
	return fiber.MIMEOctetStream
}
