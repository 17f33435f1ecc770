package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"podocs/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, db HealthChecker, docSvc service.DocumentService, g prometheus.Gatherer) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())
	app.Get("/metrics", Metrics(g))

	po := app.Group("/purchase-orders")
	po.Get("/:poId/documents", ListPurchaseOrderDocuments(docSvc))
	po.Post("/:poId/documents", CreatePurchaseOrderDocument(docSvc))

	docs := app.Group("/documents")
	docs.Get("/", ListDocuments(docSvc))
	docs.Get("/:id", GetDocument(docSvc))
	docs.Get("/:id/download", DownloadDocument(docSvc))
}
