package handler

import (
	"database/sql"
	"os"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/swag"

	"imagevariants/internal/service"
)

const docsPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Image Variants API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`

// Options configure RegisterRoutes.
type Options struct {
	// OpenAPIFile is served at /openapi.yaml.
	OpenAPIFile string
	// Gatherer backs /metrics; nil leaves the endpoint out.
	Gatherer prometheus.Gatherer
}

// openAPIDoc serves the checked-in OpenAPI file as the swag document read by /swagger/doc.json.
type openAPIDoc struct{ path string }

func (d openAPIDoc) ReadDoc() string {
	b, err := os.ReadFile(d.path)
	if err != nil {
		log.Errorf("read %s: %v", d.path, err)
		return ""
	}
	return string(b)
}

// swag keeps a process-wide registry that panics on duplicates.
var registerDoc sync.Once

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, db *sql.DB, svc service.RecordService, opts Options) {
	if opts.OpenAPIFile == "" {
		opts.OpenAPIFile = "openapi.yaml"
	}
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile(opts.OpenAPIFile)
	})
	app.Get("/docs", func(c *fiber.Ctx) error {
		return c.Type("html").SendString(docsPage)
	})
	registerDoc.Do(func() {
		swag.Register(swag.Name, openAPIDoc{path: opts.OpenAPIFile})
	})
	app.Get("/swagger/*", swagger.HandlerDefault)

	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())
	if opts.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	records := app.Group("/records/:entity")
	records.Get("/", ListRecords(svc))
	records.Post("/", CreateRecord(svc))
	records.Get("/:id", GetRecord(svc))
	records.Put("/:id", UpdateRecord(svc))
	records.Delete("/:id", DeleteRecord(svc))

	app.Get("/entities/:entity/paths", EntityPaths(svc))
}
