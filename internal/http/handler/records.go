package handler

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"imagevariants/internal/service"
	"imagevariants/internal/upload"
)

// HealthCheck reports whether the database answers a ping.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if db == nil || db.PingContext(ctx) != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe always answers 200.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// ListRecords lists records of :entity with limit & offset.
func ListRecords(svc service.RecordService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.List(c.UserContext(), c.Params("entity"), limit, offset)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// CreateRecord creates a record of :entity. Multipart file parts named like an image
// attribute are uploads; other values are plain fields. A JSON object body sets fields only.
func CreateRecord(svc service.RecordService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		in, ierr := recordInput(c)
		if ierr != nil {
			return writeError(c, ierr.status, ierr.code, ierr.message)
		}
		view, err := svc.Create(c.UserContext(), c.Params("entity"), in)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(view)
	}
}

// UpdateRecord updates :id; image attributes without a new upload keep their stored file.
func UpdateRecord(svc service.RecordService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := recordID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		in, ierr := recordInput(c)
		if ierr != nil {
			return writeError(c, ierr.status, ierr.code, ierr.message)
		}
		view, err := svc.Update(c.UserContext(), c.Params("entity"), id, in)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(view)
	}
}

// GetRecord returns :id with its variant URLs.
func GetRecord(svc service.RecordService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := recordID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		view, err := svc.Get(c.UserContext(), c.Params("entity"), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(view)
	}
}

// DeleteRecord removes :id and every stored variant of its images.
func DeleteRecord(svc service.RecordService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := recordID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := svc.Delete(c.UserContext(), c.Params("entity"), id); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// EntityPaths returns the storage and URL layout of :entity.
func EntityPaths(svc service.RecordService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tree, err := svc.Paths(c.UserContext(), c.Params("entity"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(tree)
	}
}

func recordID(c *fiber.Ctx) (string, bool) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

type inputError struct {
	status        int
	code, message string
}

// recordInput reads fields and uploads from a multipart or JSON body.
func recordInput(c *fiber.Ctx) (service.RecordInput, *inputError) {
	ct := strings.ToLower(string(c.Request().Header.ContentType()))
	switch {
	case strings.HasPrefix(ct, fiber.MIMEMultipartForm):
		form, err := c.MultipartForm()
		if err != nil {
			return service.RecordInput{}, &inputError{fiber.StatusBadRequest, "INVALID_FORM", "invalid multipart form"}
		}
		fields := make(map[string]string, len(form.Value))
		for k, vs := range form.Value {
			if len(vs) > 0 {
				fields[k] = vs[0]
			}
		}
		return service.RecordInput{Fields: fields, Uploads: upload.NewForm(form)}, nil
	case strings.HasPrefix(ct, fiber.MIMEApplicationJSON):
		var fields map[string]string
		if err := c.BodyParser(&fields); err != nil {
			return service.RecordInput{}, &inputError{fiber.StatusBadRequest, "INVALID_BODY", "body must be a JSON object of strings"}
		}
		return service.RecordInput{Fields: fields}, nil
	case len(c.Body()) == 0:
		return service.RecordInput{}, nil
	default:
		return service.RecordInput{}, &inputError{fiber.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "use multipart/form-data or application/json"}
	}
}
