package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/pybroo/pybroo/internal/catalog"
	"github.com/pybroo/pybroo/internal/models"
	"github.com/pybroo/pybroo/internal/service"
	"github.com/pybroo/pybroo/pkg/response"
)

const topContributorCount = 8

type CatalogHandler struct {
	app *service.App
}

func NewCatalogHandler(app *service.App) *CatalogHandler {
	return &CatalogHandler{app: app}
}

// Upload adds a resource to the catalog, authored by the signed-in user.
func (h *CatalogHandler) Upload(c *fiber.Ctx) error {
	var draft catalog.ResourceDraft
	if err := c.BodyParser(&draft); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	resource, err := h.app.Upload(draft)
	if err != nil {
		return translateError(c, err)
	}

	RecordUpload()
	return response.Success(c, resource)
}

// Query returns one filtered, sorted, paged view of the catalog.
// Query parameters: q, category, sort, page.
func (h *CatalogHandler) Query(c *fiber.Ctx) error {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil {
		page = 1
	}

	q := models.CatalogQuery{
		SearchText: c.Query("q"),
		CategoryID: c.Query("category"),
		SortKey:    c.Query("sort", catalog.SortUpdated),
		PageNumber: page,
	}

	return response.Success(c, h.app.QueryCatalog(q))
}

// Download runs the authorization gate for a resource and, on approval,
// consumes one unit of quota and returns the download link.
func (h *CatalogHandler) Download(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return response.BadRequest(c, "invalid resource id")
	}

	result, err := h.app.Download(id)
	if err != nil {
		return translateError(c, err)
	}

	if !result.Decision.Approved {
		RecordDownloadDenied(string(result.Decision.Reason))
		status := fiber.StatusForbidden
		message := "download denied"
		switch result.Decision.Reason {
		case catalog.ReasonNotAuthenticated:
			status = fiber.StatusUnauthorized
			message = "please login to download resources"
		case catalog.ReasonNoDownloadLink:
			status = fiber.StatusConflict
			message = "download link not available for this resource"
		case catalog.ReasonQuotaExceeded:
			message = "download limit reached, please upgrade your level"
		}
		return response.Denied(c, status, message, string(result.Decision.Reason))
	}

	RecordDownloadApproved()
	return response.Success(c, fiber.Map{
		"download_link": result.Resource.DownloadLink,
		"title":         result.Resource.Title,
		"remaining":     result.User.Remaining(),
	})
}

// CreateRequest files a resource request for the signed-in user.
func (h *CatalogHandler) CreateRequest(c *fiber.Ctx) error {
	var draft catalog.RequestDraft
	if err := c.BodyParser(&draft); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	request, err := h.app.Request(draft)
	if err != nil {
		return translateError(c, err)
	}

	RecordRequestFiled()
	return response.Success(c, request)
}

// ListRequests returns all request tickets, newest first.
func (h *CatalogHandler) ListRequests(c *fiber.Ctx) error {
	return response.Success(c, h.app.Requests())
}

// Categories returns the fixed category set with per-category counts.
func (h *CatalogHandler) Categories(c *fiber.Ctx) error {
	return response.Success(c, h.app.CategoryCounts())
}

// Contributors returns the top uploaders, by resource count.
func (h *CatalogHandler) Contributors(c *fiber.Ctx) error {
	return response.Success(c, h.app.TopContributors(topContributorCount))
}
