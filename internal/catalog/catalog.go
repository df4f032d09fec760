package catalog

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pybroo/pybroo/internal/models"
	"github.com/pybroo/pybroo/internal/store"
	"github.com/pybroo/pybroo/pkg/logger"
	"github.com/pybroo/pybroo/pkg/sanitize"
)

const (
	minTitleLen       = 5
	minDescriptionLen = 20
	maxTitleLen       = 200
	maxDescriptionLen = 5000
	maxLogoBytes      = 5 * 1024 * 1024
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrUnknownResource = errors.New("resource not found")
)

// Catalog exclusively owns the uploaded resources and request tickets.
// Collections are kept newest-first; every mutation persists the full
// collection before the in-memory copy is swapped, so a storage failure
// never leaves a half-applied mutation. Callers serialize access.
type Catalog struct {
	store *store.Store
	now   func() time.Time

	resources []models.Resource
	requests  []models.Request
	lastID    int64
}

func New(st *store.Store, now func() time.Time) *Catalog {
	if now == nil {
		now = time.Now
	}
	return &Catalog{store: st, now: now}
}

// LoadPersisted restores both collections from the store. Corrupt values
// are logged and replaced with empty collections.
func (c *Catalog) LoadPersisted() error {
	var resources []models.Resource
	found, err := c.store.Load(store.KeyResources, &resources)
	if err != nil {
		if !errors.Is(err, store.ErrCorruptState) {
			return err
		}
		logger.Warn().Err(err).Msg("Discarding corrupt persisted resources")
	} else if found {
		c.resources = resources
	}

	var requests []models.Request
	found, err = c.store.Load(store.KeyRequests, &requests)
	if err != nil {
		if !errors.Is(err, store.ErrCorruptState) {
			return err
		}
		logger.Warn().Err(err).Msg("Discarding corrupt persisted requests")
	} else if found {
		c.requests = requests
	}

	for _, r := range c.resources {
		if r.ID > c.lastID {
			c.lastID = r.ID
		}
	}
	for _, r := range c.requests {
		if r.ID > c.lastID {
			c.lastID = r.ID
		}
	}
	return nil
}

// Resources returns the resource collection, newest first.
func (c *Catalog) Resources() []models.Resource {
	out := make([]models.Resource, len(c.resources))
	copy(out, c.resources)
	return out
}

// Requests returns the request collection, newest first.
func (c *Catalog) Requests() []models.Request {
	out := make([]models.Request, len(c.requests))
	copy(out, c.requests)
	return out
}

// ResourceByID looks a resource up by its id.
func (c *Catalog) ResourceByID(id int64) (models.Resource, error) {
	for _, r := range c.resources {
		if r.ID == id {
			return r, nil
		}
	}
	return models.Resource{}, ErrUnknownResource
}

type ResourceDraft struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	CategoryID   string `json:"category_id"`
	DownloadLink string `json:"download_link"`
	Logo         string `json:"logo,omitempty"`
}

// AddResource validates the draft and prepends the new resource to the
// collection. The author is the uploader's username; checking that a user
// is signed in at all is the orchestrator's job.
func (c *Catalog) AddResource(draft ResourceDraft, author string) (models.Resource, error) {
	title := sanitize.Text(draft.Title, maxTitleLen)
	if title == "" {
		return models.Resource{}, fmt.Errorf("%w: resource title is required", ErrValidation)
	}
	if len(title) < minTitleLen {
		return models.Resource{}, fmt.Errorf("%w: title must be at least %d characters", ErrValidation, minTitleLen)
	}

	description := sanitize.Multiline(draft.Description, maxDescriptionLen)
	if description == "" {
		return models.Resource{}, fmt.Errorf("%w: resource description is required", ErrValidation)
	}
	if len(description) < minDescriptionLen {
		return models.Resource{}, fmt.Errorf("%w: description must be at least %d characters", ErrValidation, minDescriptionLen)
	}

	if draft.CategoryID == "" {
		return models.Resource{}, fmt.Errorf("%w: please select a category", ErrValidation)
	}
	if !models.ValidCategory(draft.CategoryID) {
		return models.Resource{}, fmt.Errorf("%w: unknown category %q", ErrValidation, draft.CategoryID)
	}

	link := strings.TrimSpace(draft.DownloadLink)
	if link == "" {
		return models.Resource{}, fmt.Errorf("%w: download link is required", ErrValidation)
	}
	if !isValidDownloadURL(link) {
		return models.Resource{}, fmt.Errorf("%w: download link must be a valid URL", ErrValidation)
	}

	logo := strings.TrimSpace(draft.Logo)
	if logo != "" {
		if err := validateLogo(logo); err != nil {
			return models.Resource{}, err
		}
	}

	now := c.now()
	resource := models.Resource{
		ID:               c.nextID(now),
		Title:            title,
		Description:      description,
		Author:           author,
		CategoryID:       draft.CategoryID,
		Date:             now,
		UpdatedTimestamp: now.UnixMilli(),
		Rating:           0,
		RatingsCount:     0,
		DownloadLink:     link,
		Logo:             logo,
	}

	updated := make([]models.Resource, 0, len(c.resources)+1)
	updated = append(updated, resource)
	updated = append(updated, c.resources...)

	if err := c.store.Save(store.KeyResources, updated); err != nil {
		return models.Resource{}, err
	}
	c.resources = updated

	return resource, nil
}

type RequestDraft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	CategoryID  string `json:"category_id"`
	Urgency     string `json:"urgency"`
}

// AddRequest validates the draft and prepends the new request ticket.
func (c *Catalog) AddRequest(draft RequestDraft, requester string) (models.Request, error) {
	title := sanitize.Text(draft.Title, maxTitleLen)
	if title == "" {
		return models.Request{}, fmt.Errorf("%w: request title is required", ErrValidation)
	}
	if len(title) < minTitleLen {
		return models.Request{}, fmt.Errorf("%w: title must be at least %d characters", ErrValidation, minTitleLen)
	}

	description := sanitize.Multiline(draft.Description, maxDescriptionLen)
	if description == "" {
		return models.Request{}, fmt.Errorf("%w: request description is required", ErrValidation)
	}
	if len(description) < minDescriptionLen {
		return models.Request{}, fmt.Errorf("%w: description must be at least %d characters", ErrValidation, minDescriptionLen)
	}

	if draft.CategoryID == "" {
		return models.Request{}, fmt.Errorf("%w: please select a category", ErrValidation)
	}
	if !models.ValidCategory(draft.CategoryID) {
		return models.Request{}, fmt.Errorf("%w: unknown category %q", ErrValidation, draft.CategoryID)
	}

	urgency := draft.Urgency
	if urgency == "" {
		urgency = models.UrgencyNormal
	}
	switch urgency {
	case models.UrgencyLow, models.UrgencyNormal, models.UrgencyHigh:
	default:
		return models.Request{}, fmt.Errorf("%w: unknown urgency %q", ErrValidation, draft.Urgency)
	}

	now := c.now()
	request := models.Request{
		ID:          c.nextID(now),
		Title:       title,
		Description: description,
		CategoryID:  draft.CategoryID,
		Urgency:     urgency,
		Requester:   requester,
		Date:        now,
		Status:      models.RequestStatusOpen,
		Votes:       0,
	}

	updated := make([]models.Request, 0, len(c.requests)+1)
	updated = append(updated, request)
	updated = append(updated, c.requests...)

	if err := c.store.Save(store.KeyRequests, updated); err != nil {
		return models.Request{}, err
	}
	c.requests = updated

	return request, nil
}

// Reset drops both session-scoped collections and their persisted keys.
// Invoked by the orchestrator on logout.
func (c *Catalog) Reset() error {
	if err := c.store.Clear(store.KeyResources); err != nil {
		return err
	}
	if err := c.store.Clear(store.KeyRequests); err != nil {
		return err
	}
	c.resources = nil
	c.requests = nil
	return nil
}

// CategoryCounts tallies resources per fixed category, in catalog order.
func (c *Catalog) CategoryCounts() []models.CategoryCount {
	counts := make(map[string]int, len(models.Categories))
	for _, r := range c.resources {
		counts[r.CategoryID]++
	}

	out := make([]models.CategoryCount, 0, len(models.Categories))
	for _, cat := range models.Categories {
		out = append(out, models.CategoryCount{Category: cat, Count: counts[cat.ID]})
	}
	return out
}

// TopContributors ranks authors by upload count, descending. Ties keep the
// order in which the authors first appear in the collection.
func (c *Catalog) TopContributors(n int) []models.Contributor {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, r := range c.resources {
		if _, seen := counts[r.Author]; !seen {
			order = append(order, r.Author)
		}
		counts[r.Author]++
	}

	out := make([]models.Contributor, 0, len(order))
	for _, name := range order {
		out = append(out, models.Contributor{Username: name, Uploads: counts[name]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Uploads > out[j].Uploads })

	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// TopResources returns the n most recently uploaded resources.
func (c *Catalog) TopResources(n int) []models.Resource {
	if n <= 0 || n > len(c.resources) {
		n = len(c.resources)
	}
	out := make([]models.Resource, n)
	copy(out, c.resources[:n])
	return out
}

// nextID produces a strictly monotonic creation-order token. IDs are the
// clock's UnixMilli, bumped past the previous id when two creations land
// in the same millisecond.
func (c *Catalog) nextID(now time.Time) int64 {
	id := now.UnixMilli()
	if id <= c.lastID {
		id = c.lastID + 1
	}
	c.lastID = id
	return id
}

func isValidDownloadURL(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// validateLogo accepts a base64 data URI, sniffs the payload and rejects
// anything that is not an image or exceeds the size cap.
func validateLogo(logo string) error {
	const prefix = "data:"
	if !strings.HasPrefix(logo, prefix) {
		return fmt.Errorf("%w: logo must be a base64 data URI", ErrValidation)
	}

	idx := strings.Index(logo, ";base64,")
	if idx < 0 {
		return fmt.Errorf("%w: logo must be base64-encoded", ErrValidation)
	}
	payload := logo[idx+len(";base64,"):]

	// Base64 expands by 4/3, so cap the encoded form before decoding.
	if base64.StdEncoding.DecodedLen(len(payload)) > maxLogoBytes {
		return fmt.Errorf("%w: logo must be smaller than 5MB", ErrValidation)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return fmt.Errorf("%w: logo is not valid base64", ErrValidation)
	}

	detected := mimetype.Detect(data)
	if !strings.HasPrefix(detected.String(), "image/") {
		return fmt.Errorf("%w: logo must be an image, got %s", ErrValidation, detected.String())
	}
	return nil
}
