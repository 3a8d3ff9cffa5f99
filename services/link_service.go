package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/url"
	"regexp"
	"strings"

	"link-reward-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

const codeCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const generatedCodeLength = 7

// Short codes are case-sensitive alphanumerics, 1-32 characters.
var codePattern = regexp.MustCompile(`^[0-9A-Za-z]{1,32}$`)

// LinkCache is the resolver-side view of the redis cache; nil-safe.
type LinkCache interface {
	Get(ctx context.Context, code string) *models.ShortLink
	Set(ctx context.Context, link *models.ShortLink)
	Invalidate(ctx context.Context, code string)
}

type LinkService struct {
	Store ShortLinkStore
	Cache LinkCache
}

func NewLinkService(store ShortLinkStore, cache LinkCache) *LinkService {
	return &LinkService{Store: store, Cache: cache}
}

// Resolve maps a short code to its active link. Unknown, deactivated
// and malformed codes all come back as the same ErrLinkNotFound, so a
// caller cannot tell "never existed" from "exists but inactive". Pure
// read: no counter side effects here.
func (s *LinkService) Resolve(ctx context.Context, code string) (*models.ShortLink, error) {
	if !codePattern.MatchString(code) {
		return nil, ErrLinkNotFound
	}

	if s.Cache != nil {
		if link := s.Cache.Get(ctx, code); link != nil {
			if !link.Active {
				return nil, ErrLinkNotFound
			}
			return link, nil
		}
	}

	link, err := s.Store.ByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !link.Active {
		return nil, ErrLinkNotFound
	}

	if s.Cache != nil {
		s.Cache.Set(ctx, link)
	}
	return link, nil
}

func generateCode(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = codeCharset[rand.Intn(len(codeCharset))]
	}
	return string(b)
}

// normalizeAlias turns a requested alias into a valid short code:
// slugified to plain ASCII, hyphens removed since codes are strictly
// alphanumeric.
func normalizeAlias(alias string) string {
	return strings.ReplaceAll(slug.Make(alias), "-", "")
}

func validDestination(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (s *LinkService) pickCode(ctx context.Context, alias string) (string, error) {
	if alias != "" {
		code := normalizeAlias(alias)
		if !codePattern.MatchString(code) {
			return "", fmt.Errorf("alias %q does not normalize to a valid code", alias)
		}
		exists, err := s.Store.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if exists {
			return "", fmt.Errorf("code %q is taken", code)
		}
		return code, nil
	}

	// Generated codes: retry a few times on collision.
	for i := 0; i < 5; i++ {
		code := generateCode(generatedCodeLength)
		exists, err := s.Store.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("could not generate a unique short code")
}

// --- Fiber handlers ---

// CreateLink handles POST /links
func (s *LinkService) CreateLink(c *fiber.Ctx) error {
	var req struct {
		URL        string `json:"url"`
		Title      string `json:"title"`
		Alias      string `json:"alias"`
		IsTemplate bool   `json:"is_template"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if !validDestination(req.URL) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Destination must be an absolute http(s) URL"})
	}
	if req.IsTemplate {
		roles, _ := c.Locals("user_roles").([]string)
		if !hasRole(roles, "team_admin") {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Only team admins can create template links"})
		}
	}

	teamID := c.Locals("team_id").(string)
	userID, _ := c.Locals("user_id").(string)

	code, err := s.pickCode(c.Context(), req.Alias)
	if err != nil {
		if req.Alias != "" {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		log.Printf("DB Error picking code: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create short link"})
	}

	link := &models.ShortLink{
		ID:          uuid.NewString(),
		Code:        code,
		OriginalURL: req.URL,
		Title:       req.Title,
		TeamID:      teamID,
		Active:      true,
		IsTemplate:  req.IsTemplate,
	}
	if userID != "" && !req.IsTemplate {
		link.UserID = &userID
	}

	if err := s.Store.Create(c.Context(), link); err != nil {
		log.Printf("DB Error creating short link: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create short link"})
	}

	return c.Status(fiber.StatusCreated).JSON(link)
}

// ListLinks handles GET /links
func (s *LinkService) ListLinks(c *fiber.Ctx) error {
	scope := ScopeFromCtx(c)
	links, err := s.Store.ByScope(c.Context(), scope)
	if err != nil {
		log.Printf("DB Error listing links: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list links"})
	}
	return c.JSON(fiber.Map{"links": links})
}

// DeactivateLink handles PATCH /links/:id/deactivate
func (s *LinkService) DeactivateLink(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid link ID"})
	}

	link, err := s.Store.ByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, ErrLinkNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Link not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	teamID := c.Locals("team_id").(string)
	if link.TeamID != teamID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Link not found"})
	}

	if err := s.Store.Deactivate(c.Context(), id); err != nil {
		log.Printf("DB Error deactivating link %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to deactivate link"})
	}
	if s.Cache != nil {
		s.Cache.Invalidate(c.Context(), link.Code)
	}
	return c.JSON(fiber.Map{"deactivated": true})
}

// PropagateTemplates handles POST /links/templates/propagate — copies
// every active team template to the given member, skipping templates
// the member already holds a copy of.
func (s *LinkService) PropagateTemplates(c *fiber.Ctx) error {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}

	teamID := c.Locals("team_id").(string)
	propagated, err := s.PropagateTemplatesToUser(c.Context(), teamID, req.UserID)
	if err != nil {
		log.Printf("DB Error propagating templates: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to propagate templates"})
	}
	return c.JSON(fiber.Map{"propagated": propagated})
}

// PropagateTemplatesToUser assigns each active team template to the
// user as a fresh link with its own code and counter.
func (s *LinkService) PropagateTemplatesToUser(ctx context.Context, teamID, userID string) (int, error) {
	templates, err := s.Store.TemplatesForTeam(ctx, teamID)
	if err != nil {
		return 0, err
	}

	existing, err := s.Store.ByScope(ctx, Scope{TeamID: teamID, UserID: &userID})
	if err != nil {
		return 0, err
	}
	have := make(map[string]bool, len(existing))
	for _, l := range existing {
		if l.TemplateID != nil {
			have[*l.TemplateID] = true
		}
	}

	propagated := 0
	for _, tpl := range templates {
		if have[tpl.ID] {
			continue
		}
		code, err := s.pickCode(ctx, "")
		if err != nil {
			return propagated, err
		}
		templateID := tpl.ID
		uid := userID
		copyLink := &models.ShortLink{
			ID:          uuid.NewString(),
			Code:        code,
			OriginalURL: tpl.OriginalURL,
			Title:       tpl.Title,
			TeamID:      teamID,
			UserID:      &uid,
			Active:      true,
			TemplateID:  &templateID,
		}
		if err := s.Store.Create(ctx, copyLink); err != nil {
			return propagated, err
		}
		propagated++
	}
	return propagated, nil
}

// ScopeFromCtx builds the owner scope from the gateway user context.
// ?scope=team widens a read to the whole team; the default narrows to
// the calling user's links when a user identity is present.
func ScopeFromCtx(c *fiber.Ctx) Scope {
	scope := Scope{TeamID: c.Locals("team_id").(string)}
	if c.Query("scope") == "team" {
		return scope
	}
	if userID, ok := c.Locals("user_id").(string); ok && userID != "" {
		scope.UserID = &userID
	}
	return scope
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
