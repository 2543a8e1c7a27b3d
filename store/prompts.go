package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/ksuid"
	"go.mau.fi/util/dbutil"

	"github.com/letmevibethatforyou/promptplace"
)

// PageSize is the number of prompts per catalog page.
const PageSize = 8

const (
	relatedLimit  = 6
	topShopsLimit = 4
)

// ErrPromptNotFound is returned when a prompt id does not exist.
var ErrPromptNotFound = errors.New("prompt not found")

// Status is the moderation state of a prompt. Only live prompts are
// browsable or searchable.
type Status string

const (
	StatusLive     Status = "Live"
	StatusPending  Status = "Pending"
	StatusDeclined Status = "Declined"
)

// Prompt is a listing joined with its derived seller name, cover image and
// average rating.
type Prompt struct {
	ID               string    `json:"id"`
	ShopID           string    `json:"shopId,omitempty"`
	Title            string    `json:"title"`
	ShortDescription string    `json:"shortDescription"`
	Description      string    `json:"description"`
	Category         string    `json:"category"`
	Tags             string    `json:"tags"`
	Price            float64   `json:"price"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`

	SellerName  string   `json:"sellerName"`
	Image       string   `json:"image"`
	Rating      float64  `json:"rating"`
	ReviewCount int      `json:"reviewCount"`
	Images      []string `json:"images,omitempty"`
}

func newPrompt(_ *dbutil.QueryHelper[*Prompt]) *Prompt {
	return &Prompt{}
}

// promptSelect yields the columns scanned by Prompt.Scan.
const promptSelect = `
	SELECT p.id, COALESCE(p.shop_id, ''), p.title, p.short_description, p.description,
	       p.category, p.tags, p.price, p.status, p.created_at, p.updated_at,
	       COALESCE(s.name, ''),
	       COALESCE((SELECT i.url FROM images i WHERE i.prompt_id = p.id ORDER BY i.position, i.id LIMIT 1), ''),
	       COALESCE((SELECT AVG(r.rating) FROM reviews r WHERE r.prompt_id = p.id), 0) AS rating,
	       (SELECT COUNT(*) FROM reviews r WHERE r.prompt_id = p.id)
	FROM prompts p
	LEFT JOIN shops s ON s.id = p.shop_id
`

const (
	listLivePromptsQuery = promptSelect + `
		WHERE p.status = 'Live'
		ORDER BY p.created_at DESC, p.id
		LIMIT $1 OFFSET $2
	`
	countLivePromptsQuery = `SELECT COUNT(*) FROM prompts WHERE status = 'Live'`
	getPromptQuery        = promptSelect + `WHERE p.id = $1`
	relatedPromptsQuery   = promptSelect + `
		WHERE p.status = 'Live' AND p.category = $1
		ORDER BY p.created_at DESC, p.id
		LIMIT $2
	`
	allLivePromptsQuery = promptSelect + `
		WHERE p.status = 'Live'
		ORDER BY p.created_at, p.id
	`
	insertPromptQuery = `
		INSERT INTO prompts (id, shop_id, title, short_description, description, category, tags, price, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	setPromptStatusQuery = `UPDATE prompts SET status = $2, updated_at = $3 WHERE id = $1`
	insertImageQuery     = `
		INSERT INTO images (id, prompt_id, url, position)
		VALUES ($1, $2, $3, (SELECT COUNT(*) FROM images WHERE prompt_id = $2))
	`
	getImagesQuery = `SELECT url FROM images WHERE prompt_id = $1 ORDER BY position, id`
)

func (p *Prompt) Scan(row dbutil.Scannable) (*Prompt, error) {
	var createdAt, updatedAt int64
	err := row.Scan(
		&p.ID, &p.ShopID, &p.Title, &p.ShortDescription, &p.Description,
		&p.Category, &p.Tags, &p.Price, &p.Status, &createdAt, &updatedAt,
		&p.SellerName, &p.Image, &p.Rating, &p.ReviewCount,
	)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = time.UnixMilli(createdAt)
	p.UpdatedAt = time.UnixMilli(updatedAt)
	return p, nil
}

// Result shapes the prompt as a search result, applying the placeholder
// image, unknown seller and rating clamp.
func (p *Prompt) Result() promptplace.SearchResult {
	return promptplace.Normalize(promptplace.SearchResult{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price,
		SellerName:  p.SellerName,
		Image:       p.Image,
		Rating:      p.Rating,
	})
}

// ListLivePrompts returns one page of live prompts, newest first, and the
// total number of live prompts. Pages start at 1.
func (s *Store) ListLivePrompts(ctx context.Context, page int) ([]*Prompt, int, error) {
	if page < 1 {
		page = 1
	}
	var total int
	if err := s.db.QueryRow(ctx, countLivePromptsQuery).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count live prompts")
	}
	prompts, err := s.prompts.QueryMany(ctx, listLivePromptsQuery, PageSize, (page-1)*PageSize)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list live prompts")
	}
	return prompts, total, nil
}

// GetPrompt returns a prompt by id with all of its images, whatever its
// status.
func (s *Store) GetPrompt(ctx context.Context, id string) (*Prompt, error) {
	p, err := s.prompts.QueryOne(ctx, getPromptQuery, id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get prompt %s", id)
	} else if p == nil {
		return nil, ErrPromptNotFound
	}

	rows, err := s.db.Query(ctx, getImagesQuery, id)
	p.Images, err = dbutil.NewRowIterWithError[string](rows, dbutil.ScanSingleColumn[string], err).AsList()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get images of prompt %s", id)
	}
	return p, nil
}

// RelatedPrompts returns live prompts in the same category.
func (s *Store) RelatedPrompts(ctx context.Context, category string) ([]*Prompt, error) {
	prompts, err := s.prompts.QueryMany(ctx, relatedPromptsQuery, category, relatedLimit)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get prompts related to %q", category)
	}
	return prompts, nil
}

// IndexDocuments returns every live prompt in the shape written to the
// search index.
func (s *Store) IndexDocuments(ctx context.Context) ([]promptplace.SearchResult, error) {
	prompts, err := s.prompts.QueryMany(ctx, allLivePromptsQuery)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load live prompts")
	}
	docs := make([]promptplace.SearchResult, 0, len(prompts))
	for _, p := range prompts {
		docs = append(docs, p.Result())
	}
	return docs, nil
}

// CreatePrompt inserts p together with its Images. Missing ids, status and
// timestamps are filled in.
func (s *Store) CreatePrompt(ctx context.Context, p *Prompt) error {
	if p.Title == "" || p.Category == "" {
		return errors.New("prompt title and category are required")
	}
	if p.ID == "" {
		p.ID = ksuid.New().String()
	}
	if p.Status == "" {
		p.Status = StatusPending
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}

	return s.db.DoTxn(ctx, nil, func(ctx context.Context) error {
		_, err := s.db.Exec(ctx, insertPromptQuery,
			p.ID, sql.NullString{String: p.ShopID, Valid: p.ShopID != ""}, p.Title, p.ShortDescription,
			p.Description, p.Category, p.Tags, p.Price, string(p.Status),
			p.CreatedAt.UnixMilli(), p.UpdatedAt.UnixMilli(),
		)
		if err != nil {
			return errors.Wrapf(err, "failed to insert prompt %s", p.ID)
		}
		for _, url := range p.Images {
			if err := s.AddImage(ctx, p.ID, url); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetPromptStatus moves a prompt through moderation.
func (s *Store) SetPromptStatus(ctx context.Context, id string, status Status) error {
	switch status {
	case StatusLive, StatusPending, StatusDeclined:
	default:
		return errors.Newf("invalid prompt status %q", status)
	}
	res, err := s.db.Exec(ctx, setPromptStatusQuery, id, string(status), time.Now().UnixMilli())
	if err != nil {
		return errors.Wrapf(err, "failed to update status of prompt %s", id)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrPromptNotFound
	}
	return nil
}

// AddImage appends an image to a prompt. The first image is the cover.
func (s *Store) AddImage(ctx context.Context, promptID, url string) error {
	_, err := s.db.Exec(ctx, insertImageQuery, ksuid.New().String(), promptID, url)
	if err != nil {
		return errors.Wrapf(err, "failed to add image to prompt %s", promptID)
	}
	return nil
}
