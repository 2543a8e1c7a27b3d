package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/ksuid"
	"go.mau.fi/util/dbutil"
)

// Shop is a seller storefront. Each user owns at most one.
type Shop struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"userId"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Avatar       string    `json:"avatar"`
	Ratings      float64   `json:"ratings"`
	TotalSales   int       `json:"totalSales"`
	ProductCount int       `json:"allProducts"`
	CreatedAt    time.Time `json:"createdAt"`
}

func newShop(_ *dbutil.QueryHelper[*Shop]) *Shop {
	return &Shop{}
}

const shopSelect = `
	SELECT s.id, s.owner_id, s.name, s.description, s.avatar, s.ratings, s.total_sales, s.created_at,
	       (SELECT COUNT(*) FROM prompts p WHERE p.shop_id = s.id) AS product_count
	FROM shops s
`

const (
	topShopsQuery    = shopSelect + `ORDER BY product_count DESC, s.created_at, s.id LIMIT $1`
	shopByOwnerQuery = shopSelect + `WHERE s.owner_id = $1`
	insertShopQuery  = `
		INSERT INTO shops (id, owner_id, name, description, avatar, ratings, total_sales, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
)

func (s *Shop) Scan(row dbutil.Scannable) (*Shop, error) {
	var createdAt int64
	err := row.Scan(
		&s.ID, &s.OwnerID, &s.Name, &s.Description, &s.Avatar,
		&s.Ratings, &s.TotalSales, &createdAt, &s.ProductCount,
	)
	if err != nil {
		return nil, err
	}
	s.CreatedAt = time.UnixMilli(createdAt)
	return s, nil
}

// TopShops returns the shops with the most prompts.
func (s *Store) TopShops(ctx context.Context) ([]*Shop, error) {
	shops, err := s.shops.QueryMany(ctx, topShopsQuery, topShopsLimit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get top shops")
	}
	return shops, nil
}

// ShopByOwner returns the shop owned by a user, or nil when they have none.
func (s *Store) ShopByOwner(ctx context.Context, ownerID string) (*Shop, error) {
	shop, err := s.shops.QueryOne(ctx, shopByOwnerQuery, ownerID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get shop of %s", ownerID)
	}
	return shop, nil
}

// CreateShop inserts a shop, filling in a missing id and creation time.
func (s *Store) CreateShop(ctx context.Context, shop *Shop) error {
	if shop.OwnerID == "" || shop.Name == "" {
		return errors.New("shop owner and name are required")
	}
	if shop.ID == "" {
		shop.ID = ksuid.New().String()
	}
	if shop.CreatedAt.IsZero() {
		shop.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(ctx, insertShopQuery,
		shop.ID, shop.OwnerID, shop.Name, shop.Description, shop.Avatar,
		shop.Ratings, shop.TotalSales, shop.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to insert shop %s", shop.ID)
	}
	return nil
}
