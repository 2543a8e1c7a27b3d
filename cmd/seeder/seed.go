package main

import (
	"context"
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/letmevibethatforyou/promptplace"
	"github.com/letmevibethatforyou/promptplace/store"
)

const (
	sellerID = "demo_user_seller"
	buyerID  = "demo_user_buyer"

	reviewComment = "Excellent prompt! Very helpful and well-structured. Highly recommended!"
)

type seedPrompt struct {
	Title            string
	ShortDescription string
	Description      string
	Category         string
	Tags             string
	Price            float64
	Rating           float64
}

var demoShop = store.Shop{
	OwnerID:     sellerID,
	Name:        "Demo AI Prompts Shop",
	Description: "High-quality AI prompts for various use cases",
	Avatar:      "/demo/avatars/seller.png",
	Ratings:     4.8,
	TotalSales:  125,
}

var demoPrompts = []seedPrompt{
	{
		Title:            "ChatGPT Marketing Expert",
		ShortDescription: "Professional marketing strategies and campaigns",
		Description:      "Get expert marketing advice, campaign ideas, and strategy recommendations from this specialized ChatGPT prompt.",
		Category:         "Marketing",
		Tags:             "marketing,business,strategy",
		Price:            9.99,
		Rating:           4.9,
	},
	{
		Title:            "Midjourney Art Generator",
		ShortDescription: "Create stunning digital artwork",
		Description:      "Generate beautiful, professional-quality digital art with this Midjourney prompt template.",
		Category:         "Design",
		Tags:             "art,design,midjourney",
		Price:            14.99,
		Rating:           4.7,
	},
	{
		Title:            "Content Writing Assistant",
		ShortDescription: "Blog posts and articles in minutes",
		Description:      "Create engaging blog posts, articles, and web content quickly and efficiently.",
		Category:         "Writing",
		Tags:             "writing,content,blog",
		Price:            7.99,
		Rating:           4.6,
	},
	{
		Title:            "Code Review Expert",
		ShortDescription: "Get detailed code reviews and suggestions",
		Description:      "Receive thorough code reviews with security, performance, and best practice recommendations.",
		Category:         "Development",
		Tags:             "coding,programming,development",
		Price:            12.99,
		Rating:           4.8,
	},
	{
		Title:            "Social Media Manager",
		ShortDescription: "Plan and create social media content",
		Description:      "Generate social media posts, captions, and content calendars for all major platforms.",
		Category:         "Marketing",
		Tags:             "social-media,marketing,content",
		Price:            8.99,
		Rating:           4.5,
	},
	{
		Title:            "SEO Optimizer",
		ShortDescription: "Optimize content for search engines",
		Description:      "Get SEO recommendations, keyword strategies, and content optimization tips.",
		Category:         "Marketing",
		Tags:             "seo,marketing,optimization",
		Price:            11.99,
		Rating:           4.7,
	},
}

var (
	subjects = map[string][]string{
		"Marketing":   {"Email Campaign", "Product Launch", "Brand Voice", "Ad Copy"},
		"Design":      {"Logo Concept", "Poster", "Fantasy Landscape", "Character Sheet"},
		"Writing":     {"Short Story", "Newsletter", "Cover Letter", "Speech"},
		"Development": {"Unit Test", "SQL Query", "API Design", "Refactoring"},
	}
	styles = []string{"Pro", "Expert", "Generator", "Assistant", "Toolkit", "Coach"}
)

// randomPrompt builds a plausible extra listing for larger demo catalogs.
func randomPrompt(r *rand.Rand) seedPrompt {
	categories := slices.Sorted(maps.Keys(subjects))
	category := categories[r.IntN(len(categories))]
	subject := subjects[category][r.IntN(len(subjects[category]))]
	style := styles[r.IntN(len(styles))]

	return seedPrompt{
		Title:            fmt.Sprintf("%s %s", subject, style),
		ShortDescription: fmt.Sprintf("%s prompts for %s", subject, category),
		Description:      fmt.Sprintf("A %s prompt that helps with %s work.", subject, category),
		Category:         category,
		Tags:             category,
		Price:            float64(r.IntN(20)+3) - 0.01,
		Rating:           float64(r.IntN(21)) / 4,
	}
}

// seed creates the demo shop when missing and one live prompt per entry,
// each with a placeholder cover image and a buyer review.
func seed(ctx context.Context, st *store.Store, prompts []seedPrompt) error {
	log := zerolog.Ctx(ctx)

	shop, err := st.ShopByOwner(ctx, sellerID)
	if err != nil {
		return err
	}
	if shop == nil {
		s := demoShop
		if err := st.CreateShop(ctx, &s); err != nil {
			return err
		}
		shop = &s
		log.Info().Str("shop_id", shop.ID).Msg("Created seller shop")
	} else {
		log.Info().Str("shop_id", shop.ID).Msg("Seller shop already exists")
	}

	for _, sp := range prompts {
		p := &store.Prompt{
			ShopID:           shop.ID,
			Title:            sp.Title,
			ShortDescription: sp.ShortDescription,
			Description:      sp.Description,
			Category:         sp.Category,
			Tags:             sp.Tags,
			Price:            sp.Price,
			Status:           store.StatusLive,
			Images:           []string{promptplace.PlaceholderImage},
		}
		if err := st.CreatePrompt(ctx, p); err != nil {
			return errors.Wrapf(err, "failed to seed prompt %q", sp.Title)
		}
		if err := st.AddReview(ctx, &store.Review{
			PromptID: p.ID,
			UserID:   buyerID,
			Rating:   sp.Rating,
			Comment:  reviewComment,
		}); err != nil {
			return err
		}
		log.Info().Str("prompt_id", p.ID).Str("title", p.Title).Msg("Created prompt")
	}

	log.Info().Int("prompts", len(prompts)).Msg("Seeding complete")
	return nil
}
