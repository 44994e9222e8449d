package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/dto"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/identity"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/model"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Known price providers, highest precedence first.
const (
	ProviderCardmarketPriceGuide = "cardmarket.priceguide"
	ProviderMTGJSONCardmarket    = "mtgjson.cardmarket"
	ProviderScryfall             = "scryfall"
)

var providerPrecedence = map[string]int{
	ProviderCardmarketPriceGuide: 0,
	ProviderMTGJSONCardmarket:    1,
	ProviderScryfall:             2,
}

// UnknownPrecedence is the rank of providers outside the precedence table.
const UnknownPrecedence = math.MaxInt

// SourcePrecedence ranks a provider; lower wins. Unknown providers rank last.
func SourcePrecedence(provider string) int {
	if rank, ok := providerPrecedence[strings.ToLower(strings.TrimSpace(provider))]; ok {
		return rank
	}
	return UnknownPrecedence
}

// ResolveLatest picks the canonical price among points: the lowest
// precedence rank wins outright; within a rank the newest date, then the
// newest as_of, then the smallest id. Returns nil for no points.
func ResolveLatest(points []model.PricePoint) *model.PricePoint {
	if len(points) == 0 {
		return nil
	}
	best := points[0]
	for _, p := range points[1:] {
		if outranks(p, best) {
			best = p
		}
	}
	return &best
}

func outranks(a, b model.PricePoint) bool {
	ra, rb := SourcePrecedence(a.Provider), SourcePrecedence(b.Provider)
	if ra != rb {
		return ra < rb
	}
	if !a.Date.Equal(b.Date) {
		return a.Date.After(b.Date)
	}
	if !a.AsOf.Equal(b.AsOf) {
		return a.AsOf.After(b.AsOf)
	}
	return a.ID.String() < b.ID.String()
}

// PriceCacheKey is the redis key holding the resolved price of a card,
// optionally narrowed to a finish.
func PriceCacheKey(cardID, finish string) string {
	if finish == "" {
		return "price:" + cardID
	}
	return "price:" + cardID + ":" + finish
}

// PriceResolver is the read path over persisted price points plus the feed
// import that fills it.
type PriceResolver interface {
	GetLatestPriceForCard(ctx context.Context, cardID string) (*model.PricePoint, error)
	GetLatestPriceForCardFinish(ctx context.Context, cardID, finish string) (*model.PricePoint, error)
	ImportFeed(ctx context.Context, rows []dto.PriceFeedRow) (*dto.PriceFeedImportResult, error)
}

type priceResolver struct {
	repo            repository.PricePointRepository
	rdb             *redis.Client
	defaultCurrency string
	now             func() time.Time
}

// NewPriceResolver builds the price resolver. rdb may be nil; cache
// invalidation after imports is best effort.
func NewPriceResolver(repo repository.PricePointRepository, rdb *redis.Client, defaultCurrency string) PriceResolver {
	return &priceResolver{repo: repo, rdb: rdb, defaultCurrency: defaultCurrency, now: time.Now}
}

func (s *priceResolver) GetLatestPriceForCard(ctx context.Context, cardID string) (*model.PricePoint, error) {
	points, err := s.repo.ListByCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	return ResolveLatest(points), nil
}

func (s *priceResolver) GetLatestPriceForCardFinish(ctx context.Context, cardID, finish string) (*model.PricePoint, error) {
	points, err := s.repo.ListByCardFinish(ctx, cardID, finish)
	if err != nil {
		return nil, err
	}
	return ResolveLatest(points), nil
}

// ImportFeed upserts feed rows on their natural identity. Rows repeating an
// identity inside one batch collapse to the last one.
func (s *priceResolver) ImportFeed(ctx context.Context, rows []dto.PriceFeedRow) (*dto.PriceFeedImportResult, error) {
	type naturalKey struct {
		cardID, provider, finish string
		date                     time.Time
	}
	byKey := make(map[naturalKey]model.PricePoint, len(rows))
	order := make([]naturalKey, 0, len(rows))

	for i, row := range rows {
		p, err := s.pointFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		k := naturalKey{p.CardID, p.Provider, p.Finish, p.Date}
		if _, seen := byKey[k]; !seen {
			order = append(order, k)
		}
		byKey[k] = p
	}

	points := make([]model.PricePoint, 0, len(order))
	cards := make(map[string]struct{})
	for _, k := range order {
		points = append(points, byKey[k])
		cards[k.cardID] = struct{}{}
	}
	if err := s.repo.Upsert(ctx, points); err != nil {
		return nil, err
	}

	cardIDs := make([]string, 0, len(cards))
	for id := range cards {
		cardIDs = append(cardIDs, id)
	}
	sort.Strings(cardIDs)
	s.invalidate(ctx, cardIDs)

	log.Info().Int("rows", len(rows)).Int("imported", len(points)).Int("cards", len(cardIDs)).
		Msg("price feed imported")
	return &dto.PriceFeedImportResult{Imported: len(points), CardIDs: cardIDs}, nil
}

func (s *priceResolver) pointFromRow(row dto.PriceFeedRow) (model.PricePoint, error) {
	provider := strings.ToLower(strings.TrimSpace(row.Provider))
	cardID := strings.TrimSpace(row.CardID)
	if provider == "" || cardID == "" {
		return model.PricePoint{}, fmt.Errorf("provider and card_id are required: %w", ErrInvalidInput)
	}
	if row.PriceCent < 0 {
		return model.PricePoint{}, fmt.Errorf("negative price: %w", ErrInvalidInput)
	}
	date, err := time.Parse(time.DateOnly, strings.TrimSpace(row.Date))
	if err != nil {
		return model.PricePoint{}, fmt.Errorf("date %q: %w", row.Date, ErrInvalidInput)
	}
	currency := strings.ToUpper(strings.TrimSpace(row.Currency))
	if currency == "" {
		currency = s.defaultCurrency
	}
	asOf := s.now().UTC()
	if row.AsOf != nil {
		asOf = row.AsOf.UTC()
	}
	return model.PricePoint{
		CardID:    cardID,
		Provider:  provider,
		Finish:    string(identity.NormalizeFinish(row.Finish, nil)),
		Date:      date,
		Currency:  currency,
		PriceCent: row.PriceCent,
		AsOf:      asOf,
	}, nil
}

func (s *priceResolver) invalidate(ctx context.Context, cardIDs []string) {
	if s.rdb == nil || len(cardIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(cardIDs)*4)
	for _, id := range cardIDs {
		keys = append(keys,
			PriceCacheKey(id, ""),
			PriceCacheKey(id, model.FinishFoil),
			PriceCacheKey(id, model.FinishNonfoil),
			PriceCacheKey(id, model.FinishEtched),
		)
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		log.Warn().Err(err).Int("keys", len(keys)).Msg("price cache invalidation failed")
	}
}
