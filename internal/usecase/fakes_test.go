package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/merchflow/p2pbot/internal/cache"
	"github.com/merchflow/p2pbot/internal/intention"
	"github.com/merchflow/p2pbot/internal/locker"
	"github.com/merchflow/p2pbot/internal/mailbox"
	"github.com/merchflow/p2pbot/pkg/models"
)

type bookKey struct {
	pair      string
	direction models.Direction
}

// fakeTrading is an in-memory venue.
type fakeTrading struct {
	mu         sync.Mutex
	books      map[bookKey][]models.Quote
	liveAds    map[string][]models.Ad
	matches    map[string][]models.PeerMatch
	placed     []models.Ad
	updated    []models.Ad
	fetchCalls int
	listCalls  int

	placeErr  error
	updateErr error
	listErr   error
}

func newFakeTrading() *fakeTrading {
	return &fakeTrading{
		books:   make(map[bookKey][]models.Quote),
		liveAds: make(map[string][]models.Ad),
		matches: make(map[string][]models.PeerMatch),
	}
}

func (f *fakeTrading) FetchOrderbook(ctx context.Context, pair models.Pair, payMethods []string, direction models.Direction) ([]models.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	return f.books[bookKey{pair.String(), direction}], nil
}

func (f *fakeTrading) PlaceAd(ctx context.Context, ownerID string, ad models.Ad) (models.Ad, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.placeErr != nil {
		return models.Ad{}, f.placeErr
	}
	ad.OfferID = "offer-1"
	f.placed = append(f.placed, ad)
	return ad, nil
}

func (f *fakeTrading) UpdateAd(ctx context.Context, ownerID string, ad models.Ad) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = append(f.updated, ad)
	return nil
}

func (f *fakeTrading) ListLiveAds(ctx context.Context, ownerID string) ([]models.Ad, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.liveAds[ownerID], nil
}

func (f *fakeTrading) ListIncomingMatches(ctx context.Context, ownerID string) ([]models.PeerMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.matches[ownerID], nil
}

// testEnv wires the redis- and sqlite-backed pieces for use case tests.
type testEnv struct {
	mr      *miniredis.Miniredis
	rdb     *redis.Client
	ttl     *cache.TTLCache
	books   *cache.OrderBook
	locks   *locker.Locker
	mail    *mailbox.Mailbox
	intents *intention.Store
	trading *fakeTrading
	collect *CollectInfo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	log := zaptest.NewLogger(t)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	intents, err := intention.NewStore(db)
	require.NoError(t, err)

	ttl := cache.NewTTL(rdb)
	books := cache.NewOrderBook(ttl, time.Minute)
	locks := locker.New(rdb, log, time.Minute, time.Second, 5*time.Millisecond)
	mail := mailbox.New(rdb, locks, log, 10*time.Millisecond, 5)
	trading := newFakeTrading()

	return &testEnv{
		mr: mr, rdb: rdb, ttl: ttl, books: books, locks: locks, mail: mail,
		intents: intents, trading: trading,
		collect: NewCollectInfo(trading, books, models.ExchangeBinance, log),
	}
}

func bookQuote(direction models.Direction, price string, min, max int64, maker string) models.Quote {
	return models.Quote{
		PaymentMethods: []string{"Ziraat"},
		Direction:      direction,
		Asset:          "USDT",
		Fiat:           "TRY",
		Price:          decimal.RequireFromString(price),
		Digits:         2,
		MinAmount:      decimal.NewFromInt(min),
		MaxAmount:      decimal.NewFromInt(max),
		Maker:          models.Maker{VisibleName: maker},
	}
}

// testBook is the book behind the documented repricing vectors: best
// ask 63.70, best bid 63.53, overlapping competitors at 63.73 / 63.50.
func testBook() (sells, buys []models.Quote) {
	sells = []models.Quote{
		bookQuote(models.DirectionSell, "63.70", 5000, 9000, "whale-s"),
		bookQuote(models.DirectionSell, "63.73", 200, 900, "rival-s"),
	}
	buys = []models.Quote{
		bookQuote(models.DirectionBuy, "63.53", 5000, 9000, "whale-b"),
		bookQuote(models.DirectionBuy, "63.50", 200, 900, "rival-b"),
	}
	return sells, buys
}

func testParams(direction models.Direction) intention.Params {
	return intention.Params{
		Asset:         "USDT",
		Fiat:          "TRY",
		Direction:     direction,
		PaymentMethod: "Ziraat",
		InitialAmount: decimal.NewFromInt(5000),
		MinAmount:     decimal.NewFromInt(100),
		MaxAmount:     decimal.NewFromInt(1000),
		TimeLimit:     15,
	}
}

func testAdSettings() models.AdSettings {
	return models.AdSettings{
		MerchantName:          "alice-shop",
		CompetitorSpread:      20,
		BestSpread:            15,
		InterceptionThreshold: 50,
	}
}
