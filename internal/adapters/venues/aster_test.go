package venues_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alejandrodnm/spreadwatch/internal/adapters/venues"
	"github.com/alejandrodnm/spreadwatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAsterServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for path, body := range routes {
		b := body
		mux.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(b))
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAster_MidPrice(t *testing.T) {
	srv := newAsterServer(t, map[string]string{
		"/fapi/v1/ticker/price": `{"symbol":"BTCUSDT","price":"65432.10"}`,
	})
	a := venues.NewAster(srv.URL, nil, domain.FeeSchedule{}, 8)
	defer a.Close()

	mid, err := a.MidPrice(context.Background(), domain.Market{Venue: domain.VenueAster, Symbol: "BTCUSDT"})
	require.NoError(t, err)
	assert.Equal(t, 65432.10, mid)
}

func TestAster_OrderBookSummary(t *testing.T) {
	srv := newAsterServer(t, map[string]string{
		"/fapi/v1/depth": `{"bids":[["100","1"],["99","2"]],"asks":[["101","3"],["102","4"]]}`,
	})
	a := venues.NewAster(srv.URL, nil, domain.FeeSchedule{}, 8)
	defer a.Close()

	s, err := a.OrderBookSummary(context.Background(), domain.Market{Symbol: "BTCUSDT"}, 5)
	require.NoError(t, err)

	require.NotNil(t, s.BestBid)
	require.NotNil(t, s.BestAsk)
	assert.Equal(t, 100.0, *s.BestBid)
	assert.Equal(t, 101.0, *s.BestAsk)
	assert.InDelta(t, 1.0, *s.SpreadAbs, 1e-12)
	assert.InDelta(t, 1.0/100.5, *s.SpreadPct, 1e-12)
	assert.InDelta(t, 10.0, s.DepthQty, 1e-12)
	// 100*1 + 99*2 + 101*3 + 102*4 = 1009
	assert.InDelta(t, 1009.0, s.DepthNotional, 1e-12)
}

func TestAster_OrderBookLevels_TruncatesToN(t *testing.T) {
	srv := newAsterServer(t, map[string]string{
		"/fapi/v1/depth": `{"bids":[["100","1"],["99","2"],["98","3"]],"asks":[["101","1"]]}`,
	})
	a := venues.NewAster(srv.URL, nil, domain.FeeSchedule{}, 8)
	defer a.Close()

	lv, err := a.OrderBookLevels(context.Background(), domain.Market{Symbol: "BTCUSDT"}, 2)
	require.NoError(t, err)
	require.Len(t, lv.Bids, 2)
	assert.Equal(t, 100.0, lv.Bids[0].Price())
	assert.Equal(t, 99.0, lv.Bids[1].Price())
	require.Len(t, lv.Asks, 1)
}

func TestAster_Stats24h(t *testing.T) {
	srv := newAsterServer(t, map[string]string{
		"/fapi/v1/ticker/24hr": `{"volume":"1234.5","quoteVolume":"80000000.25"}`,
	})
	a := venues.NewAster(srv.URL, nil, domain.FeeSchedule{}, 8)
	defer a.Close()

	st, err := a.Stats24h(context.Background(), domain.Market{Symbol: "BTCUSDT"})
	require.NoError(t, err)
	require.NotNil(t, st.QuoteVolume)
	assert.Equal(t, 80000000.25, *st.QuoteVolume)
}

func TestAster_FeesComeFromConfig(t *testing.T) {
	fees := domain.FeeSchedule{Maker: domain.Float64(0.0002), Taker: domain.Float64(0.0005)}
	a := venues.NewAster("http://unused", nil, fees, 8)

	got, err := a.Fees(context.Background(), domain.Market{Symbol: "BTCUSDT"})
	require.NoError(t, err)
	assert.Equal(t, fees, got)
}

func TestAster_FundingInfo(t *testing.T) {
	srv := newAsterServer(t, map[string]string{
		"/fapi/v1/premiumIndex": `{"lastFundingRate":"0.0001","nextFundingTime":1756080000000}`,
	})
	a := venues.NewAster(srv.URL, nil, domain.FeeSchedule{}, 8)
	defer a.Close()

	fi, err := a.FundingInfo(context.Background(), domain.Market{Symbol: "BTCUSDT"})
	require.NoError(t, err)
	require.NotNil(t, fi.Rate)
	assert.Equal(t, 0.0001, *fi.Rate)
	require.NotNil(t, fi.NextTimeMS)
	assert.Equal(t, 1756080000000.0, *fi.NextTimeMS)
}

func TestAster_FundingInfo_ApproximatesMissingNextTime(t *testing.T) {
	srv := newAsterServer(t, map[string]string{
		"/fapi/v1/premiumIndex": `{"lastFundingRate":"0.0001","nextFundingTime":0}`,
	})
	a := venues.NewAster(srv.URL, nil, domain.FeeSchedule{}, 8)
	defer a.Close()

	fi, err := a.FundingInfo(context.Background(), domain.Market{Symbol: "BTCUSDT"})
	require.NoError(t, err)
	require.NotNil(t, fi.NextTimeMS)

	// Alineado al ciclo de 8h y en el futuro.
	period := float64(8 * 3600 * 1000)
	next := *fi.NextTimeMS
	assert.Zero(t, int64(next)%int64(period))
	assert.Greater(t, next, float64(domain.NowMS()))
	assert.LessOrEqual(t, next, float64(domain.NowMS())+period)
}

func TestAster_ServerErrorSurfaces(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/fapi/v1/ticker/price", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := venues.NewAster(srv.URL, nil, domain.FeeSchedule{}, 8)
	_, err := a.MidPrice(context.Background(), domain.Market{Symbol: "BTCUSDT"})
	assert.Error(t, err)
}
