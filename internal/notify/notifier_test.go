package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/ammsim/internal/domain"
)

type captureSender struct {
	titles []string
	err    error
}

func (c *captureSender) Send(_ context.Context, title, _ string) error {
	c.titles = append(c.titles, title)
	return c.err
}

func (c *captureSender) Name() string { return "capture" }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestHandleFiltersByEventType(t *testing.T) {
	s := &captureSender{}
	n := NewNotifier([]Sender{s}, []string{"arbitrage_opportunity", " "}, discard())
	ctx := context.Background()

	require.NoError(t, n.Handle(ctx, domain.ArbitrageOpportunity{Direction: domain.ArbBuyEthSellBtc, Percentage: 9.09}))
	require.NoError(t, n.Handle(ctx, domain.PoolUpdated{Action: domain.PoolActionUserAdded, User: &domain.LPUser{ID: "u1"}}))
	require.NoError(t, n.Handle(ctx, domain.PriceChangeEvent{}))

	assert.Equal(t, []string{"Arbitrage opportunity"}, s.titles)
}

func TestHandleAnnouncesOnlyCorrectiveTrades(t *testing.T) {
	s := &captureSender{}
	n := NewNotifier([]Sender{s}, nil, discard())
	ctx := context.Background()

	require.NoError(t, n.Handle(ctx, domain.TradeExecuted{Origin: domain.TradeOriginUser}))
	require.NoError(t, n.Handle(ctx, domain.TradeExecuted{Origin: domain.TradeOriginArbitrage}))
	require.NoError(t, n.Handle(ctx, domain.PoolUpdated{Action: domain.PoolActionUserRemoved}))

	assert.Equal(t, []string{"Arbitrage trade executed", "Pool user removed"}, s.titles)
}

func TestDispatchContinuesPastFailingSender(t *testing.T) {
	bad := &captureSender{err: errors.New("offline")}
	good := &captureSender{}
	n := NewNotifier([]Sender{bad, good}, nil, discard())

	err := n.NotifyAll(context.Background(), "title", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capture: offline")
	assert.Len(t, good.titles, 1)
	assert.True(t, n.Enabled())
	assert.False(t, NewNotifier(nil, nil, discard()).Enabled())
}

func TestTelegramSender(t *testing.T) {
	var got map[string]string
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	ts := NewTelegramSender("tok", "42")
	ts.apiBase = srv.URL
	require.NoError(t, ts.Send(context.Background(), "Title", "body"))

	assert.Equal(t, "/bottok/sendMessage", path)
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "*Title*\nbody", got["text"])
}

func TestDiscordSender(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewDiscordSender(srv.URL, "ammsim").Send(context.Background(), "Title", "body"))
	assert.Equal(t, "ammsim", got.Username)
	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "Title", got.Embeds[0].Title)
	assert.Equal(t, "body", got.Embeds[0].Description)
}

func TestDiscordSenderReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL, "").Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
