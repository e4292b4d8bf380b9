package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tradesim/internal/domain"
	"tradesim/internal/ports"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
)

const (
	// Base URLs
	baseURLProduction = "https://api.binance.com"
	baseURLTestnet    = "https://testnet.binance.vision"

	// maxKlines is the spot klines endpoint limit per request.
	maxKlines = 1000
)

// Feed implements ports.Feed with the Binance spot klines endpoint. Only public market data is
// read; no orders are ever sent.
type Feed struct {
	client *binance.Client
	logger ports.Logger
	now    func() time.Time
}

// Config holds configuration specific to the Binance feed adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	BaseURL    string // overrides the production/testnet endpoint when set
	Logger     ports.Logger
}

// New creates a new Binance feed adapter.
func New(cfg Config) (*Feed, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance feed")
	}

	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	switch {
	case cfg.BaseURL != "":
		client.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	case cfg.UseTestnet:
		client.BaseURL = baseURLTestnet
	default:
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance feed configured", map[string]interface{}{"baseURL": client.BaseURL})

	return &Feed{client: client, logger: cfg.Logger, now: time.Now}, nil
}

// Fetch returns the closed bars covering period at the given interval, oldest first.
// The kline still forming is dropped so its moving close never reaches the simulation.
func (f *Feed) Fetch(ctx context.Context, symbol, interval, period string) ([]domain.Bar, error) {
	op := "Fetch"
	limit, err := Limit(period, interval)
	if err != nil {
		return nil, err
	}
	// one extra for the kline still forming
	limit = min(limit+1, maxKlines)

	klines, err := f.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, f.handleError(ctx, err, op)
	}

	now := f.now()
	bars := make([]domain.Bar, 0, len(klines))
	for _, k := range klines {
		if k == nil || time.UnixMilli(k.CloseTime).After(now) {
			continue
		}
		bar, err := translateKline(k, symbol, interval)
		if err != nil {
			return nil, f.handleError(ctx, fmt.Errorf("failed to translate kline: %w", err), op)
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ports.ErrFeedEmpty, symbol, interval)
	}

	f.logger.Debug(ctx, "Bars fetched", map[string]interface{}{"symbol": symbol, "interval": interval, "bars": len(bars)})
	return bars, nil
}

// Ping checks the connectivity to the exchange API.
func (f *Feed) Ping(ctx context.Context) error {
	if err := f.client.NewPingService().Do(ctx); err != nil {
		return f.handleError(ctx, err, "Ping")
	}
	return nil
}

// handleError translates Binance API errors into ports errors.
func (f *Feed) handleError(ctx context.Context, err error, operation string) error {
	fields := map[string]interface{}{"operation": operation}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1022, -2014, -2015: // Signature or API-key rejected
			mappedErr = ports.ErrAuthenticationFailed
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1120, -1121, -1125, -1127, -1128, -1130:
			// Parameter errors: unknown symbol or interval, bad limit
			mappedErr = ports.ErrInvalidRequest
		default:
			mappedErr = ports.ErrFeedUnavailable
		}
		f.logger.Error(ctx, err, operation+" failed with API error", fields)
		return fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
	}

	var finalErr error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	default:
		// network failures and malformed payloads
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrFeedUnavailable, err)
	}
	f.logger.Error(ctx, err, operation+" failed", fields)
	return finalErr
}

func translateKline(k *binance.Kline, symbol, interval string) (domain.Bar, error) {
	var (
		values [5]float64
		err    error
	)
	for i, raw := range [5]string{k.Open, k.High, k.Low, k.Close, k.Volume} {
		if values[i], err = strconv.ParseFloat(raw, 64); err != nil {
			return domain.Bar{}, fmt.Errorf("parsing kline value '%s': %w", raw, err)
		}
	}

	return domain.Bar{
		Timestamp: time.UnixMilli(k.OpenTime).UTC(),
		Symbol:    symbol,
		Interval:  interval,
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
	}, nil
}
