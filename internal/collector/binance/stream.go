package binance

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/newthinker/confluence/internal/collector"
	"github.com/newthinker/confluence/internal/core"
)

type klineEvent struct {
	Event     string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	// upper-case keys are listed so they do not case-fold onto the lower-case ones
	Kline struct {
		Start       int64  `json:"t"`
		CloseTime   int64  `json:"T"`
		LastTradeID int64  `json:"L"`
		TakerVolume string `json:"V"`
		Interval    string `json:"i"`
		Open        string `json:"o"`
		High        string `json:"h"`
		Low         string `json:"l"`
		Close       string `json:"c"`
		Volume      string `json:"v"`
		Closed      bool   `json:"x"`
	} `json:"k"`
}

// Stream subscribes to <symbol>@kline_<interval> and pushes every update to
// out. Dropped connections are redialled with exponential backoff. Returns
// nil once ctx is cancelled.
func (b *Binance) Stream(ctx context.Context, symbol, interval string, out chan<- collector.BarUpdate) error {
	if _, err := collector.ParseInterval(interval); err != nil {
		return err
	}
	wsURL := b.streamURL + "/ws/" + strings.ToLower(symbol) + "@kline_" + interval
	log := b.logger.With(zap.String("symbol", symbol), zap.String("interval", interval))

	backoff := b.minBackoff
	connected := false
	for {
		if ctx.Err() != nil {
			return nil
		}

		d := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		conn, resp, err := d.DialContext(ctx, wsURL, nil)
		if err != nil {
			if resp != nil {
				log.Warn("stream dial failed", zap.Int("status", resp.StatusCode), zap.Error(err))
			} else {
				log.Warn("stream dial failed", zap.Error(err))
			}
			if !sleep(ctx, backoff) {
				return nil
			}
			backoff = min(backoff*2, b.maxBackoff)
			continue
		}

		if connected && b.onReconnect != nil {
			b.onReconnect()
		}
		connected = true
		backoff = b.minBackoff
		log.Info("stream connected")

		err = b.readLoop(ctx, conn, interval, out, log)
		if ctx.Err() != nil {
			return nil
		}
		log.Warn("stream disconnected", zap.Error(err))
		if !sleep(ctx, backoff) {
			return nil
		}
	}
}

func (b *Binance) readLoop(ctx context.Context, conn *websocket.Conn, interval string, out chan<- collector.BarUpdate, log *zap.Logger) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client shutdown"))
			_ = conn.Close()
		case <-done:
			_ = conn.Close()
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var ev klineEvent
		if err := json.Unmarshal(raw, &ev); err != nil || ev.Event != "kline" {
			continue
		}
		upd, err := ev.update(interval)
		if err != nil {
			log.Debug("malformed kline", zap.Error(err))
			continue
		}

		select {
		case out <- upd:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (ev klineEvent) update(interval string) (collector.BarUpdate, error) {
	var vals [5]float64
	for i, s := range []string{ev.Kline.Open, ev.Kline.High, ev.Kline.Low, ev.Kline.Close, ev.Kline.Volume} {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return collector.BarUpdate{}, err
		}
		vals[i] = v
	}
	if ev.Kline.Interval != "" {
		interval = ev.Kline.Interval
	}
	return collector.BarUpdate{
		Symbol:   ev.Symbol,
		Interval: interval,
		Closed:   ev.Kline.Closed,
		Bar: core.Bar{
			Time:   time.UnixMilli(ev.Kline.Start).UTC(),
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		},
	}, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
