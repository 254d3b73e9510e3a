package notify

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"spotbot/internal/bus"
	"spotbot/internal/obs"
	"spotbot/pkg/exception"
)

const (
	_discordUsername = "Spot Bot"

	_colorBuy         = 6146183
	_colorSell        = 14898529
	_colorOperational = 16750848
)

type discordMessage struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Color       int           `json:"color"`
	Footer      discordFooter `json:"footer"`
	Timestamp   string        `json:"timestamp"`
}

type discordFooter struct {
	Text string `json:"text"`
}

// Discord posts notifications to a webhook from a background worker.
// Notify never waits for delivery; when the queue is full the notification
// is dropped.
type Discord struct {
	url     string
	client  *http.Client
	queue   *bus.Queue[Notification]
	metrics *obs.Metrics
	now     func() time.Time
}

func NewDiscord(url string, client *http.Client, capacity int, metrics *obs.Metrics) *Discord {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if capacity <= 0 {
		capacity = 64
	}
	return &Discord{
		url:     url,
		client:  client,
		queue:   bus.NewQueue[Notification](capacity),
		metrics: metrics,
		now:     time.Now,
	}
}

func (d *Discord) Notify(_ context.Context, n Notification) error {
	if err := d.queue.TryPublish(n); err != nil {
		d.metrics.IncQueueDrop("notify")
		if err == bus.ErrQueueFull {
			return exception.ErrNotificationQueueFull
		}
		return err
	}
	return nil
}

// Run delivers queued notifications until ctx is done.
func (d *Discord) Run(ctx context.Context) error {
	err := d.queue.Run(ctx, func(n Notification) error {
		if err := d.post(ctx, n); err != nil {
			d.metrics.IncNotificationError()
			logs.Errorf("post discord webhook, symbol: %s, err: %+v", n.Symbol, err)
		}
		return nil
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Close stops accepting notifications; Run drains what is queued.
func (d *Discord) Close() {
	d.queue.Close()
}

func (d *Discord) post(ctx context.Context, n Notification) error {
	msg := discordMessage{
		Username: _discordUsername,
		Embeds: []discordEmbed{{
			Title:       "**" + n.Symbol + "**",
			Description: n.Description,
			Color:       colorOf(n.Category),
			Footer:      discordFooter{Text: _discordUsername},
			Timestamp:   d.now().UTC().Format(time.RFC3339),
		}},
	}
	payload, err := sonic.ConfigFastest.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal discord message")
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	r.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return errors.Wrapf(exception.ErrUnexpectedStatusCode, "discord webhook status %d", resp.StatusCode)
	}
	return nil
}

func colorOf(c Category) int {
	switch c {
	case CategoryBuyFilled:
		return _colorBuy
	case CategorySellFilled:
		return _colorSell
	default:
		return _colorOperational
	}
}
