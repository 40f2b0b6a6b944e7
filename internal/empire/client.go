// Package empire ties a game session to the stores its plugins fill in.
package empire

import (
	"aewatch/internal/components/assert"
	"aewatch/internal/components/chrono"
	"aewatch/internal/components/telemetry"
	"aewatch/internal/recordstore"
	"aewatch/internal/session"
	"context"
	"fmt"
	"sync"
	"time"

	"dario.cat/mergo"
)

const (
	report_client_refresh = "client.refresh"
	report_client_stats   = "client.update-stats"
)

// SkinPage establishes the session's skin, it is fetched on its own before the rest of a
// refresh when no skin is known yet.
const SkinPage = "account.aspx?view=display"

// DefaultPages are requested by every Refresh.
var DefaultPages = []string{
	SkinPage,
	"account.aspx",
	"board.aspx",
	"messages.aspx",
}

type Client struct {
	Session *session.Session
	// Guild holds the guild board messages.
	Guild *recordstore.Store[Message]
	// Mail holds private messages.
	Mail    *recordstore.Store[Message]
	Players *recordstore.Store[Player]

	time chrono.TimeAPI
	tel  telemetry.API

	mu    sync.RWMutex
	stats Stats
}

func NewClient(
	creds session.Credentials,
	opts session.Options,
	plugins []Plugin,
	timeApi chrono.TimeAPI,
	tel telemetry.API,
) (*Client, error) {
	assert.NotNil(timeApi)
	assert.NotNil(tel)

	sess, err := session.New(creds, opts, tel)
	if err != nil {
		return nil, err
	}

	c := &Client{
		Session: sess,
		Guild:   recordstore.New[Message]("guild_messages", tel),
		Mail:    recordstore.New[Message]("mail_messages", tel),
		Players: recordstore.New[Player]("players", tel),
		time:    timeApi,
		tel:     telemetry.NewScopedAPI("empire", tel),
	}
	for _, p := range plugins {
		p.Register(c)
		c.tel.ReportDebug("registered plugin", p.Name())
	}
	return c, nil
}

// Subscribe registers a handler for the pages of the client's session.
func (c *Client) Subscribe(topic string, handler session.Handler) {
	c.Session.Subscribe(topic, handler)
}

// Now is the time given to records that don't carry their own timestamp.
func (c *Client) Now() int64 {
	return c.time.Now().Unix()
}

// Location is the timezone the server's dates are displayed in.
func (c *Client) Location() *time.Location {
	return c.time.Location()
}

func (c *Client) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// UpdateStats merges the non-zero fields of `patch` into the current stats.
func (c *Client) UpdateStats(patch Stats) (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	merged := c.stats
	err := mergo.Merge(&merged, patch, mergo.WithOverride)
	if err != nil {
		c.tel.ReportBroken(report_client_stats, err)
		return c.stats, err
	}
	c.stats = merged
	return merged, nil
}

// Refresh requests DefaultPages and `extra` pages (relative to the server, ex.
// "profile.aspx?player=123"). Only authentication failures and malformed pages are returned,
// everything else is reported.
func (c *Client) Refresh(ctx context.Context, extra ...string) error {
	pages := append([]string{}, DefaultPages...)
	pages = append(pages, extra...)

	if c.Session.Skin() == "" {
		_, err := c.Session.Get(ctx, c.Session.PageURL(SkinPage))
		if session.IsFatal(err) {
			return fmt.Errorf("refresh: %w", err)
		}
		if err != nil {
			c.tel.ReportWarning(report_client_refresh, err)
		}
		pages = pages[1:]
	}

	urls := make([]string, len(pages))
	for i, p := range pages {
		urls[i] = c.Session.PageURL(p)
	}
	err := c.Session.FetchAll(ctx, urls...)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	c.tel.ReportCount(report_client_refresh, int64(len(pages)))
	return nil
}
