// Package bluenova extracts account statistics, messages and players from pages rendered
// with the BlueNova skin.
package bluenova

import (
	"aewatch/internal/components/telemetry"
	"aewatch/internal/empire"
	"aewatch/internal/session"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Skin is the value of the account skin selection this plugin understands, it is also
// the fallback when the selection can't be read.
const Skin = "BlueNova2_new"

const (
	report_skin_detect = "skin.detect"
	report_board_row   = "board.row"
	report_mail_row    = "mail.row"
	report_map_player  = "map.player"
)

// ErrUnexpectedMarkup is returned by a handler when a page lacks the elements it extracts.
var ErrUnexpectedMarkup = fmt.Errorf("unexpected markup")

type Plugin struct {
	tel telemetry.API
}

func New(tel telemetry.API) Plugin {
	return Plugin{tel: telemetry.NewScopedAPI("bluenova", tel)}
}

func (p Plugin) Name() string {
	return "bluenova"
}

func (p Plugin) Register(client *empire.Client) {
	client.Subscribe("url_account_display", p.setSkin)
	client.Subscribe("url_map", p.handle(client, p.mapPlayers))
	client.Subscribe(skinTopic("account_display"), p.setLanguage)
	client.Subscribe(skinTopic("account"), p.handle(client, p.account))
	client.Subscribe(skinTopic("board"), p.handle(client, p.board))
	client.Subscribe(skinTopic("messages"), p.handle(client, p.messages))
	client.Subscribe(skinTopic("profile"), p.handle(client, p.profile))
}

func skinTopic(page string) string {
	return fmt.Sprintf("skin_%s_%s", Skin, page)
}

type pageHandler func(ctx context.Context, client *empire.Client, env session.Envelope, doc *goquery.Document) (any, error)

func (p Plugin) handle(client *empire.Client, handler pageHandler) session.Handler {
	return func(ctx context.Context, topic string, env session.Envelope) (any, error) {
		doc, err := parse(env)
		if err != nil {
			return nil, err
		}
		return handler(ctx, client, env, doc)
	}
}

func parse(env session.Envelope) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(env.Body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", env.URL, err)
	}
	return doc, nil
}

func selectedOption(doc *goquery.Document, name string) string {
	value, _ := doc.Find(fmt.Sprintf("select[name='%s'] option[selected]", name)).First().Attr("value")
	return strings.TrimSpace(value)
}

// setSkin establishes the skin for the session, so it runs on the generic topic.
func (p Plugin) setSkin(_ context.Context, _ string, env session.Envelope) (any, error) {
	doc, err := parse(env)
	if err != nil {
		return nil, err
	}
	skin := selectedOption(doc, "skin")
	if skin == "" {
		p.tel.ReportWarning(report_skin_detect, "no skin selected, assuming", Skin)
		skin = Skin
	}
	env.Session.SetSkin(skin)
	return skin, nil
}

func (p Plugin) setLanguage(_ context.Context, _ string, env session.Envelope) (any, error) {
	doc, err := parse(env)
	if err != nil {
		return nil, err
	}
	language := selectedOption(doc, "language")
	if language == "" {
		return env.Session.Language(), nil
	}
	env.Session.SetLanguage(language)
	return language, nil
}
