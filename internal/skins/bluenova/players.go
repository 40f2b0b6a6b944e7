package bluenova

import (
	"aewatch/internal/empire"
	"aewatch/internal/session"
	"aewatch/pkg/htmlutil"
	"context"
	"fmt"
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ex. "[ABC] Zorg", the guild tag is optional
	taggedNameRegex = regexp.MustCompile(`^(\[[^\]]*\]\s*)?(.*)$`)

	profileIdRegex      = regexp.MustCompile(`(?i)player[^0-9]+([0-9]+)`)
	profileLevelRegex   = regexp.MustCompile(`(?i)level[^0-9.]+([0-9.]+)`)
	profileRankRegex    = regexp.MustCompile(`(?i)\(rank ([0-9,]+)\)`)
	profileEconomyRegex = regexp.MustCompile(`(?i)economy[^0-9]+([0-9,]+)`)
	profileAgeRegex     = regexp.MustCompile(`(?i)account age[^0-9]+([0-9]+)`)
)

func stripGuildTag(name string) string {
	groups := taggedNameRegex.FindStringSubmatch(name)
	if len(groups) < 3 {
		return name
	}
	return groups[2]
}

func submatch(re *regexp.Regexp, text string) string {
	groups := re.FindStringSubmatch(text)
	if len(groups) < 2 {
		return ""
	}
	return groups[1]
}

// mapPlayers records the players owning something in a solar system view.
func (p Plugin) mapPlayers(ctx context.Context, client *empire.Client, _ session.Envelope, doc *goquery.Document) (any, error) {
	anchors := htmlutil.GetAnchors(doc.Find("div.map-system_content div.astro_container div.description a"))

	seen := []empire.Player{}
	for _, a := range anchors {
		id := htmlutil.QueryParam(a.Href, "player")
		if id == "" {
			p.tel.ReportWarning(report_map_player, "link without a player", a.Href)
			continue
		}
		player, err := client.Players.Set(ctx, id, empire.Player{
			Time: client.Now(),
			Name: stripGuildTag(a.Name),
		})
		if err != nil {
			return seen, err
		}
		seen = append(seen, player)
	}
	return seen, nil
}

func (p Plugin) profile(ctx context.Context, client *empire.Client, _ session.Envelope, doc *goquery.Document) (any, error) {
	specs := doc.Find("td#profile_specs")
	if specs.Length() == 0 {
		return nil, fmt.Errorf("%w: no profile specs", ErrUnexpectedMarkup)
	}
	text := htmlutil.SelectionText(specs)

	id := submatch(profileIdRegex, text)
	if id == "" {
		return nil, fmt.Errorf("%w: no player id in profile", ErrUnexpectedMarkup)
	}

	player := empire.Player{
		Time: client.Now(),
		Name: stripGuildTag(htmlutil.SelectionText(doc.Find("div.profile_header div.sbox_ctr span").First())),
	}
	for _, a := range htmlutil.GetAnchors(specs.Find("a[href]")) {
		if guild := htmlutil.QueryParam(a.Href, "guild"); guild != "" {
			player.Guild = guild
			break
		}
	}
	if level, err := htmlutil.ParseFloat(submatch(profileLevelRegex, text)); err == nil {
		player.Level = level
	}
	if rank, err := htmlutil.ParseInt(submatch(profileRankRegex, text)); err == nil {
		player.Rank = rank
	}
	if economy, err := htmlutil.ParseInt(submatch(profileEconomyRegex, text)); err == nil {
		player.Economy = economy
	}
	if age, err := htmlutil.ParseInt(submatch(profileAgeRegex, text)); err == nil {
		player.Age = age
	}

	return client.Players.Set(ctx, id, player)
}
