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
	numberRegex = regexp.MustCompile(`[0-9][0-9,]*`)
	// ex. "25.14 (rank 1,024)", "25.14 ( rank 1,024 )"
	levelRegex = regexp.MustCompile(`([0-9.]+)[^(]*\([^0-9]*([0-9,]+)\s*\)`)
)

// labelledCell returns the text of the cell right after the `<td><b>label</b></td>` cell.
func labelledCell(doc *goquery.Document, label string) string {
	cell := doc.Find("td > b").FilterFunction(func(_ int, b *goquery.Selection) bool {
		return htmlutil.SelectionText(b) == label
	}).First().Parent()
	return htmlutil.SelectionText(cell.Next())
}

func labelledNumber(doc *goquery.Document, label string) int64 {
	n, err := htmlutil.ParseInt(numberRegex.FindString(labelledCell(doc, label)))
	if err != nil {
		return 0
	}
	return n
}

// account reads the account statistics, anything missing on the page is left as it was.
func (p Plugin) account(_ context.Context, client *empire.Client, env session.Envelope, doc *goquery.Document) (any, error) {
	// the settings views of the account page are also published as the account page
	topics, err := session.ParseTopics(env.URL)
	if err != nil || topics.View != "" {
		return nil, nil
	}

	var patch empire.Stats

	credits, err := htmlutil.ParseInt(numberRegex.FindString(htmlutil.SelectionText(doc.Find("a#credits"))))
	if err == nil {
		patch.Credits = credits
	}
	patch.Income = labelledNumber(doc, "Empire Income")
	patch.FleetSize = labelledNumber(doc, "Fleet Size")
	patch.Technology = labelledNumber(doc, "Technology")

	groups := levelRegex.FindStringSubmatch(labelledCell(doc, "Level"))
	if len(groups) == 3 {
		level, err := htmlutil.ParseFloat(groups[1])
		if err == nil {
			patch.Level = level
		}
		rank, err := htmlutil.ParseInt(groups[2])
		if err == nil {
			patch.Rank = rank
		}
	}

	if patch == (empire.Stats{}) {
		return nil, fmt.Errorf("%w: no account statistics found", ErrUnexpectedMarkup)
	}
	return client.UpdateStats(patch)
}
