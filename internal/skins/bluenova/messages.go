package bluenova

import (
	"aewatch/internal/empire"
	"aewatch/internal/recordstore"
	"aewatch/internal/session"
	"aewatch/pkg/htmlutil"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ex. "4 Mar 2013, 10:22:01"
var messageTimeRegex = regexp.MustCompile(`(?i)[0-9]{1,2} [a-z]{3} [0-9]{4}, ?[0-9]{1,2}:[0-9]{2}(:[0-9]{2})?`)

var messageTimeLayouts = []string{
	"2 Jan 2006, 15:04:05",
	"2 Jan 2006, 15:04",
	"2 Jan 2006,15:04:05",
	"2 Jan 2006,15:04",
}

func parseMessageTime(text string, loc *time.Location) (int64, error) {
	match := strings.TrimSpace(messageTimeRegex.FindString(text))
	if match == "" {
		return 0, fmt.Errorf("no date in %q", text)
	}
	for _, layout := range messageTimeLayouts {
		t, err := time.ParseInLocation(layout, match, loc)
		if err == nil {
			return t.Unix(), nil
		}
	}
	return 0, fmt.Errorf("unknown date format %q", match)
}

// parseMessages reads message rows, each `tr.read` or `tr.unread` header row is followed by a
// row containing the text. `idParam` is the query parameter holding the message id on the
// header row's links.
func parseMessages(doc *goquery.Document, idParam string, loc *time.Location) ([]empire.Message, []error) {
	var messages []empire.Message
	var errs []error

	doc.Find("tr.read, tr.unread").Each(func(_ int, header *goquery.Selection) {
		msg := empire.Message{Status: empire.StatusRead}
		if header.HasClass(empire.StatusUnread) {
			msg.Status = empire.StatusUnread
		}

		for _, a := range htmlutil.GetAnchors(header.Find("a[href]")) {
			if id := htmlutil.QueryParam(a.Href, idParam); id != "" && msg.ID == "" {
				msg.ID = id
			}
			if id := htmlutil.QueryParam(a.Href, "player"); id != "" && msg.PlayerID == "" {
				msg.PlayerID = id
				msg.PlayerName = stripGuildTag(a.Name)
			}
		}
		if msg.ID == "" {
			errs = append(errs, fmt.Errorf("%w: message row without a %s link", ErrUnexpectedMarkup, idParam))
			return
		}

		t, err := parseMessageTime(htmlutil.SelectionText(header), loc)
		if err != nil {
			errs = append(errs, fmt.Errorf("message %s: %w", msg.ID, err))
		}
		msg.Time = t

		msg.Text = htmlutil.SelectionText(header.Next().Find("td").First())
		messages = append(messages, msg)
	})

	return messages, errs
}

// storeMessages only adds messages that are not known yet, a message never changes once posted.
func (p Plugin) storeMessages(
	ctx context.Context,
	store *recordstore.Store[empire.Message],
	doc *goquery.Document,
	idParam string,
	loc *time.Location,
	reportId string,
) (any, error) {
	messages, errs := parseMessages(doc, idParam, loc)
	for _, err := range errs {
		p.tel.ReportWarning(reportId, err)
	}

	added := []empire.Message{}
	for _, msg := range messages {
		if store.Exists(msg.ID) {
			continue
		}
		stored, err := store.Set(ctx, msg.ID, msg)
		if err != nil {
			return added, err
		}
		added = append(added, stored)
	}
	return added, nil
}

func (p Plugin) board(ctx context.Context, client *empire.Client, _ session.Envelope, doc *goquery.Document) (any, error) {
	return p.storeMessages(ctx, client.Guild, doc, "quote", client.Location(), report_board_row)
}

func (p Plugin) messages(ctx context.Context, client *empire.Client, _ session.Envelope, doc *goquery.Document) (any, error) {
	return p.storeMessages(ctx, client.Mail, doc, "reply", client.Location(), report_mail_row)
}
