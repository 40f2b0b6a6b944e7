package session

import (
	"aewatch/internal/components/telemetry"
	"bytes"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

func newHttpClient(baseUrl *url.URL, opts Options, tel telemetry.API) (*resty.Client, error) {
	httpClient := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	httpClient.SetHeader("user-agent", userAgent)
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Second * 30
	}
	httpClient.SetTimeout(timeout)

	// 2 requests max per second by default
	// max burst >= rps just means that no requests will be dropped
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	rateLimiter := rate.NewLimiter(rate.Limit(rps), int(rps)+1)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel, opts.HttpDump)

	return httpClient, nil
}

// IsLoginPage reports whether a response body is the login form, the server answers with a
// 200 even when it wants you to log in again.
func IsLoginPage(body []byte) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	title := doc.Find("title").First()
	if title.Length() == 0 {
		return false
	}
	return strings.HasPrefix(strings.ToLower(title.Text()), "login")
}
