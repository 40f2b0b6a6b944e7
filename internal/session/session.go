// Package session issues page requests against the game server, logs back in when the
// server hands back its login form and publishes every delivered page on an event bus.
package session

import (
	"aewatch/internal/components/assert"
	"aewatch/internal/components/telemetry"
	"aewatch/internal/eventbus"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	report_session_fetch     = "session.fetch"
	report_session_fetch_all = "session.fetch-all"
	report_session_login     = "session.login"
)

var (
	// ErrTransportFailure is a failed request or a non-success status that is not the login page.
	ErrTransportFailure = fmt.Errorf("transport failure")
	// ErrReauthenticationLoop means the server still asked for a login after logging in again.
	ErrReauthenticationLoop = fmt.Errorf("still unauthenticated after logging in")
	// ErrInvalidCredentials means the login form was submitted and the server answered with the login form.
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
)

// IsFatal reports whether an error leaves the session unable to make any progress.
func IsFatal(err error) bool {
	return errors.Is(err, ErrReauthenticationLoop) || errors.Is(err, ErrInvalidCredentials)
}

// Credentials are only used to build the login request.
type Credentials struct {
	// Server is the host of the game server, a scheme is optional and defaults to http.
	Server   string
	Email    string
	Password string
}

type Options struct {
	RequestsPerSecond float64
	Timeout           time.Duration
	CloudflareBypass  bool
	// HttpDump is optional, every request/response pair is written to it.
	HttpDump telemetry.HttpDumpOutput
}

// Request is replayed as is after logging in again.
type Request struct {
	URL    string
	Method string
	// Params is sent as a urlencoded form body when non-nil.
	Params url.Values
}

// Envelope is the payload of every topic published by a Session.
type Envelope struct {
	URL    string
	Method string
	Params string
	// Body is empty for TopicRequest.
	Body    string
	Status  int
	Session *Session
}

type Handler = eventbus.Handler[Envelope]

// Publication is one publish made while delivering a page.
type Publication struct {
	Topic   string
	Results eventbus.Results
}

type Delivery struct {
	Envelope     Envelope
	Publications []Publication
}

type Session struct {
	creds   Credentials
	baseUrl *url.URL
	http    *resty.Client
	bus     *eventbus.Bus[Envelope]
	tel     telemetry.API

	login singleflight.Group
	// generation is bumped after every successful login.
	generation atomic.Uint64

	mu       sync.RWMutex
	skin     string
	language string
}

func New(creds Credentials, opts Options, tel telemetry.API) (*Session, error) {
	assert.NotEmptyStr(creds.Server)
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI("session", tel)

	server := creds.Server
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	baseUrl, err := url.Parse(server)
	if err != nil {
		return nil, err
	}

	httpClient, err := newHttpClient(baseUrl, opts, tel)
	if err != nil {
		return nil, err
	}

	return &Session{
		creds:   creds,
		baseUrl: baseUrl,
		http:    httpClient,
		bus:     eventbus.New[Envelope](tel),
		tel:     tel,
	}, nil
}

// PageURL resolves a page (ex. "board.aspx", "account.aspx?view=display") against the server.
func (s *Session) PageURL(page string) string {
	ref, err := url.Parse(page)
	if err != nil {
		return s.baseUrl.String() + "/" + page
	}
	return s.baseUrl.ResolveReference(ref).String()
}

func (s *Session) Subscribe(topic string, handler Handler) eventbus.SubscriptionID {
	return s.bus.Subscribe(topic, handler)
}

func (s *Session) Bus() *eventbus.Bus[Envelope] {
	return s.bus
}

func (s *Session) Skin() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.skin
}

// SetSkin establishes the extraction profile, every page delivered afterwards is also
// published under `skin_<skin>_...` topics.
func (s *Session) SetSkin(skin string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skin = skin
}

func (s *Session) Language() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.language
}

func (s *Session) SetLanguage(language string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.language = language
}

// Get is Fetch for a plain GET request.
func (s *Session) Get(ctx context.Context, rawUrl string) (Delivery, error) {
	return s.Fetch(ctx, Request{URL: rawUrl, Method: http.MethodGet})
}

// Fetch requests a page, logging in again at most once if the server asks for it, and
// publishes the page. Subscriber failures are reported but do not fail the fetch.
func (s *Session) Fetch(ctx context.Context, req Request) (Delivery, error) {
	topics, err := ParseTopics(req.URL)
	if err != nil {
		s.tel.ReportBroken(report_session_fetch, err)
		return Delivery{}, err
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	return s.fetch(ctx, req, topics, false)
}

func (s *Session) fetch(ctx context.Context, req Request, topics PageTopics, replay bool) (Delivery, error) {
	params := ""
	if req.Params != nil {
		params = req.Params.Encode()
	}
	s.bus.Publish(ctx, TopicRequest, Envelope{
		URL:     req.URL,
		Method:  req.Method,
		Params:  params,
		Session: s,
	})

	generation := s.generation.Load()
	res, err := s.do(ctx, req)
	if err != nil {
		err = fmt.Errorf("%w: %s %s: %w", ErrTransportFailure, req.Method, req.URL, err)
		s.tel.ReportBroken(report_session_fetch, err)
		return Delivery{}, err
	}

	if IsLoginPage(res.Body()) {
		if replay {
			err := fmt.Errorf("%w: %s", ErrReauthenticationLoop, req.URL)
			s.tel.ReportBroken(report_session_fetch, err)
			return Delivery{}, err
		}
		s.tel.ReportDebug("session expired", req.URL)

		err = s.reauthenticate(ctx, generation)
		if err != nil {
			return Delivery{}, err
		}
		return s.fetch(ctx, req, topics, true)
	}

	if !res.IsSuccess() {
		err := fmt.Errorf("%w: %s %s: %s", ErrTransportFailure, req.Method, req.URL, res.Status())
		s.tel.ReportBroken(report_session_fetch, err)
		return Delivery{}, err
	}

	return s.deliver(ctx, req, params, res, topics), nil
}

func (s *Session) do(ctx context.Context, req Request) (*resty.Response, error) {
	r := s.http.R().SetContext(ctx)
	if req.Params != nil {
		r.SetFormDataFromValues(req.Params)
	}
	return r.Execute(req.Method, req.URL)
}

func (s *Session) deliver(ctx context.Context, req Request, params string, res *resty.Response, topics PageTopics) Delivery {
	delivery := Delivery{
		Envelope: Envelope{
			URL:     req.URL,
			Method:  req.Method,
			Params:  params,
			Body:    string(res.Body()),
			Status:  res.StatusCode(),
			Session: s,
		},
	}

	publish := func(topic string) {
		results := s.bus.Publish(ctx, topic, delivery.Envelope)
		delivery.Publications = append(delivery.Publications, Publication{
			Topic:   topic,
			Results: results,
		})
	}

	for _, topic := range topics.Generic() {
		publish(topic)
	}
	// read after the generic topics, a subscriber of those may have just established the skin
	if skin := s.Skin(); skin != "" {
		for _, topic := range topics.Skin(skin) {
			publish(topic)
		}
	}

	return delivery
}

// reauthenticate logs in unless a login already succeeded after `observed` was read.
// Concurrent callers share a single login request.
func (s *Session) reauthenticate(ctx context.Context, observed uint64) error {
	if s.generation.Load() != observed {
		return nil
	}
	_, err, _ := s.login.Do("login", func() (any, error) {
		if s.generation.Load() != observed {
			return nil, nil
		}
		// one caller's cancellation should not fail the login for everyone waiting on it
		return nil, s.Login(context.WithoutCancel(ctx))
	})
	return err
}

// Login submits the login form, it does not retry.
func (s *Session) Login(ctx context.Context) error {
	loginError := func(err error) error {
		return fmt.Errorf("session: login failed: %w", err)
	}

	res, err := s.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"email":      s.creds.Email,
			"pass":       s.creds.Password,
			"navigator":  "Netscape",
			"hostname":   s.baseUrl.Host,
			"javascript": "false",
			"post_back":  "false",
		}).
		Post(s.PageURL("/login.aspx"))
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrTransportFailure, err)
		s.tel.ReportBroken(report_session_login, err)
		return loginError(err)
	}
	if IsLoginPage(res.Body()) {
		s.tel.ReportBroken(report_session_login, ErrInvalidCredentials, s.creds.Email)
		return loginError(ErrInvalidCredentials)
	}
	if !res.IsSuccess() {
		err = fmt.Errorf("%w: %s", ErrTransportFailure, res.Status())
		s.tel.ReportBroken(report_session_login, err)
		return loginError(err)
	}

	s.generation.Add(1)
	s.tel.ReportDebug("logged in", s.creds.Email)
	return nil
}

// FetchAll validates every url, then fetches them concurrently. Failures local to a single
// page are reported and skipped, only authentication failures are returned.
func (s *Session) FetchAll(ctx context.Context, urls ...string) error {
	for _, u := range urls {
		_, err := ParseTopics(u)
		if err != nil {
			s.tel.ReportBroken(report_session_fetch_all, err)
			return err
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, u := range urls {
		group.Go(func() error {
			_, err := s.Get(groupCtx, u)
			if IsFatal(err) {
				return err
			}
			return nil
		})
	}
	err := group.Wait()
	s.tel.ReportCount(report_session_fetch_all, int64(len(urls)))
	return err
}
