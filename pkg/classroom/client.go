package classroom

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"github.com/jwdev42/cookiefile"

	"tcphotos/pkg/config"
	tcerrors "tcphotos/pkg/errors"
	"tcphotos/pkg/logger"
)

const (
	// DefaultHost is the public portal host
	DefaultHost = "https://www.transparentclassroom.com"

	// DefaultUserAgent is sent with every request unless overridden
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
)

// Options configures a Client
type Options struct {
	Email    string
	Password string
	SchoolID uint64
	ChildID  uint64

	// BaseURL overrides https://www.transparentclassroom.com/schools/<SchoolID>
	BaseURL   string
	UserAgent string

	// Timeout of zero leaves the transport default in place
	Timeout          time.Duration
	CloudflareBypass bool

	Logger logger.Logger
}

// OptionsFromConfig maps loaded configuration onto client options
func OptionsFromConfig(cfg *config.Config, log logger.Logger) Options {
	return Options{
		Email:            cfg.Portal.Email,
		Password:         cfg.Portal.Password,
		SchoolID:         cfg.Portal.SchoolID,
		ChildID:          cfg.Portal.ChildID,
		BaseURL:          cfg.Portal.BaseURL,
		UserAgent:        cfg.Portal.UserAgent,
		Timeout:          cfg.HTTP.Timeout,
		CloudflareBypass: cfg.HTTP.CloudflareBypass,
		Logger:           log,
	}
}

// Response is a fully read HTTP response
type Response struct {
	URL    string
	Status int
	Body   []byte
	Header http.Header
}

// IsSuccess reports a 2xx status
func (r *Response) IsSuccess() bool {
	return r.Status >= 200 && r.Status < 300
}

// IsRedirect reports a 3xx status
func (r *Response) IsRedirect() bool {
	return r.Status >= 300 && r.Status < 400
}

// Client is a cookie-holding session against one school. It is not safe for
// concurrent use while Login is running.
type Client struct {
	http     *resty.Client
	noFollow *resty.Client
	jar      http.CookieJar

	email    string
	password string
	schoolID uint64
	childID  uint64

	baseURL string
	rootURL string
	base    *url.URL

	state  AuthState
	logger logger.Logger
}

// NewClient creates a portal client. Both underlying resty clients share one
// cookie jar and transport; the second never follows redirects so the login
// POST can observe them.
func NewClient(opts Options) (*Client, error) {
	log := logger.OrDefault(opts.Logger)

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("%s/schools/%d", DefaultHost, opts.SchoolID)
	}
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, tcerrors.Configuration("invalid base URL: %q", baseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, tcerrors.Wrap(tcerrors.ErrorTypeConfiguration, err, "failed to create cookie jar: %v", err)
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	httpClient := resty.New()
	httpClient.SetCookieJar(jar)
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}
	if opts.Timeout > 0 {
		httpClient.SetTimeout(opts.Timeout)
	}
	httpClient.SetHeaders(map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	})

	noFollow := resty.New()
	noFollow.SetCookieJar(jar)
	noFollow.SetTransport(httpClient.GetClient().Transport)
	if opts.Timeout > 0 {
		noFollow.SetTimeout(opts.Timeout)
	}
	noFollow.Header = httpClient.Header.Clone()
	noFollow.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}))

	restyLog := logger.NewPrintf(log.WithField("component", "resty"))
	httpClient.SetLogger(restyLog)
	noFollow.SetLogger(restyLog)

	instrument(httpClient, log)
	instrument(noFollow, log)

	c := &Client{
		http:     httpClient,
		noFollow: noFollow,
		jar:      jar,
		email:    opts.Email,
		password: opts.Password,
		schoolID: opts.SchoolID,
		childID:  opts.ChildID,
		baseURL:  baseURL,
		rootURL:  rootOf(baseURL),
		base:     base,
		state:    Unauthenticated,
		logger:   log.WithField("component", "classroom"),
	}

	return c, nil
}

// rootOf strips any /schools/... suffix from a base URL
func rootOf(baseURL string) string {
	if i := strings.Index(baseURL, "/schools"); i >= 0 {
		return baseURL[:i]
	}
	return baseURL
}

// BaseURL returns the school-scoped base URL
func (c *Client) BaseURL() string { return c.baseURL }

// RootURL returns the host-level URL used for sign-in and relative links
func (c *Client) RootURL() string { return c.rootURL }

func (c *Client) SchoolID() uint64 { return c.schoolID }

func (c *Client) ChildID() uint64 { return c.childID }

// State returns the current authentication state
func (c *Client) State() AuthState { return c.state }

// IsLoopback reports whether the base URL addresses a local test host
func (c *Client) IsLoopback() bool {
	host := c.base.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// LoadCookieFile seeds the session with cookies exported from a browser in
// Netscape format. It returns the number of cookies loaded.
func (c *Client) LoadCookieFile(path string) (int, error) {
	cookies, err := cookiefile.Load(path)
	if err != nil {
		return 0, tcerrors.Wrap(tcerrors.ErrorTypeConfiguration, err, "failed to load cookie file %s: %v", path, err)
	}

	root, err := url.Parse(c.rootURL)
	if err != nil {
		return 0, tcerrors.Configuration("invalid root URL: %q", c.rootURL)
	}
	c.jar.SetCookies(root, cookies)

	c.logger.InfoWithFields("Loaded cookies from file", map[string]interface{}{
		"path":    path,
		"cookies": len(cookies),
	})
	return len(cookies), nil
}

// Get fetches rawURL with the session cookies. Any HTTP status is returned as
// a Response; only failures to obtain a response are errors.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	return c.do(ctx, c.http.R(), http.MethodGet, rawURL)
}

// GetWithBasicAuth fetches rawURL with HTTP Basic credentials
func (c *Client) GetWithBasicAuth(ctx context.Context, rawURL, username, password string) (*Response, error) {
	return c.do(ctx, c.http.R().SetBasicAuth(username, password), http.MethodGet, rawURL)
}

// postFormNoRedirect submits a form without following any redirect
func (c *Client) postFormNoRedirect(ctx context.Context, rawURL string, form map[string]string) (*Response, error) {
	return c.do(ctx, c.noFollow.R().SetFormData(form), http.MethodPost, rawURL)
}

func (c *Client) do(ctx context.Context, req *resty.Request, method, rawURL string) (*Response, error) {
	res, err := req.SetContext(ctx).Execute(method, rawURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, tcerrors.Network(err, "request to %s failed: %v", rawURL, err)
	}

	return &Response{
		URL:    rawURL,
		Status: res.StatusCode(),
		Body:   res.Body(),
		Header: res.Header(),
	}, nil
}
