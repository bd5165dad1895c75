// Package adminapi is a small HTTP client for the Bingles admin
// surface, used by the admin CLI and by integration tests.
package adminapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a running binglehttp server with an admin token.
type Client struct {
	baseURL *url.URL
	token   string
	hc      *http.Client
}

// ClientOptions configures a Client. Token may be empty when the
// caller intends to Login first.
type ClientOptions struct {
	Addr    string
	Token   string
	Timeout time.Duration
}

func NewClient(opt ClientOptions) (*Client, error) {
	if opt.Addr == "" {
		return nil, errors.New("addr is required")
	}
	u, err := url.Parse(opt.Addr)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" {
		u.Scheme = "http"
	}
	if u.Host == "" {
		return nil, errors.New("invalid addr")
	}
	timeout := opt.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL: u,
		token:   opt.Token,
		hc:      &http.Client{Timeout: timeout},
	}, nil
}

// Login obtains a fresh token and stores it on the client. The server
// enforces single-session, so this invalidates other sessions for the
// account.
func (c *Client) Login(username, password string) (role string, err error) {
	form := url.Values{"username": {username}, "password": {password}}
	var resp struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}
	if err := c.doForm("/login", form, &resp); err != nil {
		return "", err
	}
	c.token = resp.Token
	return resp.Role, nil
}

// User mirrors the server's secret-free account listing.
type User struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (c *Client) ListUsers() ([]User, error) {
	var resp struct {
		Users []User `json:"users"`
	}
	if err := c.doGet("/admin/get_all_users", &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// ListLinks returns the public link table keyed by "root|relpath".
func (c *Client) ListLinks() (map[string]string, error) {
	var resp struct {
		PublicLinks map[string]string `json:"public_links"`
	}
	if err := c.doGet("/admin/get_all_public_links", &resp); err != nil {
		return nil, err
	}
	return resp.PublicLinks, nil
}

func (c *Client) DeleteLink(compositeKey string) error {
	return c.doForm("/admin/delete_public_link", url.Values{"composite_key": {compositeKey}}, nil)
}

func (c *Client) ClearLinks() (int, error) {
	var resp struct {
		Cleared int `json:"cleared"`
	}
	if err := c.doForm("/admin/clear_all_public_links", url.Values{}, &resp); err != nil {
		return 0, err
	}
	return resp.Cleared, nil
}

func (c *Client) ListRoots() ([]string, error) {
	var resp struct {
		RootDirs []string `json:"root_dirs"`
	}
	if err := c.doGet("/get_current_root_dirs", &resp); err != nil {
		return nil, err
	}
	return resp.RootDirs, nil
}

// doGet issues a GET with the token in the query string.
func (c *Client) doGet(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// doForm issues a POST with the token as a form field.
func (c *Client) doForm(path string, form url.Values, out any) error {
	if c.token != "" {
		form.Set("token", c.token)
	}
	req, err := http.NewRequest(http.MethodPost, c.baseEndpoint(path), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

// endpoint appends the token query parameter to a path.
func (c *Client) endpoint(path string) string {
	u := *c.baseURL
	u.Path = path
	if c.token != "" {
		u.RawQuery = url.Values{"token": {c.token}}.Encode()
	}
	return u.String()
}

func (c *Client) baseEndpoint(path string) string {
	u := *c.baseURL
	u.Path = path
	return u.String()
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var er struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&er)
		if er.Error != "" {
			return errors.New(er.Error)
		}
		return errors.New(resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
