// Package client talks to the API gateway on behalf of the admin console.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/debemdeboas/war-room/internal/config"
	"github.com/debemdeboas/war-room/internal/model"
	"github.com/debemdeboas/war-room/internal/routes"
	"github.com/debemdeboas/war-room/internal/sse"
	"github.com/rs/zerolog"
)

var clientLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	clientLogger = l
}

// APIError is a non-2xx gateway response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// AuthResponse is returned by the sign-in, sign-up and refresh endpoints.
type AuthResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

type Client struct { // implements store.Backend
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// NewWithHTTPClient is New with a caller-supplied transport, e.g. an httptest server's client.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set(config.HAuthorization, "Bearer "+token)
	}
	req.Header.Set("Accept", config.CTypeJSON)
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out, if out is not nil.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding %s %s response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else if msg := strings.TrimSpace(string(data)); msg != "" {
		apiErr.Message = msg
	} else {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func (c *Client) getJSON(ctx context.Context, path, token string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, token, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set(config.HCType, config.CTypeJSON)
	}
	return c.do(req, out)
}

// ListPosts lists every post through the admin listing when token is set.
// Callers without the admin role fall back to the published listing.
func (c *Client) ListPosts(ctx context.Context, token string) ([]model.Post, error) {
	var posts []model.Post
	if token != "" {
		err := c.getJSON(ctx, routes.APIAdminPosts, token, &posts)
		if !IsStatus(err, http.StatusForbidden) {
			return posts, err
		}
		clientLogger.Debug().Msg("Admin listing refused, falling back to published posts")
	}
	err := c.getJSON(ctx, routes.APIPosts, "", &posts)
	return posts, err
}

func (c *Client) ListCategories(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	err := c.getJSON(ctx, routes.APICategories, "", &categories)
	return categories, err
}

func (c *Client) ListFeaturedPosts(ctx context.Context, limit int) ([]model.Post, error) {
	path := routes.APIFeaturedPosts
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	var posts []model.Post
	err := c.getJSON(ctx, path, "", &posts)
	return posts, err
}

func (c *Client) GetPost(ctx context.Context, token string, id model.PostID) (*model.Post, error) {
	var post model.Post
	if err := c.getJSON(ctx, routes.AdminPost(string(id)), token, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) GetPostBySlug(ctx context.Context, slug string) (*model.Post, error) {
	var post model.Post
	if err := c.getJSON(ctx, routes.PostBySlug(slug), "", &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) CreatePost(ctx context.Context, token string, in model.PostInput) (*model.Post, error) {
	return c.sendPost(ctx, http.MethodPost, routes.APIAdminPosts, token, in)
}

func (c *Client) UpdatePost(ctx context.Context, token string, id model.PostID, in model.PostInput) (*model.Post, error) {
	return c.sendPost(ctx, http.MethodPut, routes.AdminPost(string(id)), token, in)
}

func (c *Client) DeletePost(ctx context.Context, token string, id model.PostID) error {
	req, err := c.newRequest(ctx, http.MethodDelete, routes.AdminPost(string(id)), token, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) sendPost(ctx context.Context, method, path, token string, in model.PostInput) (*model.Post, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fields := []struct{ name, value string }{
		{"title", in.Title},
		{"excerpt", in.Excerpt},
		{"content", in.Content},
		{"category", in.Category},
		{"type", string(in.Type)},
		{"status", string(in.Status)},
		{"readTime", in.ReadTime},
		{"coverImageUrl", in.CoverImage},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := mw.WriteField(f.name, f.value); err != nil {
			return nil, err
		}
	}
	if in.Cover != nil {
		fw, err := mw.CreateFormFile("coverImage", in.Cover.Name)
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write(in.Cover.Data); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, method, path, token, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set(config.HCType, mw.FormDataContentType())

	var post model.Post
	if err := c.do(req, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// UploadImage uploads a standalone image and returns its public URL.
func (c *Client) UploadImage(ctx context.Context, token string, img model.ImageFile) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", img.Name)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(img.Data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, routes.APIAdminImages, token, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set(config.HCType, mw.FormDataContentType())

	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	in := map[string]string{"email": email, "password": password}
	if err := c.sendJSON(ctx, http.MethodPost, routes.AuthSignIn, "", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SignUp(ctx context.Context, email, password, name string) (*AuthResponse, error) {
	var out AuthResponse
	in := map[string]string{"email": email, "password": password, "name": name}
	if err := c.sendJSON(ctx, http.MethodPost, routes.AuthSignUp, "", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SignOut(ctx context.Context, token string) error {
	return c.sendJSON(ctx, http.MethodPost, routes.AuthSignOut, token, nil, nil)
}

func (c *Client) Me(ctx context.Context, token string) (*model.User, error) {
	var user model.User
	if err := c.getJSON(ctx, routes.AuthMe, token, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Refresh(ctx context.Context, token string) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.sendJSON(ctx, http.MethodPost, routes.AuthRefresh, token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Events streams gateway change events to fn until ctx is done, the stream
// ends, or fn returns an error. The client timeout does not apply.
func (c *Client) Events(ctx context.Context, fn func(sse.Event) error) error {
	req, err := c.newRequest(ctx, http.MethodGet, routes.Events, "", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", config.CTypeSSE)

	stream := &http.Client{Transport: c.http.Transport}
	resp, err := stream.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	err = sse.Read(resp.Body, fn)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
