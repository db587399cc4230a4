// Package apiclient is the REST client of the blog server.
package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"

	"github.com/patric-chuzhbe/blogshelf/internal/models"
)

// FallbackMessage is shown when the server gave no usable error message.
const FallbackMessage = "Something went wrong. Please try again."

const defaultTimeout = 30 * time.Second

// Error is a non-2xx answer of the server.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("server answered %d: %s", e.StatusCode, e.Message)
}

// MessageOf returns the text to show a user for err: the server's message
// when there is one, FallbackMessage otherwise.
func MessageOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return FallbackMessage
}

// StatusOf returns the HTTP status behind err, or 0 for transport failures.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// ImageFile is an image attached to a create or update request.
type ImageFile struct {
	Name string
	Data []byte
}

// Client talks to one blog server.
type Client struct {
	http *resty.Client
}

// Option configures New.
type Option func(*resty.Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(client *resty.Client) {
		client.SetTimeout(timeout)
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(defaultTimeout).
		SetHeader("Accept", "application/json")
	for _, opt := range opts {
		opt(httpClient)
	}

	return &Client{http: httpClient}
}

// Signup registers an account.
func (c *Client) Signup(ctx context.Context, request models.SignupRequest) (models.AuthResponse, error) {
	var result models.AuthResponse
	err := c.do(c.http.R().SetContext(ctx).SetBody(request).SetResult(&result), http.MethodPost, "/api/auth/signup")
	return result, err
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, request models.LoginRequest) (models.AuthResponse, error) {
	var result models.AuthResponse
	err := c.do(c.http.R().SetContext(ctx).SetBody(request).SetResult(&result), http.MethodPost, "/api/auth/login")
	return result, err
}

// ListBlogs fetches every blog matching filter.
func (c *Client) ListBlogs(ctx context.Context, token string, filter models.BlogFilter) (models.Blogs, error) {
	request := c.http.R().SetContext(ctx).SetAuthToken(token)
	if filter.Author != "" {
		request.SetQueryParam("author", filter.Author)
	}
	if filter.Category != "" {
		request.SetQueryParam("category", filter.Category)
	}

	var result models.Blogs
	if err := c.do(request.SetResult(&result), http.MethodGet, "/api/blogs"); err != nil {
		return nil, err
	}
	if result == nil {
		result = models.Blogs{}
	}
	return result, nil
}

// CreateBlog publishes a new blog.
func (c *Client) CreateBlog(
	ctx context.Context,
	token string,
	draft models.BlogDraft,
	image *ImageFile,
) (*models.Blog, error) {
	request := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetMultipartFormData(map[string]string{
			"title":    draft.Title,
			"category": draft.Category,
			"content":  draft.Content,
		})
	attachImage(request, image)

	result := &models.Blog{}
	if err := c.do(request.SetResult(result), http.MethodPost, "/api/blogs"); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateBlog sends the fields set in patch and, optionally, a new image.
func (c *Client) UpdateBlog(
	ctx context.Context,
	token string,
	blogID string,
	patch models.BlogPatch,
	image *ImageFile,
) (*models.Blog, error) {
	fields := map[string]string{}
	for name, value := range map[string]*string{
		"title":    patch.Title,
		"category": patch.Category,
		"content":  patch.Content,
	} {
		if value != nil {
			fields[name] = *value
		}
	}

	request := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetPathParam("id", blogID).
		SetMultipartFormData(fields)
	attachImage(request, image)

	result := &models.Blog{}
	if err := c.do(request.SetResult(result), http.MethodPut, "/api/blogs/{id}"); err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteBlog removes a blog and returns the server's confirmation message.
func (c *Client) DeleteBlog(ctx context.Context, token string, blogID string) (string, error) {
	var result models.MessageResponse
	err := c.do(
		c.http.R().SetContext(ctx).SetAuthToken(token).SetPathParam("id", blogID).SetResult(&result),
		http.MethodDelete,
		"/api/blogs/{id}",
	)
	return result.Message, err
}

func attachImage(request *resty.Request, image *ImageFile) {
	if image == nil {
		return
	}
	request.SetMultipartField(
		"image",
		image.Name,
		mimetype.Detect(image.Data).String(),
		bytes.NewReader(image.Data),
	)
}

func (c *Client) do(request *resty.Request, method, url string) error {
	request.SetError(&models.MessageResponse{})

	response, err := request.Execute(method, url)
	if err != nil {
		return fmt.Errorf("in internal/client/apiclient/apiclient.go/do(): error while `request.Execute()` calling: %w", err)
	}

	if response.IsError() {
		apiErr := &Error{StatusCode: response.StatusCode()}
		if body, ok := response.Error().(*models.MessageResponse); ok {
			apiErr.Message = body.Message
		}
		return apiErr
	}

	return nil
}
