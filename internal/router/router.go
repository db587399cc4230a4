// Package router exposes the blog service over HTTP with chi.
//
// Auth endpoints take JSON bodies; blog mutations take multipart forms with an
// optional single "image" file. Upload constraints (one file, image MIME type,
// size limit) are enforced here, before the request reaches the service.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/blogshelf/internal/auth"
	"github.com/patric-chuzhbe/blogshelf/internal/gzippedhttp"
	"github.com/patric-chuzhbe/blogshelf/internal/logger"
	"github.com/patric-chuzhbe/blogshelf/internal/models"
)

const (
	imageField = "image"

	// formOverhead is what a multipart body may carry besides the image itself.
	formOverhead = 1 << 20
)

type accountService interface {
	Signup(ctx context.Context, request models.SignupRequest) (string, error)
	Login(ctx context.Context, request models.LoginRequest) (string, error)
}

type blogService interface {
	ListBlogs(ctx context.Context, session auth.Session, filter models.BlogFilter) (models.Blogs, error)
	CreateBlog(ctx context.Context, session auth.Session, draft models.BlogDraft, image *models.ImageUpload) (*models.Blog, error)
	UpdateBlog(
		ctx context.Context,
		session auth.Session,
		blogID string,
		patch models.BlogPatch,
		image *models.ImageUpload,
	) (*models.Blog, error)
	DeleteBlog(ctx context.Context, session auth.Session, blogID string) (*models.Blog, error)
}

type operatorService interface {
	Ping(ctx context.Context) error
	GetInternalStats(ctx context.Context) (models.InternalStatsResponse, error)
}

type blogServer interface {
	accountService
	blogService
	operatorService
}

type trustedSubnetGuard interface {
	RequireTrustedSubnet(h http.Handler) http.Handler
}

// Router is the HTTP entry point of the blog server.
type Router struct {
	chi.Router
	svc            blogServer
	uploadMaxBytes int64
}

type initOptions struct {
	assets http.Handler
}

// InitOption configures optional routes.
type InitOption func(*initOptions)

// WithAssetsHandler serves stored images under /assets/.
func WithAssetsHandler(handler http.Handler) InitOption {
	return func(options *initOptions) {
		options.assets = handler
	}
}

// New builds the route tree.
func New(
	svc blogServer,
	verify auth.Verifier,
	subnetGuard trustedSubnetGuard,
	uploadMaxBytes int64,
	optionsProto ...InitOption,
) *Router {
	options := &initOptions{}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	router := &Router{
		Router:         chi.NewRouter(),
		svc:            svc,
		uploadMaxBytes: uploadMaxBytes,
	}

	router.Use(middleware.RequestID)
	router.Use(logger.WithLoggingHTTPMiddleware)
	router.Use(middleware.Recoverer)

	router.Get(`/ping`, router.GetPing)

	router.Route(`/api`, func(r chi.Router) {
		r.Use(gzippedhttp.GzipResponse)

		r.Group(func(r chi.Router) {
			r.Use(gzippedhttp.UngzipRequest)
			r.Post(`/auth/signup`, router.PostApiauthsignup)
			r.Post(`/auth/login`, router.PostApiauthlogin)
		})

		r.Route(`/blogs`, func(r chi.Router) {
			r.Use(auth.RequireSession(verify))
			r.Get(`/`, router.GetApiblogs)
			r.Post(`/`, router.PostApiblogs)
			r.Put(`/{id}`, router.PutApiblogsid)
			r.Delete(`/{id}`, router.DeleteApiblogsid)
		})

		r.With(subnetGuard.RequireTrustedSubnet).Get(`/internal/stats`, router.GetApiinternalstats)
	})

	if options.assets != nil {
		router.Handle(`/assets/*`, http.StripPrefix(`/assets`, options.assets))
	}

	return router
}

// GetPing answers 200 when the storage is reachable.
func (router *Router) GetPing(response http.ResponseWriter, request *http.Request) {
	if err := router.svc.Ping(request.Context()); err != nil {
		logger.Log.Errorw("storage ping failed", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}
	response.WriteHeader(http.StatusOK)
}

// PostApiauthsignup registers a user and answers 201 with a session token.
func (router *Router) PostApiauthsignup(response http.ResponseWriter, request *http.Request) {
	var signupRequest models.SignupRequest
	if err := decodeJSON(request, &signupRequest); err != nil {
		writeError(response, err)
		return
	}

	token, err := router.svc.Signup(request.Context(), signupRequest)
	if err != nil {
		writeError(response, err)
		return
	}

	writeJSON(response, http.StatusCreated, models.AuthResponse{
		Message: "User registered successfully.",
		Token:   token,
	})
}

// PostApiauthlogin exchanges credentials for a session token.
func (router *Router) PostApiauthlogin(response http.ResponseWriter, request *http.Request) {
	var loginRequest models.LoginRequest
	if err := decodeJSON(request, &loginRequest); err != nil {
		writeError(response, err)
		return
	}

	token, err := router.svc.Login(request.Context(), loginRequest)
	if err != nil {
		writeError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, models.AuthResponse{
		Message: "Login successful.",
		Token:   token,
	})
}

// GetApiblogs lists blogs filtered by the author and category query parameters.
func (router *Router) GetApiblogs(response http.ResponseWriter, request *http.Request) {
	session, _ := auth.SessionFromContext(request.Context())
	query := request.URL.Query()

	blogs, err := router.svc.ListBlogs(request.Context(), session, models.BlogFilter{
		Author:   query.Get("author"),
		Category: query.Get("category"),
	})
	if err != nil {
		writeError(response, err)
		return
	}
	if blogs == nil {
		blogs = models.Blogs{}
	}

	writeJSON(response, http.StatusOK, blogs)
}

// PostApiblogs creates a blog from a multipart form.
func (router *Router) PostApiblogs(response http.ResponseWriter, request *http.Request) {
	session, _ := auth.SessionFromContext(request.Context())

	form, err := router.parseBlogForm(response, request)
	if err != nil {
		writeError(response, err)
		return
	}

	blog, err := router.svc.CreateBlog(request.Context(), session, models.BlogDraft{
		Title:    form.value("title"),
		Category: form.value("category"),
		Content:  form.value("content"),
	}, form.image)
	if err != nil {
		writeError(response, err)
		return
	}

	writeJSON(response, http.StatusCreated, blog)
}

// PutApiblogsid updates the fields present in the multipart form.
func (router *Router) PutApiblogsid(response http.ResponseWriter, request *http.Request) {
	session, _ := auth.SessionFromContext(request.Context())

	form, err := router.parseBlogForm(response, request)
	if err != nil {
		writeError(response, err)
		return
	}

	blog, err := router.svc.UpdateBlog(request.Context(), session, chi.URLParam(request, "id"), models.BlogPatch{
		Title:    form.optional("title"),
		Category: form.optional("category"),
		Content:  form.optional("content"),
	}, form.image)
	if err != nil {
		writeError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, blog)
}

// DeleteApiblogsid deletes a blog owned by the caller.
func (router *Router) DeleteApiblogsid(response http.ResponseWriter, request *http.Request) {
	session, _ := auth.SessionFromContext(request.Context())

	if _, err := router.svc.DeleteBlog(request.Context(), session, chi.URLParam(request, "id")); err != nil {
		writeError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, models.MessageResponse{Message: "Blog deleted successfully."})
}

// GetApiinternalstats reports storage counters to trusted callers.
func (router *Router) GetApiinternalstats(response http.ResponseWriter, request *http.Request) {
	stats, err := router.svc.GetInternalStats(request.Context())
	if err != nil {
		writeError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, stats)
}

type blogForm struct {
	values map[string][]string
	image  *models.ImageUpload
}

func (f *blogForm) value(name string) string {
	if values := f.values[name]; len(values) > 0 {
		return values[0]
	}
	return ""
}

func (f *blogForm) optional(name string) *string {
	values, ok := f.values[name]
	if !ok || len(values) == 0 {
		return nil
	}
	value := values[0]
	return &value
}

// parseBlogForm reads the text fields and at most one image. URL-encoded
// forms are accepted for requests without an image.
func (router *Router) parseBlogForm(response http.ResponseWriter, request *http.Request) (*blogForm, error) {
	request.Body = http.MaxBytesReader(response, request.Body, router.uploadMaxBytes+formOverhead)

	err := request.ParseMultipartForm(router.uploadMaxBytes)
	if errors.Is(err, http.ErrNotMultipart) {
		err = request.ParseForm()
	}
	var maxBytesError *http.MaxBytesError
	if errors.As(err, &maxBytesError) {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", models.ErrValidation, router.uploadMaxBytes)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: malformed form: %v", models.ErrValidation, err)
	}

	form := &blogForm{values: request.PostForm}
	if request.MultipartForm == nil {
		return form, nil
	}

	for field, files := range request.MultipartForm.File {
		if field != imageField {
			return nil, fmt.Errorf("%w: unexpected file field %q", models.ErrValidation, field)
		}
		if len(files) > 1 {
			return nil, fmt.Errorf("%w: only one image is allowed", models.ErrValidation)
		}
	}

	files := request.MultipartForm.File[imageField]
	if len(files) == 0 {
		return form, nil
	}

	form.image, err = router.readImage(files[0])
	if err != nil {
		return nil, err
	}

	return form, nil
}

func (router *Router) readImage(header *multipart.FileHeader) (*models.ImageUpload, error) {
	if header.Size > router.uploadMaxBytes {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", models.ErrValidation, router.uploadMaxBytes)
	}
	if header.Size == 0 {
		return nil, fmt.Errorf("%w: image is empty", models.ErrValidation)
	}
	if !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
		return nil, fmt.Errorf("%w: only image files are allowed", models.ErrValidation)
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("in internal/router/router.go/readImage(): error while `header.Open()` calling: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("in internal/router/router.go/readImage(): error while `io.ReadAll()` calling: %w", err)
	}

	detected := mimetype.Detect(data)
	if !strings.HasPrefix(detected.String(), "image/") {
		return nil, fmt.Errorf("%w: only image files are allowed", models.ErrValidation)
	}

	return &models.ImageUpload{
		Data:        data,
		ContentType: detected.String(),
	}, nil
}

func decodeJSON(request *http.Request, target any) error {
	if err := json.NewDecoder(request.Body).Decode(target); err != nil {
		return fmt.Errorf("%w: malformed JSON body", models.ErrValidation)
	}
	return nil
}

func writeJSON(response http.ResponseWriter, status int, payload any) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(status)
	if err := json.NewEncoder(response).Encode(payload); err != nil {
		logger.Log.Debugln("Error calling the `json.NewEncoder(response).Encode()`: ", zap.Error(err))
	}
}

func writeError(response http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.Is(err, models.ErrValidation):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, models.ErrEmailTaken):
		status, message = http.StatusBadRequest, "User already exists with this email."
	case errors.Is(err, models.ErrInvalidCredentials):
		status, message = http.StatusUnauthorized, "Invalid email or password."
	case errors.Is(err, models.ErrUnauthenticated):
		status, message = http.StatusUnauthorized, models.ErrUnauthenticated.Error()
	case errors.Is(err, models.ErrForbidden):
		status, message = http.StatusForbidden, models.ErrForbidden.Error()
	case errors.Is(err, models.ErrNotFound):
		status, message = http.StatusNotFound, models.ErrNotFound.Error()
	case errors.Is(err, models.ErrUpload):
		logger.Log.Errorw("image upload failed", zap.Error(err))
		message = models.ErrUpload.Error()
	default:
		logger.Log.Errorw("request failed", zap.Error(err))
	}

	writeJSON(response, status, models.MessageResponse{Message: message})
}
