// Package service implements the blog mutation pipeline and the account flows.
//
// Every mutating call receives an explicit auth.Session. Validation and
// ownership are checked before any binary reaches the asset store, and an
// image that was uploaded for a mutation which then failed is removed again.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/patric-chuzhbe/blogshelf/internal/auth"
	"github.com/patric-chuzhbe/blogshelf/internal/logger"
	"github.com/patric-chuzhbe/blogshelf/internal/models"
	"github.com/patric-chuzhbe/blogshelf/internal/user"
)

type userKeeper interface {
	CreateUser(ctx context.Context, usr *user.User) (string, error)
	GetUserByID(ctx context.Context, userID string) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
	GetNumberOfUsers(ctx context.Context) (int64, error)
}

type blogKeeper interface {
	ListBlogs(ctx context.Context, filter models.BlogFilter) (models.Blogs, error)
	GetBlogByID(ctx context.Context, blogID string) (*models.Blog, error)
	InsertBlog(ctx context.Context, blog *models.Blog) (*models.Blog, error)
	UpdateBlogByID(ctx context.Context, blogID, ownerID string, patch models.BlogPatch) (*models.BlogUpdateResult, error)
	DeleteBlogByID(ctx context.Context, blogID, ownerID string) (*models.Blog, error)
	GetNumberOfBlogs(ctx context.Context) (int64, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type storage interface {
	userKeeper
	blogKeeper
	pinger
}

type assetStore interface {
	Upload(ctx context.Context, data []byte, contentType, folder string) (string, error)
	Remove(ctx context.Context, reference string) error
}

type assetReaper interface {
	EnqueueJob(job *models.AssetRemoveJob)
}

type tokenIssuer interface {
	Issue(userID string) (string, error)
}

// Service runs the account flows and the blog mutation pipeline.
type Service struct {
	db           storage
	assets       assetStore
	reaper       assetReaper
	tokens       tokenIssuer
	assetFolder  string
	passwordCost int
	validate     *validator.Validate
}

// New creates a Service. Images are uploaded into assetFolder.
func New(
	db storage,
	assets assetStore,
	reaper assetReaper,
	tokens tokenIssuer,
	assetFolder string,
) *Service {
	return &Service{
		db:           db,
		assets:       assets,
		reaper:       reaper,
		tokens:       tokens,
		assetFolder:  assetFolder,
		passwordCost: bcrypt.DefaultCost,
		validate:     newValidator(),
	}
}

// newValidator adds the "notblank" rule shared by blog drafts and patches.
func newValidator() *validator.Validate {
	validate := validator.New()
	// Fails only for an empty tag or a nil function.
	_ = validate.RegisterValidation("notblank", validators.NotBlank)
	return validate
}

// Signup registers a user and returns a session token for it.
func (s *Service) Signup(ctx context.Context, request models.SignupRequest) (string, error) {
	request.Email = normalizeEmail(request.Email)
	if err := s.validate.Struct(request); err != nil {
		return "", fmt.Errorf("%w: name, a valid email and password are required", models.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(request.Password), s.passwordCost)
	if err != nil {
		return "", fmt.Errorf(
			"in internal/service/service.go/Signup(): error while `bcrypt.GenerateFromPassword()` calling: %w",
			err,
		)
	}

	userID, err := s.db.CreateUser(ctx, &user.User{
		Name:         strings.TrimSpace(request.Name),
		Email:        request.Email,
		PasswordHash: string(hash),
	})
	if err != nil {
		return "", err
	}

	return s.tokens.Issue(userID)
}

// Login checks the credentials and returns a fresh session token.
func (s *Service) Login(ctx context.Context, request models.LoginRequest) (string, error) {
	request.Email = normalizeEmail(request.Email)
	if err := s.validate.Struct(request); err != nil {
		return "", fmt.Errorf("%w: email and password are required", models.ErrValidation)
	}

	usr, err := s.db.GetUserByEmail(ctx, request.Email)
	if errors.Is(err, models.ErrUserNotFound) {
		return "", models.ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(usr.PasswordHash), []byte(request.Password)); err != nil {
		return "", models.ErrInvalidCredentials
	}

	return s.tokens.Issue(usr.ID)
}

// ListBlogs returns the blogs matching filter, newest first.
func (s *Service) ListBlogs(ctx context.Context, session auth.Session, filter models.BlogFilter) (models.Blogs, error) {
	if session.UserID == "" {
		return nil, models.ErrUnauthenticated
	}

	return s.db.ListBlogs(ctx, filter)
}

// CreateBlog stores a new blog owned by the session user. The optional image
// is uploaded first; if the insert then fails the upload is removed again.
func (s *Service) CreateBlog(
	ctx context.Context,
	session auth.Session,
	draft models.BlogDraft,
	image *models.ImageUpload,
) (*models.Blog, error) {
	if session.UserID == "" {
		return nil, models.ErrUnauthenticated
	}

	if err := s.validate.Struct(draft); err != nil {
		return nil, fmt.Errorf("%w: title, category and content are required", models.ErrValidation)
	}

	owner, err := s.db.GetUserByID(ctx, session.UserID)
	if errors.Is(err, models.ErrUserNotFound) {
		return nil, models.ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}

	reference, err := s.upload(ctx, image)
	if err != nil {
		return nil, err
	}

	blog, err := s.db.InsertBlog(ctx, &models.Blog{
		Title:    draft.Title,
		Category: draft.Category,
		Author:   owner.Name,
		Content:  draft.Content,
		Image:    reference,
		OwnerID:  session.UserID,
	})
	if err != nil {
		s.rollbackUpload(ctx, reference)
		return nil, err
	}

	return blog, nil
}

// UpdateBlog applies patch to a blog owned by the session user. A new image is
// uploaded before the record changes and the replaced image is handed to the
// reaper only after the record points at the new one.
func (s *Service) UpdateBlog(
	ctx context.Context,
	session auth.Session,
	blogID string,
	patch models.BlogPatch,
	image *models.ImageUpload,
) (*models.Blog, error) {
	if session.UserID == "" {
		return nil, models.ErrUnauthenticated
	}

	if err := s.validatePatch(patch); err != nil {
		return nil, err
	}
	patch.Image = nil

	current, err := s.db.GetBlogByID(ctx, blogID)
	if err != nil {
		return nil, err
	}
	if current.OwnerID != session.UserID {
		return nil, models.ErrForbidden
	}

	reference, err := s.upload(ctx, image)
	if err != nil {
		return nil, err
	}
	if reference != "" {
		patch.Image = &reference
	}

	result, err := s.db.UpdateBlogByID(ctx, blogID, session.UserID, patch)
	if err != nil {
		s.rollbackUpload(ctx, reference)
		return nil, err
	}

	if reference != "" && result.PreviousImage != "" && result.PreviousImage != reference {
		s.reaper.EnqueueJob(&models.AssetRemoveJob{
			Reference: result.PreviousImage,
			BlogID:    blogID,
		})
	}

	return result.Blog, nil
}

// DeleteBlog removes a blog owned by the session user and schedules removal of its image.
func (s *Service) DeleteBlog(ctx context.Context, session auth.Session, blogID string) (*models.Blog, error) {
	if session.UserID == "" {
		return nil, models.ErrUnauthenticated
	}

	removed, err := s.db.DeleteBlogByID(ctx, blogID, session.UserID)
	if err != nil {
		return nil, err
	}

	if removed.Image != "" {
		s.reaper.EnqueueJob(&models.AssetRemoveJob{
			Reference: removed.Image,
			BlogID:    removed.ID,
		})
	}

	return removed, nil
}

// Ping checks the health of the storage layer.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// GetInternalStats returns the number of stored blogs and registered users.
func (s *Service) GetInternalStats(ctx context.Context) (models.InternalStatsResponse, error) {
	blogs, err := s.db.GetNumberOfBlogs(ctx)
	if err != nil {
		return models.InternalStatsResponse{}, err
	}

	users, err := s.db.GetNumberOfUsers(ctx)
	if err != nil {
		return models.InternalStatsResponse{}, err
	}

	return models.InternalStatsResponse{
		Blogs: blogs,
		Users: users,
	}, nil
}

func (s *Service) upload(ctx context.Context, image *models.ImageUpload) (string, error) {
	if image == nil {
		return "", nil
	}

	return s.assets.Upload(ctx, image.Data, image.ContentType, s.assetFolder)
}

// rollbackUpload removes an image whose mutation did not commit. It never fails the caller.
func (s *Service) rollbackUpload(ctx context.Context, reference string) {
	if reference == "" {
		return
	}

	if err := s.assets.Remove(context.WithoutCancel(ctx), reference); err != nil {
		logger.Log.Warnw(
			"could not remove the image of a failed mutation",
			"reference", reference,
			zap.Error(err),
		)
	}
}

func (s *Service) validatePatch(patch models.BlogPatch) error {
	for name, value := range map[string]*string{
		"title":    patch.Title,
		"category": patch.Category,
		"content":  patch.Content,
	} {
		if value != nil && s.validate.Var(*value, "notblank") != nil {
			return fmt.Errorf("%w: %s must not be empty", models.ErrValidation, name)
		}
	}

	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
