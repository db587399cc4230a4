// Package mockstorage provides a testify-based mock implementation
// of the storage interfaces used by the service and router packages.
// It is used for unit testing failure paths that real backends cannot
// produce on demand.
package mockstorage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/patric-chuzhbe/blogshelf/internal/models"
	"github.com/patric-chuzhbe/blogshelf/internal/user"
)

// StorageMock is a testify mock that implements every storage method
// the blog service calls.
type StorageMock struct {
	mock.Mock

	// OnGetNumberOfUsers is an optional function field that can be assigned
	// to define custom mock behavior for GetNumberOfUsers in tests.
	//
	// If set, GetNumberOfUsers will delegate to this function instead of
	// using testify's generic mock handler.
	OnGetNumberOfUsers func(ctx context.Context) (int64, error)

	// OnGetNumberOfBlogs works like OnGetNumberOfUsers for GetNumberOfBlogs.
	OnGetNumberOfBlogs func(ctx context.Context) (int64, error)
}

// Ping mocks the pinger interface to simulate a health check.
func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// CreateUser mocks user registration.
func (m *StorageMock) CreateUser(ctx context.Context, usr *user.User) (string, error) {
	args := m.Called(ctx, usr)
	return args.String(0), args.Error(1)
}

// GetUserByID mocks the user lookup by id.
func (m *StorageMock) GetUserByID(ctx context.Context, userID string) (*user.User, error) {
	args := m.Called(ctx, userID)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Error(1)
}

// GetUserByEmail mocks the user lookup by email.
func (m *StorageMock) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	args := m.Called(ctx, email)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Error(1)
}

// ListBlogs mocks the filtered listing.
func (m *StorageMock) ListBlogs(ctx context.Context, filter models.BlogFilter) (models.Blogs, error) {
	args := m.Called(ctx, filter)
	blogs, _ := args.Get(0).(models.Blogs)
	return blogs, args.Error(1)
}

// GetBlogByID mocks the single record lookup.
func (m *StorageMock) GetBlogByID(ctx context.Context, blogID string) (*models.Blog, error) {
	args := m.Called(ctx, blogID)
	blog, _ := args.Get(0).(*models.Blog)
	return blog, args.Error(1)
}

// InsertBlog mocks storing a new record.
func (m *StorageMock) InsertBlog(ctx context.Context, blog *models.Blog) (*models.Blog, error) {
	args := m.Called(ctx, blog)
	stored, _ := args.Get(0).(*models.Blog)
	return stored, args.Error(1)
}

// UpdateBlogByID mocks the owner-scoped partial update.
func (m *StorageMock) UpdateBlogByID(
	ctx context.Context,
	blogID string,
	ownerID string,
	patch models.BlogPatch,
) (*models.BlogUpdateResult, error) {
	args := m.Called(ctx, blogID, ownerID, patch)
	result, _ := args.Get(0).(*models.BlogUpdateResult)
	return result, args.Error(1)
}

// DeleteBlogByID mocks the owner-scoped delete.
func (m *StorageMock) DeleteBlogByID(ctx context.Context, blogID string, ownerID string) (*models.Blog, error) {
	args := m.Called(ctx, blogID, ownerID)
	removed, _ := args.Get(0).(*models.Blog)
	return removed, args.Error(1)
}

// GetNumberOfBlogs returns the number of stored blogs.
//
// If OnGetNumberOfBlogs is set, it delegates to it; otherwise it uses testify's mock.Called.
func (m *StorageMock) GetNumberOfBlogs(ctx context.Context) (int64, error) {
	if m.OnGetNumberOfBlogs != nil {
		return m.OnGetNumberOfBlogs(ctx)
	}
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// GetNumberOfUsers returns the number of registered users.
//
// If OnGetNumberOfUsers is set, it delegates to it; otherwise it uses testify's mock.Called.
func (m *StorageMock) GetNumberOfUsers(ctx context.Context) (int64, error) {
	if m.OnGetNumberOfUsers != nil {
		return m.OnGetNumberOfUsers(ctx)
	}
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// Close mocks releasing the storage.
func (m *StorageMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
