// Package storagetest holds the behaviour every blog storage backend must
// share. Backend packages call Run from their own tests.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/blogshelf/internal/models"
	"github.com/patric-chuzhbe/blogshelf/internal/user"
)

// Storage is the full surface the blog service needs from a backend.
type Storage interface {
	CreateUser(ctx context.Context, usr *user.User) (string, error)
	GetUserByID(ctx context.Context, userID string) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
	ListBlogs(ctx context.Context, filter models.BlogFilter) (models.Blogs, error)
	GetBlogByID(ctx context.Context, blogID string) (*models.Blog, error)
	InsertBlog(ctx context.Context, blog *models.Blog) (*models.Blog, error)
	UpdateBlogByID(ctx context.Context, blogID, ownerID string, patch models.BlogPatch) (*models.BlogUpdateResult, error)
	DeleteBlogByID(ctx context.Context, blogID, ownerID string) (*models.Blog, error)
	GetNumberOfBlogs(ctx context.Context) (int64, error)
	GetNumberOfUsers(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

func ptr(s string) *string { return &s }

// Run executes the suite. newStorage must return an empty storage.
func Run(t *testing.T, newStorage func(t *testing.T) Storage) {
	t.Run("users", func(t *testing.T) {
		ctx := context.Background()
		db := newStorage(t)

		id, err := db.CreateUser(ctx, &user.User{Name: "Ana", Email: "ana@example.com", PasswordHash: "h"})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		_, err = db.CreateUser(ctx, &user.User{Name: "Other Ana", Email: "ana@example.com", PasswordHash: "h"})
		assert.ErrorIs(t, err, models.ErrEmailTaken)

		byID, err := db.GetUserByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Ana", byID.Name)

		byEmail, err := db.GetUserByEmail(ctx, "ana@example.com")
		require.NoError(t, err)
		assert.Equal(t, id, byEmail.ID)
		assert.Equal(t, "h", byEmail.PasswordHash)

		_, err = db.GetUserByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, models.ErrUserNotFound)

		users, err := db.GetNumberOfUsers(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), users)
	})

	t.Run("blogs lifecycle", func(t *testing.T) {
		ctx := context.Background()
		db := newStorage(t)

		owner, err := db.CreateUser(ctx, &user.User{Name: "Ana", Email: "ana@example.com", PasswordHash: "h"})
		require.NoError(t, err)
		stranger, err := db.CreateUser(ctx, &user.User{Name: "Bob", Email: "bob@example.com", PasswordHash: "h"})
		require.NoError(t, err)

		inserted, err := db.InsertBlog(ctx, &models.Blog{
			Title: "A", Category: "Tech", Author: "Ana", Content: "<p>x</p>", OwnerID: owner,
		})
		require.NoError(t, err)
		require.NotEmpty(t, inserted.ID)
		assert.False(t, inserted.CreatedAt.IsZero())
		assert.Equal(t, inserted.CreatedAt, inserted.UpdatedAt)
		assert.Empty(t, inserted.Image)

		fetched, err := db.GetBlogByID(ctx, inserted.ID)
		require.NoError(t, err)
		assert.Equal(t, inserted.Title, fetched.Title)

		_, err = db.UpdateBlogByID(ctx, inserted.ID, stranger, models.BlogPatch{Title: ptr("hijacked")})
		assert.ErrorIs(t, err, models.ErrForbidden)

		_, err = db.UpdateBlogByID(ctx, "missing", owner, models.BlogPatch{Title: ptr("B")})
		assert.ErrorIs(t, err, models.ErrNotFound)

		time.Sleep(2 * time.Millisecond)
		updated, err := db.UpdateBlogByID(ctx, inserted.ID, owner, models.BlogPatch{
			Title: ptr("B"),
			Image: ptr("https://cdn.example.com/blogs/new"),
		})
		require.NoError(t, err)
		assert.Equal(t, "B", updated.Blog.Title)
		assert.Equal(t, "Tech", updated.Blog.Category, "absent fields are untouched")
		assert.Equal(t, "<p>x</p>", updated.Blog.Content)
		assert.Equal(t, owner, updated.Blog.OwnerID)
		assert.Equal(t, "https://cdn.example.com/blogs/new", updated.Blog.Image)
		assert.Empty(t, updated.PreviousImage)
		assert.True(t, updated.Blog.UpdatedAt.After(inserted.UpdatedAt))

		replaced, err := db.UpdateBlogByID(ctx, inserted.ID, owner, models.BlogPatch{
			Image: ptr("https://cdn.example.com/blogs/newer"),
		})
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/blogs/new", replaced.PreviousImage)

		_, err = db.DeleteBlogByID(ctx, inserted.ID, stranger)
		assert.ErrorIs(t, err, models.ErrForbidden)

		stillThere, err := db.GetBlogByID(ctx, inserted.ID)
		require.NoError(t, err)
		assert.Equal(t, "B", stillThere.Title, "forbidden attempts leave the record unchanged")

		removed, err := db.DeleteBlogByID(ctx, inserted.ID, owner)
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/blogs/newer", removed.Image)

		_, err = db.GetBlogByID(ctx, inserted.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)

		_, err = db.DeleteBlogByID(ctx, inserted.ID, owner)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("list filters and ordering", func(t *testing.T) {
		ctx := context.Background()
		db := newStorage(t)

		owner, err := db.CreateUser(ctx, &user.User{Name: "x", Email: "x@example.com", PasswordHash: "h"})
		require.NoError(t, err)

		seed := []models.Blog{
			{Title: "1", Category: "Tech", Author: "Ana Lima", Content: "c", OwnerID: owner},
			{Title: "2", Category: "Travel", Author: "Mariana", Content: "c", OwnerID: owner},
			{Title: "3", Category: "Food", Author: "Bob", Content: "c", OwnerID: owner},
			{Title: "4", Category: "technology", Author: "bob 100%", Content: "c", OwnerID: owner},
		}
		for i := range seed {
			_, err := db.InsertBlog(ctx, &seed[i])
			require.NoError(t, err)
			time.Sleep(2 * time.Millisecond)
		}

		titles := func(blogs models.Blogs) []string {
			result := make([]string, 0, len(blogs))
			for _, blog := range blogs {
				result = append(result, blog.Title)
			}
			return result
		}

		all, err := db.ListBlogs(ctx, models.BlogFilter{})
		require.NoError(t, err)
		assert.Equal(t, []string{"4", "3", "2", "1"}, titles(all), "newest first")

		tests := []struct {
			name   string
			filter models.BlogFilter
			want   []string
		}{
			{name: "author substring, any case", filter: models.BlogFilter{Author: "ANA"}, want: []string{"2", "1"}},
			{name: "category substring", filter: models.BlogFilter{Category: "tech"}, want: []string{"4", "1"}},
			{name: "both", filter: models.BlogFilter{Author: "bob", Category: "TECH"}, want: []string{"4"}},
			{name: "like wildcards are literal", filter: models.BlogFilter{Author: "%"}, want: []string{"4"}},
			{name: "no match", filter: models.BlogFilter{Author: "zed"}, want: []string{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				blogs, err := db.ListBlogs(ctx, tt.filter)
				require.NoError(t, err)
				assert.Equal(t, tt.want, titles(blogs))
			})
		}

		count, err := db.GetNumberOfBlogs(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(4), count)

		assert.NoError(t, db.Ping(ctx))
	})
}
