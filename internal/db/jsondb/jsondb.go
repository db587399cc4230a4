// Package jsondb is a blog and user storage kept in memory and persisted to a
// JSON file after every mutation. It suits single-process development setups.
package jsondb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/blogshelf/internal/models"
	"github.com/patric-chuzhbe/blogshelf/internal/user"
)

// JSONDB holds the whole dataset in Cache. An empty fileName disables persistence.
type JSONDB struct {
	fileName string
	mu       sync.RWMutex
	Cache    CacheStruct
	now      func() time.Time
}

// CacheStruct is the on-disk document.
type CacheStruct struct {
	Users           map[string]*user.User
	EmailsToUserIDs map[string]string
	Blogs           map[string]*models.Blog
}

// NewCache returns an empty dataset.
func NewCache() CacheStruct {
	return CacheStruct{
		Users:           map[string]*user.User{},
		EmailsToUserIDs: map[string]string{},
		Blogs:           map[string]*models.Blog{},
	}
}

// New loads fileName, creating it when it does not exist yet.
func New(fileName string) (*JSONDB, error) {
	db := NewWithCache(fileName, NewCache())

	err := parseJSONFile(fileName, &db.Cache)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("in internal/db/jsondb/jsondb.go/New(): error while `parseJSONFile()` calling: %w", err)
		}
		if err := writeToJSONFile(fileName, db.Cache); err != nil {
			return nil, err
		}
	}
	db.Cache.ensureMaps()

	return db, nil
}

// NewWithCache wraps an existing dataset.
func NewWithCache(fileName string, cache CacheStruct) *JSONDB {
	cache.ensureMaps()
	return &JSONDB{
		fileName: fileName,
		Cache:    cache,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (c *CacheStruct) ensureMaps() {
	if c.Users == nil {
		c.Users = map[string]*user.User{}
	}
	if c.EmailsToUserIDs == nil {
		c.EmailsToUserIDs = map[string]string{}
	}
	if c.Blogs == nil {
		c.Blogs = map[string]*models.Blog{}
	}
}

// CreateUser stores usr and returns its new id. Emails are unique.
func (db *JSONDB) CreateUser(ctx context.Context, usr *user.User) (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, taken := db.Cache.EmailsToUserIDs[usr.Email]; taken {
		return "", models.ErrEmailTaken
	}

	stored := *usr
	stored.ID = uuid.New().String()
	stored.CreatedAt = db.now()
	db.Cache.Users[stored.ID] = &stored
	db.Cache.EmailsToUserIDs[stored.Email] = stored.ID

	return stored.ID, db.flush()
}

// GetUserByID returns models.ErrUserNotFound for unknown ids.
func (db *JSONDB) GetUserByID(ctx context.Context, userID string) (*user.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	usr, ok := db.Cache.Users[userID]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	result := *usr

	return &result, nil
}

// GetUserByEmail returns models.ErrUserNotFound for unknown emails.
func (db *JSONDB) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	db.mu.RLock()
	userID, ok := db.Cache.EmailsToUserIDs[email]
	db.mu.RUnlock()
	if !ok {
		return nil, models.ErrUserNotFound
	}

	return db.GetUserByID(ctx, userID)
}

// ListBlogs returns the blogs matching filter, newest first.
func (db *JSONDB) ListBlogs(ctx context.Context, filter models.BlogFilter) (models.Blogs, error) {
	db.mu.RLock()
	all := make(models.Blogs, 0, len(db.Cache.Blogs))
	for _, blog := range db.Cache.Blogs {
		all = append(all, *blog)
	}
	db.mu.RUnlock()

	author := strings.ToLower(filter.Author)
	category := strings.ToLower(filter.Category)
	result := funk.Filter(all, func(blog models.Blog) bool {
		return strings.Contains(strings.ToLower(blog.Author), author) &&
			strings.Contains(strings.ToLower(blog.Category), category)
	}).([]models.Blog)

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	return result, nil
}

// GetBlogByID returns models.ErrNotFound for unknown ids.
func (db *JSONDB) GetBlogByID(ctx context.Context, blogID string) (*models.Blog, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	blog, ok := db.Cache.Blogs[blogID]
	if !ok {
		return nil, models.ErrNotFound
	}
	result := *blog

	return &result, nil
}

// InsertBlog assigns id and timestamps and stores the record.
func (db *JSONDB) InsertBlog(ctx context.Context, blog *models.Blog) (*models.Blog, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored := *blog
	stored.ID = uuid.New().String()
	stored.CreatedAt = db.now()
	stored.UpdatedAt = stored.CreatedAt
	db.Cache.Blogs[stored.ID] = &stored

	if err := db.flush(); err != nil {
		delete(db.Cache.Blogs, stored.ID)
		return nil, err
	}
	result := stored

	return &result, nil
}

// UpdateBlogByID applies patch when ownerID owns the record.
func (db *JSONDB) UpdateBlogByID(
	ctx context.Context,
	blogID string,
	ownerID string,
	patch models.BlogPatch,
) (*models.BlogUpdateResult, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	blog, err := db.ownedBlog(blogID, ownerID)
	if err != nil {
		return nil, err
	}

	before := *blog
	if patch.Title != nil {
		blog.Title = *patch.Title
	}
	if patch.Category != nil {
		blog.Category = *patch.Category
	}
	if patch.Content != nil {
		blog.Content = *patch.Content
	}
	if patch.Image != nil {
		blog.Image = *patch.Image
	}
	blog.UpdatedAt = db.now()

	if err := db.flush(); err != nil {
		*blog = before
		return nil, err
	}
	result := *blog

	return &models.BlogUpdateResult{Blog: &result, PreviousImage: before.Image}, nil
}

// DeleteBlogByID removes the record when ownerID owns it and returns what was removed.
func (db *JSONDB) DeleteBlogByID(ctx context.Context, blogID string, ownerID string) (*models.Blog, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	blog, err := db.ownedBlog(blogID, ownerID)
	if err != nil {
		return nil, err
	}

	delete(db.Cache.Blogs, blogID)
	if err := db.flush(); err != nil {
		db.Cache.Blogs[blogID] = blog
		return nil, err
	}
	result := *blog

	return &result, nil
}

// GetNumberOfBlogs returns the number of stored blogs.
func (db *JSONDB) GetNumberOfBlogs(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return int64(len(db.Cache.Blogs)), nil
}

// GetNumberOfUsers returns the number of registered users.
func (db *JSONDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return int64(len(db.Cache.Users)), nil
}

// Ping always succeeds; the data is in memory.
func (db *JSONDB) Ping(ctx context.Context) error {
	return nil
}

// Close writes the dataset one last time.
func (db *JSONDB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.flush()
}

func (db *JSONDB) ownedBlog(blogID, ownerID string) (*models.Blog, error) {
	blog, ok := db.Cache.Blogs[blogID]
	if !ok {
		return nil, models.ErrNotFound
	}
	if blog.OwnerID != ownerID {
		return nil, models.ErrForbidden
	}

	return blog, nil
}

// flush must be called with mu held.
func (db *JSONDB) flush() error {
	if db.fileName == "" {
		return nil
	}

	return writeToJSONFile(db.fileName, db.Cache)
}

func writeToJSONFile(fileName string, cache interface{}) error {
	jsonData, err := json.MarshalIndent(cache, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}

	tmpName := fileName + ".tmp"
	if err := os.WriteFile(tmpName, jsonData, 0o644); err != nil {
		return fmt.Errorf("error writing to file: %w", err)
	}

	if err := os.Rename(tmpName, fileName); err != nil {
		return errors.Join(fmt.Errorf("error replacing file: %w", err), os.Remove(tmpName))
	}

	return nil
}

func parseJSONFile(fileName string, cache *CacheStruct) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(cache)
}
