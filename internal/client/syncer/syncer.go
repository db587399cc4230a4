// Package syncer keeps the client-side picture of the blog server: who is
// logged in, the last fetched list of blogs and the blog picked for the detail
// view. Every resolved action is folded into State by a single locked apply
// step, so readers never observe a half-updated state.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/blogshelf/internal/auth"
	"github.com/patric-chuzhbe/blogshelf/internal/client/apiclient"
	"github.com/patric-chuzhbe/blogshelf/internal/client/sessionstore"
	"github.com/patric-chuzhbe/blogshelf/internal/logger"
	"github.com/patric-chuzhbe/blogshelf/internal/models"
)

// ErrNotLoggedIn is returned by operations that need a session when there is none.
var ErrNotLoggedIn = errors.New("not logged in")

// NotifiedError wraps a failure that has already been reported to the Notifier.
type NotifiedError struct {
	Err error
}

func (e *NotifiedError) Error() string {
	return e.Err.Error()
}

func (e *NotifiedError) Unwrap() error {
	return e.Err
}

const (
	messageNotLoggedIn = "Please log in first."
	messageBlogCreated = "Blog created successfully."
	messageBlogUpdated = "Blog updated successfully."
	messageLoggedOut   = "Logged out."
)

type api interface {
	Signup(ctx context.Context, request models.SignupRequest) (models.AuthResponse, error)
	Login(ctx context.Context, request models.LoginRequest) (models.AuthResponse, error)
	ListBlogs(ctx context.Context, token string, filter models.BlogFilter) (models.Blogs, error)
	CreateBlog(ctx context.Context, token string, draft models.BlogDraft, image *apiclient.ImageFile) (*models.Blog, error)
	UpdateBlog(
		ctx context.Context,
		token string,
		blogID string,
		patch models.BlogPatch,
		image *apiclient.ImageFile,
	) (*models.Blog, error)
	DeleteBlog(ctx context.Context, token string, blogID string) (string, error)
}

type sessionStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetAll(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
}

// Identity is who the client is logged in as.
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email,omitempty"`
}

// State is a snapshot of everything the synchronizer knows.
type State struct {
	Identity   *Identity
	Blogs      models.Blogs
	SelectedID string
	Loading    bool
	LastError  string
}

// NotificationKind tells success notifications from failures.
type NotificationKind int

const (
	NotificationSuccess NotificationKind = iota
	NotificationError
)

// Notification is the single user-facing outcome of a mutation.
type Notification struct {
	Kind    NotificationKind
	Message string
}

// Notifier receives notifications. It is called without the state lock held.
type Notifier func(Notification)

type persistedUser struct {
	Identity
	Token string `json:"token"`
}

// Synchronizer owns State. It is safe for concurrent use.
type Synchronizer struct {
	api    api
	store  sessionStore
	notify Notifier

	mu       sync.Mutex
	state    State
	token    string
	fetchSeq uint64
}

// InitOption configures New.
type InitOption func(*Synchronizer)

// WithNotifier registers the receiver of mutation outcomes.
func WithNotifier(notify Notifier) InitOption {
	return func(s *Synchronizer) {
		s.notify = notify
	}
}

// New creates a Synchronizer and restores the session persisted in store, if any.
func New(ctx context.Context, client api, store sessionStore, opts ...InitOption) (*Synchronizer, error) {
	s := &Synchronizer{
		api:    client,
		store:  store,
		notify: func(Notification) {},
		state:  State{Blogs: models.Blogs{}},
	}
	for _, opt := range opts {
		opt(s)
	}

	raw, found, err := store.Get(ctx, sessionstore.KeyUser)
	if err != nil {
		return nil, fmt.Errorf("in internal/client/syncer/syncer.go/New(): error while `store.Get()` calling: %w", err)
	}
	if !found {
		return s, nil
	}

	var user persistedUser
	if err := json.Unmarshal([]byte(raw), &user); err != nil || user.Token == "" || user.UserID == "" {
		logger.Log.Debugw("dropping unreadable persisted session", "err", err)
		if err := store.Delete(ctx, sessionstore.KeyUser, sessionstore.KeyToken); err != nil {
			return nil, err
		}
		return s, nil
	}

	identity := user.Identity
	s.token = user.Token
	s.state.Identity = &identity

	return s, nil
}

func (s *Synchronizer) apply(fn func(state *State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

// State returns a copy of the current state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state
	snapshot.Blogs = append(models.Blogs{}, s.state.Blogs...)
	if s.state.Identity != nil {
		identity := *s.state.Identity
		snapshot.Identity = &identity
	}
	return snapshot
}

// Token returns the raw session token, empty when logged out.
func (s *Synchronizer) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Signup registers an account and logs in with the issued token.
func (s *Synchronizer) Signup(ctx context.Context, request models.SignupRequest) error {
	response, err := s.api.Signup(ctx, request)
	if err != nil {
		return s.fail(err)
	}
	return s.startSession(ctx, request.Email, response)
}

// Login exchanges credentials for a session.
func (s *Synchronizer) Login(ctx context.Context, request models.LoginRequest) error {
	response, err := s.api.Login(ctx, request)
	if err != nil {
		return s.fail(err)
	}
	return s.startSession(ctx, request.Email, response)
}

func (s *Synchronizer) startSession(ctx context.Context, email string, response models.AuthResponse) error {
	userID, err := auth.DecodeIdentity(response.Token)
	if err != nil {
		return s.fail(err)
	}

	identity := Identity{UserID: userID, Email: email}
	raw, err := json.Marshal(persistedUser{Identity: identity, Token: response.Token})
	if err != nil {
		return s.fail(err)
	}
	err = s.store.SetAll(ctx, map[string]string{
		sessionstore.KeyUser:  string(raw),
		sessionstore.KeyToken: response.Token,
	})
	if err != nil {
		return s.fail(fmt.Errorf("in internal/client/syncer/syncer.go/startSession(): error while `s.store.SetAll()` calling: %w", err))
	}

	s.apply(func(state *State) {
		s.token = response.Token
		s.fetchSeq++
		state.Identity = &identity
		state.Loading = false
		state.LastError = ""
	})
	s.notify(Notification{Kind: NotificationSuccess, Message: response.Message})

	return nil
}

// Logout forgets the session locally. The server keeps no session state to revoke.
func (s *Synchronizer) Logout(ctx context.Context) error {
	if err := s.store.Delete(ctx, sessionstore.KeyUser, sessionstore.KeyToken); err != nil {
		return s.fail(err)
	}

	s.apply(func(state *State) {
		s.token = ""
		s.fetchSeq++
		*state = State{Blogs: models.Blogs{}}
	})
	s.notify(Notification{Kind: NotificationSuccess, Message: messageLoggedOut})

	return nil
}

// FetchAll replaces the cached blogs with the server's list. When fetches
// overlap only the most recently started one is applied, and a fetch started
// before a login or logout is never applied. Failures are recorded in
// LastError but not notified.
func (s *Synchronizer) FetchAll(ctx context.Context, filter models.BlogFilter) error {
	var (
		seq   uint64
		token string
	)
	s.apply(func(state *State) {
		s.fetchSeq++
		seq = s.fetchSeq
		token = s.token
		state.Loading = true
	})
	if token == "" {
		s.apply(func(state *State) {
			if seq == s.fetchSeq {
				state.Loading = false
				state.LastError = messageNotLoggedIn
			}
		})
		return ErrNotLoggedIn
	}

	blogs, err := s.api.ListBlogs(ctx, token, filter)

	s.apply(func(state *State) {
		if seq != s.fetchSeq {
			return
		}
		state.Loading = false
		if err != nil {
			state.LastError = apiclient.MessageOf(err)
			return
		}
		state.Blogs = blogs
		state.LastError = ""
	})

	return err
}

// Select marks a blog for the detail view.
func (s *Synchronizer) Select(blogID string) {
	s.apply(func(state *State) {
		state.SelectedID = blogID
	})
}

// Selected resolves the selected blog from the cache. A blog that no fetch
// has brought into the cache is models.ErrNotFound; no request is made.
func (s *Synchronizer) Selected() (models.Blog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.SelectedID == "" {
		return models.Blog{}, models.ErrNotFound
	}
	for _, blog := range s.state.Blogs {
		if blog.ID == s.state.SelectedID {
			return blog, nil
		}
	}
	return models.Blog{}, models.ErrNotFound
}

// MyPosts is the part of the cache owned by the logged-in user.
func (s *Synchronizer) MyPosts() models.Blogs {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Identity == nil {
		return models.Blogs{}
	}
	userID := s.state.Identity.UserID
	return funk.Filter(s.state.Blogs, func(blog models.Blog) bool {
		return blog.OwnerID == userID
	}).([]models.Blog)
}

// Create publishes a blog and puts the stored record at the head of the cache.
func (s *Synchronizer) Create(ctx context.Context, draft models.BlogDraft, image *apiclient.ImageFile) (*models.Blog, error) {
	token := s.Token()
	if token == "" {
		return nil, s.fail(ErrNotLoggedIn)
	}

	blog, err := s.api.CreateBlog(ctx, token, draft, image)
	if err != nil {
		return nil, s.fail(err)
	}

	s.apply(func(state *State) {
		rest := withoutBlog(state.Blogs, blog.ID)
		state.Blogs = append(models.Blogs{*blog}, rest...)
		state.LastError = ""
	})
	s.notify(Notification{Kind: NotificationSuccess, Message: messageBlogCreated})

	return blog, nil
}

// Update changes a blog and replaces its cached copy with the server's.
func (s *Synchronizer) Update(
	ctx context.Context,
	blogID string,
	patch models.BlogPatch,
	image *apiclient.ImageFile,
) (*models.Blog, error) {
	token := s.Token()
	if token == "" {
		return nil, s.fail(ErrNotLoggedIn)
	}

	blog, err := s.api.UpdateBlog(ctx, token, blogID, patch, image)
	if err != nil {
		return nil, s.fail(err)
	}

	s.apply(func(state *State) {
		blogs := make(models.Blogs, len(state.Blogs))
		copy(blogs, state.Blogs)
		for i := range blogs {
			if blogs[i].ID == blog.ID {
				blogs[i] = *blog
			}
		}
		state.Blogs = blogs
		state.LastError = ""
	})
	s.notify(Notification{Kind: NotificationSuccess, Message: messageBlogUpdated})

	return blog, nil
}

// Delete removes a blog on the server and from the cache.
func (s *Synchronizer) Delete(ctx context.Context, blogID string) error {
	token := s.Token()
	if token == "" {
		return s.fail(ErrNotLoggedIn)
	}

	message, err := s.api.DeleteBlog(ctx, token, blogID)
	if err != nil {
		return s.fail(err)
	}

	s.apply(func(state *State) {
		state.Blogs = withoutBlog(state.Blogs, blogID)
		if state.SelectedID == blogID {
			state.SelectedID = ""
		}
		state.LastError = ""
	})
	s.notify(Notification{Kind: NotificationSuccess, Message: message})

	return nil
}

// fail records err as the last error, emits the failure notification and
// returns err wrapped in NotifiedError.
func (s *Synchronizer) fail(err error) error {
	message := apiclient.MessageOf(err)
	if errors.Is(err, ErrNotLoggedIn) {
		message = messageNotLoggedIn
	}

	s.apply(func(state *State) {
		state.LastError = message
	})
	s.notify(Notification{Kind: NotificationError, Message: message})

	return &NotifiedError{Err: err}
}

func withoutBlog(blogs models.Blogs, blogID string) models.Blogs {
	result := make(models.Blogs, 0, len(blogs))
	for _, blog := range blogs {
		if blog.ID != blogID {
			result = append(result, blog)
		}
	}
	return result
}
