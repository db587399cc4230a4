package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/blogshelf/internal/models"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func setupTestServer(t *testing.T, routes func(r chi.Router)) *Client {
	t.Helper()
	r := chi.NewRouter()
	routes(r)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return New(server.URL, WithTimeout(5*time.Second))
}

func TestSignupAndLogin(t *testing.T) {
	client := setupTestServer(t, func(r chi.Router) {
		r.Post("/api/auth/signup", func(w http.ResponseWriter, r *http.Request) {
			var request models.SignupRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
			if request.Email == "taken@example.com" {
				writeJSON(w, http.StatusBadRequest, models.MessageResponse{Message: "User already exists with this email."})
				return
			}
			writeJSON(w, http.StatusCreated, models.AuthResponse{Message: "User registered successfully.", Token: "t-" + request.Name})
		})
		r.Post("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	})
	ctx := context.Background()

	response, err := client.Signup(ctx, models.SignupRequest{Name: "ana", Email: "ana@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "t-ana", response.Token)

	_, err = client.Signup(ctx, models.SignupRequest{Name: "bo", Email: "taken@example.com", Password: "pw"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, StatusOf(err))
	assert.Equal(t, "User already exists with this email.", MessageOf(err))

	// A bodiless error gets the fallback message.
	_, err = client.Login(ctx, models.LoginRequest{Email: "ana@example.com", Password: "bad"})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
	assert.Equal(t, FallbackMessage, MessageOf(err))
}

func TestTransportErrors(t *testing.T) {
	client := New("http://127.0.0.1:1", WithTimeout(time.Second))

	_, err := client.ListBlogs(context.Background(), "token", models.BlogFilter{})
	require.Error(t, err)
	assert.Equal(t, 0, StatusOf(err))
	assert.Equal(t, FallbackMessage, MessageOf(err))
	assert.Equal(t, FallbackMessage, MessageOf(errors.New("anything")))
}

func TestListBlogs(t *testing.T) {
	var seenQuery, seenAuth string
	client := setupTestServer(t, func(r chi.Router) {
		r.Get("/api/blogs", func(w http.ResponseWriter, r *http.Request) {
			seenQuery = r.URL.RawQuery
			seenAuth = r.Header.Get("Authorization")
			if r.URL.Query().Get("author") == "nobody" {
				writeJSON(w, http.StatusOK, []models.Blog{})
				return
			}
			writeJSON(w, http.StatusOK, models.Blogs{{ID: "b1", Title: "A"}})
		})
	})
	ctx := context.Background()

	blogs, err := client.ListBlogs(ctx, "tok", models.BlogFilter{Author: "ana", Category: "tech"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", seenAuth)
	assert.Equal(t, "author=ana&category=tech", seenQuery)
	require.Len(t, blogs, 1)
	assert.Equal(t, "b1", blogs[0].ID)

	blogs, err = client.ListBlogs(ctx, "tok", models.BlogFilter{Author: "nobody"})
	require.NoError(t, err)
	assert.NotNil(t, blogs)
	assert.Empty(t, blogs)
}

func TestCreateBlog(t *testing.T) {
	type received struct {
		title, category, content string
		fileName, contentType    string
		image                    []byte
	}
	var got received
	client := setupTestServer(t, func(r chi.Router) {
		r.Post("/api/blogs", func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseMultipartForm(1<<20))
			got = received{
				title:    r.FormValue("title"),
				category: r.FormValue("category"),
				content:  r.FormValue("content"),
			}
			if file, header, err := r.FormFile("image"); err == nil {
				got.fileName = header.Filename
				got.contentType = header.Header.Get("Content-Type")
				got.image, _ = io.ReadAll(file)
				_ = file.Close()
			}
			writeJSON(w, http.StatusCreated, models.Blog{ID: "b1", Title: got.title, Image: "http://assets/blogs/x"})
		})
	})

	draft := models.BlogDraft{Title: "A", Category: "Tech", Content: "<p>x</p>"}
	blog, err := client.CreateBlog(context.Background(), "tok", draft, &ImageFile{Name: "cover.png", Data: pngHeader})
	require.NoError(t, err)

	assert.Equal(t, "b1", blog.ID)
	assert.Equal(t, "A", got.title)
	assert.Equal(t, "Tech", got.category)
	assert.Equal(t, "<p>x</p>", got.content)
	assert.Equal(t, "cover.png", got.fileName)
	assert.Equal(t, "image/png", got.contentType)
	assert.Equal(t, pngHeader, got.image)
}

func TestUpdateBlogSendsOnlyPatchedFields(t *testing.T) {
	var form map[string][]string
	var seenID string
	client := setupTestServer(t, func(r chi.Router) {
		r.Put("/api/blogs/{id}", func(w http.ResponseWriter, r *http.Request) {
			seenID = chi.URLParam(r, "id")
			require.NoError(t, r.ParseMultipartForm(1<<20))
			form = r.MultipartForm.Value
			writeJSON(w, http.StatusOK, models.Blog{ID: seenID, Title: r.FormValue("title")})
		})
	})

	title := "B"
	blog, err := client.UpdateBlog(context.Background(), "tok", "b1", models.BlogPatch{Title: &title}, nil)
	require.NoError(t, err)

	assert.Equal(t, "b1", seenID)
	assert.Equal(t, "B", blog.Title)
	assert.Equal(t, map[string][]string{"title": {"B"}}, form)
}

func TestDeleteBlog(t *testing.T) {
	client := setupTestServer(t, func(r chi.Router) {
		r.Delete("/api/blogs/{id}", func(w http.ResponseWriter, r *http.Request) {
			switch chi.URLParam(r, "id") {
			case "mine":
				writeJSON(w, http.StatusOK, models.MessageResponse{Message: "Blog deleted successfully."})
			case "theirs":
				writeJSON(w, http.StatusForbidden, models.MessageResponse{Message: "not the owner of the blog"})
			default:
				writeJSON(w, http.StatusNotFound, models.MessageResponse{Message: "blog not found"})
			}
		})
	})
	ctx := context.Background()

	message, err := client.DeleteBlog(ctx, "tok", "mine")
	require.NoError(t, err)
	assert.Equal(t, "Blog deleted successfully.", message)

	_, err = client.DeleteBlog(ctx, "tok", "theirs")
	assert.Equal(t, http.StatusForbidden, StatusOf(err))
	assert.Equal(t, "not the owner of the blog", MessageOf(err))

	_, err = client.DeleteBlog(ctx, "tok", "gone")
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
}
