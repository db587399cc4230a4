// Package postgresdb provides a PostgreSQL-based implementation of the blog
// and user storage. Ownership checks are folded into the mutating statements
// themselves, so a concurrent request by another user can never slip between
// the check and the write.
package postgresdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/patric-chuzhbe/blogshelf/internal/models"
	"github.com/patric-chuzhbe/blogshelf/internal/user"
)

const blogColumns = `id, title, category, author, content, image, owner_id, created_at, updated_at`

// PostgresDB is a PostgreSQL-backed storage.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
	now               func() time.Time
}

type rowScanner interface {
	Scan(dest ...any) error
}

type initOptions struct {
	DBPreReset bool
}

// InitOption defines a functional option for configuring database initialization.
type InitOption func(*initOptions)

// WithDBPreReset drops every table before migrating. Tests use it to start clean.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = value
	}
}

// New connects to databaseDSN and applies the goose migrations from migrationsDir.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	migrationsDir string,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
		now:               func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}

	if options.DBPreReset {
		if err := result.resetDB(ctx); err != nil {
			return nil,
				fmt.Errorf(
					"in internal/db/postgresdb/postgresdb.go/New(): error while `result.resetDB()` calling: %w",
					err,
				)
		}
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.SetDialect()` calling: %w",
				err,
			)
	}

	if err := goose.UpContext(ctx, result.database, migrationsDir); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.UpContext()` calling: %w",
				err,
			)
	}

	return result, nil
}

// CreateUser inserts usr and returns the new id, or models.ErrEmailTaken.
func (db *PostgresDB) CreateUser(ctx context.Context, usr *user.User) (string, error) {
	var userID string
	err := db.database.QueryRowContext(
		ctx,
		`
			INSERT INTO users (id, name, email, password_hash, created_at)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (email) DO NOTHING
				RETURNING id
		`,
		uuid.New().String(),
		usr.Name,
		usr.Email,
		usr.PasswordHash,
		db.now(),
	).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", models.ErrEmailTaken
	}
	if err != nil {
		return "", err
	}

	return userID, nil
}

// GetUserByID returns models.ErrUserNotFound for unknown ids.
func (db *PostgresDB) GetUserByID(ctx context.Context, userID string) (*user.User, error) {
	return db.getUser(ctx, `WHERE id = $1`, userID)
}

// GetUserByEmail returns models.ErrUserNotFound for unknown emails.
func (db *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return db.getUser(ctx, `WHERE email = $1`, email)
}

func (db *PostgresDB) getUser(ctx context.Context, where string, arg string) (*user.User, error) {
	usr := &user.User{}
	err := db.database.QueryRowContext(
		ctx,
		`SELECT id, name, email, password_hash, created_at FROM users `+where,
		arg,
	).Scan(&usr.ID, &usr.Name, &usr.Email, &usr.PasswordHash, &usr.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return usr, nil
}

// ListBlogs returns the blogs whose author and category contain the filter
// values case-insensitively, newest first.
func (db *PostgresDB) ListBlogs(ctx context.Context, filter models.BlogFilter) (models.Blogs, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`
			SELECT `+blogColumns+`
				FROM blogs
				WHERE author ILIKE '%' || $1 || '%'
					AND category ILIKE '%' || $2 || '%'
				ORDER BY created_at DESC, id DESC
		`,
		escapeLike(filter.Author),
		escapeLike(filter.Category),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := models.Blogs{}
	for rows.Next() {
		blog, err := scanBlog(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *blog)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// GetBlogByID returns models.ErrNotFound for unknown ids.
func (db *PostgresDB) GetBlogByID(ctx context.Context, blogID string) (*models.Blog, error) {
	blog, err := scanBlog(db.database.QueryRowContext(
		ctx,
		`SELECT `+blogColumns+` FROM blogs WHERE id = $1`,
		blogID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}

	return blog, err
}

// InsertBlog assigns id and timestamps and stores the record.
func (db *PostgresDB) InsertBlog(ctx context.Context, blog *models.Blog) (*models.Blog, error) {
	now := db.now()

	return scanBlog(db.database.QueryRowContext(
		ctx,
		`
			INSERT INTO blogs (`+blogColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
				RETURNING `+blogColumns,
		uuid.New().String(),
		blog.Title,
		blog.Category,
		blog.Author,
		blog.Content,
		blog.Image,
		blog.OwnerID,
		now,
	))
}

// UpdateBlogByID applies patch in one statement matching both id and owner.
// The image the row held before the update is returned alongside the new row.
func (db *PostgresDB) UpdateBlogByID(
	ctx context.Context,
	blogID string,
	ownerID string,
	patch models.BlogPatch,
) (*models.BlogUpdateResult, error) {
	row := db.database.QueryRowContext(
		ctx,
		`
			UPDATE blogs AS b
				SET title = COALESCE($3, b.title),
					category = COALESCE($4, b.category),
					content = COALESCE($5, b.content),
					image = COALESCE($6, b.image),
					updated_at = $7
				FROM (SELECT id, image FROM blogs WHERE id = $1 FOR UPDATE) AS old
				WHERE b.id = old.id
					AND b.owner_id = $2
				RETURNING b.id, b.title, b.category, b.author, b.content, b.image,
					b.owner_id, b.created_at, b.updated_at, old.image
		`,
		blogID,
		ownerID,
		nullable(patch.Title),
		nullable(patch.Category),
		nullable(patch.Content),
		nullable(patch.Image),
		db.now(),
	)

	blog := &models.Blog{}
	var previousImage string
	err := row.Scan(
		&blog.ID, &blog.Title, &blog.Category, &blog.Author, &blog.Content, &blog.Image,
		&blog.OwnerID, &blog.CreatedAt, &blog.UpdatedAt, &previousImage,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.explainMiss(ctx, blogID)
	}
	if err != nil {
		return nil, err
	}

	return &models.BlogUpdateResult{Blog: blog, PreviousImage: previousImage}, nil
}

// DeleteBlogByID removes the record when ownerID owns it and returns what was removed.
func (db *PostgresDB) DeleteBlogByID(ctx context.Context, blogID string, ownerID string) (*models.Blog, error) {
	blog, err := scanBlog(db.database.QueryRowContext(
		ctx,
		`DELETE FROM blogs WHERE id = $1 AND owner_id = $2 RETURNING `+blogColumns,
		blogID,
		ownerID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.explainMiss(ctx, blogID)
	}

	return blog, err
}

// explainMiss tells apart a missing record from one owned by somebody else
// after a conditional statement matched no rows.
func (db *PostgresDB) explainMiss(ctx context.Context, blogID string) error {
	var exists bool
	err := db.database.QueryRowContext(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM blogs WHERE id = $1)`,
		blogID,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return models.ErrForbidden
	}

	return models.ErrNotFound
}

// GetNumberOfBlogs returns the number of stored blogs.
func (db *PostgresDB) GetNumberOfBlogs(ctx context.Context) (int64, error) {
	return db.count(ctx, `SELECT COUNT(*) FROM blogs`)
}

// GetNumberOfUsers returns the number of registered users.
func (db *PostgresDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	return db.count(ctx, `SELECT COUNT(*) FROM users`)
}

func (db *PostgresDB) count(ctx context.Context, query string) (int64, error) {
	var result int64
	if err := db.database.QueryRowContext(ctx, query).Scan(&result); err != nil {
		return 0, err
	}

	return result, nil
}

// Ping verifies connectivity with the PostgreSQL database within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

// Close closes the database connection and releases any associated resources.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			DO $$
			DECLARE
				r RECORD;
			BEGIN
				FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
					EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
				END LOOP;
			END $$;
		`,
	)
	if err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/resetDB(): error while `db.database.ExecContext()` calling: %w",
			err,
		)
	}
	return nil
}

func scanBlog(row rowScanner) (*models.Blog, error) {
	blog := &models.Blog{}
	err := row.Scan(
		&blog.ID, &blog.Title, &blog.Category, &blog.Author, &blog.Content, &blog.Image,
		&blog.OwnerID, &blog.CreatedAt, &blog.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return blog, nil
}

func nullable(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}

	return sql.NullString{String: *value, Valid: true}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}
