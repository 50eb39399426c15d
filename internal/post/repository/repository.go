package repository

import (
	"context"
	"time"

	pgx "github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/ysamarin/postline/backend/internal/common/db"
	"github.com/ysamarin/postline/backend/internal/post/domain"
)

var ErrPostNotFound = pgx.ErrNoRows

// Repository scopes every mutation by (id, author_id) so a foreign post and
// a nonexistent one produce the same zero-row outcome.
type Repository interface {
	Create(ctx context.Context, post domain.Post) error
	Update(ctx context.Context, id, authorID string, content *string, hidden *bool, updatedAt time.Time) (domain.Post, error)
	Delete(ctx context.Context, id, authorID string) error
	ListByAuthor(ctx context.Context, authorID string, limit, offset int) ([]domain.Post, error)
	CountByAuthor(ctx context.Context, authorID string) (int, error)
	ListPublic(ctx context.Context, limit, offset int) ([]domain.FeedPost, error)
	CountPublic(ctx context.Context) (int, error)
}

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Create(ctx context.Context, post domain.Post) error {
	start := time.Now()
	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO posts (id, author_id, content, hidden, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		post.ID,
		post.AuthorID,
		post.Content,
		post.Hidden,
		post.CreatedAt,
		post.UpdatedAt,
	)
	if err != nil {
		return db.HandleExecError(err, "create post", start)
	}
	db.MeasureQueryDuration("create post", start)
	return nil
}

// Update patches content and hidden in one statement. A nil field keeps the
// stored value, so full and partial updates share this path.
func (r *PgRepository) Update(
	ctx context.Context,
	id, authorID string,
	content *string,
	hidden *bool,
	updatedAt time.Time,
) (domain.Post, error) {
	start := time.Now()
	row := r.pool.QueryRow(
		ctx,
		`UPDATE posts
		 SET content = COALESCE($1, content),
		     hidden = COALESCE($2, hidden),
		     updated_at = $3
		 WHERE id = $4 AND author_id = $5
		 RETURNING id, author_id, content, hidden, created_at, updated_at`,
		content,
		hidden,
		updatedAt,
		id,
		authorID,
	)

	var post domain.Post
	err := row.Scan(&post.ID, &post.AuthorID, &post.Content, &post.Hidden, &post.CreatedAt, &post.UpdatedAt)
	if err := db.HandleQueryError(err, ErrPostNotFound, "update post", start); err != nil {
		return domain.Post{}, err
	}
	return post, nil
}

func (r *PgRepository) Delete(ctx context.Context, id, authorID string) error {
	start := time.Now()
	res, err := r.pool.Exec(
		ctx,
		`DELETE FROM posts WHERE id = $1 AND author_id = $2`,
		id,
		authorID,
	)
	if err != nil {
		return db.HandleExecError(err, "delete post", start)
	}
	db.MeasureQueryDuration("delete post", start)
	if res.RowsAffected() == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (r *PgRepository) ListByAuthor(ctx context.Context, authorID string, limit, offset int) ([]domain.Post, error) {
	start := time.Now()
	rows, err := r.pool.Query(
		ctx,
		`SELECT id, author_id, content, hidden, created_at, updated_at
		 FROM posts
		 WHERE author_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		authorID,
		limit,
		offset,
	)
	if err != nil {
		return nil, db.HandleQueryError(err, nil, "list posts by author", start)
	}
	defer rows.Close()

	posts := make([]domain.Post, 0, limit)
	for rows.Next() {
		var post domain.Post
		if err := rows.Scan(&post.ID, &post.AuthorID, &post.Content, &post.Hidden, &post.CreatedAt, &post.UpdatedAt); err != nil {
			return nil, db.HandleQueryError(err, nil, "list posts by author", start)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, db.HandleQueryError(err, nil, "list posts by author", start)
	}
	db.MeasureQueryDuration("list posts by author", start)
	return posts, nil
}

func (r *PgRepository) CountByAuthor(ctx context.Context, authorID string) (int, error) {
	start := time.Now()
	row := r.pool.QueryRow(
		ctx,
		`SELECT COUNT(*) FROM posts WHERE author_id = $1`,
		authorID,
	)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, db.HandleQueryError(err, nil, "count posts by author", start)
	}
	db.MeasureQueryDuration("count posts by author", start)
	return count, nil
}

func (r *PgRepository) ListPublic(ctx context.Context, limit, offset int) ([]domain.FeedPost, error) {
	start := time.Now()
	rows, err := r.pool.Query(
		ctx,
		`SELECT p.id, u.username, p.content, p.created_at
		 FROM posts p
		 JOIN users u ON u.id = p.author_id
		 WHERE p.hidden = FALSE
		 ORDER BY p.created_at DESC, p.id DESC
		 LIMIT $1 OFFSET $2`,
		limit,
		offset,
	)
	if err != nil {
		return nil, db.HandleQueryError(err, nil, "list public posts", start)
	}
	defer rows.Close()

	posts := make([]domain.FeedPost, 0, limit)
	for rows.Next() {
		var post domain.FeedPost
		if err := rows.Scan(&post.ID, &post.AuthorUsername, &post.Content, &post.CreatedAt); err != nil {
			return nil, db.HandleQueryError(err, nil, "list public posts", start)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, db.HandleQueryError(err, nil, "list public posts", start)
	}
	db.MeasureQueryDuration("list public posts", start)
	return posts, nil
}

func (r *PgRepository) CountPublic(ctx context.Context) (int, error) {
	start := time.Now()
	row := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts WHERE hidden = FALSE`)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, db.HandleQueryError(err, nil, "count public posts", start)
	}
	db.MeasureQueryDuration("count public posts", start)
	return count, nil
}
