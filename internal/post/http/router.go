package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ysamarin/postline/backend/internal/common/constants"
	commonerrors "github.com/ysamarin/postline/backend/internal/common/errors"
	commonhttp "github.com/ysamarin/postline/backend/internal/common/http"
	"github.com/ysamarin/postline/backend/internal/common/jwtverify"
	"github.com/ysamarin/postline/backend/internal/common/logger"
	"github.com/ysamarin/postline/backend/internal/post/domain"
	"github.com/ysamarin/postline/backend/internal/post/service"
)

const (
	msgFieldRequired  = "This field is required."
	msgFieldBlank     = "This field may not be blank."
	msgContentTooLong = "Ensure this field has no more than %d characters."
)

// postRequest uses pointers so an omitted field is distinguishable from a
// zero value; hidden in particular has no default.
type postRequest struct {
	Content *string `json:"content"`
	Hidden  *bool   `json:"hidden"`
}

type ownPostResponse struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Hidden    bool      `json:"hidden"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type feedPostResponse struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

const ownPostsPrefix = "/api/posts/user/"

type Handler struct {
	posts    *service.PostService
	errors   *commonhttp.ErrorHandler
	log      *logger.Logger
	pageSize int
}

// NewHandler mounts the feed and own-posts routes on mux. Every route
// requires a valid bearer token.
func NewHandler(
	mux *http.ServeMux,
	posts *service.PostService,
	log *logger.Logger,
	pageSize int,
	requestTimeout time.Duration,
	authMW func(next http.Handler) http.Handler,
) {
	h := &Handler{
		posts:    posts,
		errors:   commonhttp.NewErrorHandler(log),
		log:      log,
		pageSize: pageSize,
	}

	withTimeout := commonhttp.WithTimeout(requestTimeout)
	mux.Handle("/api/posts/public/", authMW(commonhttp.RequireMethod(http.MethodGet)(withTimeout(h.feed))))
	mux.Handle(ownPostsPrefix, authMW(withTimeout(h.ownPosts)))
}

func (h *Handler) feed(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := commonhttp.PageParams(r, h.pageSize)
	posts, count, err := h.posts.Feed(r.Context(), limit, offset)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	results := make([]feedPostResponse, 0, len(posts))
	for _, post := range posts {
		results = append(results, feedPostResponse{
			ID:        post.ID,
			Author:    post.AuthorUsername,
			Content:   post.Content,
			CreatedAt: post.CreatedAt.Format(constants.FeedDateLayout),
		})
	}

	commonhttp.WriteJSON(w, http.StatusOK, commonhttp.NewPage(r, results, count, page, limit))
}

// ownPosts dispatches the /api/posts/user/ subtree: the collection itself
// (list, create) and single-post routes carrying an id segment.
func (h *Handler) ownPosts(w http.ResponseWriter, r *http.Request) {
	claims, ok := jwtverify.FromContext(r.Context())
	if !ok {
		commonhttp.WriteError(w, http.StatusUnauthorized, "missing credentials")
		return
	}

	if r.URL.Path != ownPostsPrefix {
		id, ok := commonhttp.ExtractPostIDFromPath(r.URL.Path, ownPostsPrefix)
		if !ok {
			// Trailing segments past the id never name a resource.
			h.errors.HandleError(w, r, commonerrors.ErrPostNotFound)
			return
		}
		h.ownPost(w, r, claims, id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.list(w, r, claims)
	case http.MethodPost:
		h.create(w, r, claims)
	default:
		commonhttp.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) ownPost(w http.ResponseWriter, r *http.Request, claims jwtverify.Claims, id string) {
	// A malformed id gets the same response as a missing post, so the two
	// stay indistinguishable and the uuid column never sees garbage.
	if err := commonhttp.ValidateUUID(id); err != nil {
		h.errors.HandleError(w, r, commonerrors.ErrPostNotFound)
		return
	}

	switch r.Method {
	case http.MethodPut:
		h.update(w, r, claims, id, true)
	case http.MethodPatch:
		h.update(w, r, claims, id, false)
	case http.MethodDelete:
		h.delete(w, r, claims, id)
	default:
		commonhttp.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, claims jwtverify.Claims) {
	page, limit, offset := commonhttp.PageParams(r, h.pageSize)
	posts, count, err := h.posts.ListOwn(r.Context(), claims.UserID, limit, offset)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	results := make([]ownPostResponse, 0, len(posts))
	for _, post := range posts {
		results = append(results, ownPostView(post, claims.Username))
	}

	commonhttp.WriteJSON(w, http.StatusOK, commonhttp.NewPage(r, results, count, page, limit))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, claims jwtverify.Claims) {
	var req postRequest
	if err := commonhttp.DecodeJSON(r, &req); err != nil {
		h.log.Warnf("create post failed: invalid json: %v", err)
		commonhttp.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if fieldErrors := requireFields(req, true); len(fieldErrors) > 0 {
		commonhttp.WriteFieldErrors(w, fieldErrors)
		return
	}

	post, err := h.posts.Create(r.Context(), claims.UserID, *req.Content, *req.Hidden)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusCreated, ownPostView(post, claims.Username))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, claims jwtverify.Claims, id string, full bool) {
	var req postRequest
	if err := commonhttp.DecodeJSON(r, &req); err != nil {
		h.log.Warnf("update post failed: invalid json: %v", err)
		commonhttp.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if full {
		if fieldErrors := requireFields(req, true); len(fieldErrors) > 0 {
			commonhttp.WriteFieldErrors(w, fieldErrors)
			return
		}
	} else if fieldErrors := validatePartial(req); len(fieldErrors) > 0 {
		commonhttp.WriteFieldErrors(w, fieldErrors)
		return
	}

	post, err := h.posts.Update(r.Context(), claims.UserID, id, service.UpdateInput{
		Content: req.Content,
		Hidden:  req.Hidden,
	})
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, ownPostView(post, claims.Username))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request, claims jwtverify.Claims, id string) {
	if err := h.posts.Delete(r.Context(), claims.UserID, id); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func requireFields(req postRequest, requireHidden bool) commonhttp.FieldErrors {
	fieldErrors := commonhttp.FieldErrors{}
	if req.Content == nil || *req.Content == "" {
		fieldErrors["content"] = append(fieldErrors["content"], msgFieldRequired)
	}
	if requireHidden && req.Hidden == nil {
		fieldErrors["hidden"] = append(fieldErrors["hidden"], msgFieldRequired)
	}
	return mergeContentLength(fieldErrors, req)
}

// validatePartial checks only the fields a PATCH actually carries. Content
// stays required at the model level, so sending it blank is rejected rather
// than persisted.
func validatePartial(req postRequest) commonhttp.FieldErrors {
	fieldErrors := commonhttp.FieldErrors{}
	if req.Content != nil && *req.Content == "" {
		fieldErrors["content"] = append(fieldErrors["content"], msgFieldBlank)
	}
	return mergeContentLength(fieldErrors, req)
}

func mergeContentLength(fieldErrors commonhttp.FieldErrors, req postRequest) commonhttp.FieldErrors {
	if req.Content != nil && len([]rune(*req.Content)) > constants.MaxContentLength {
		fieldErrors["content"] = append(fieldErrors["content"],
			fmt.Sprintf(msgContentTooLong, constants.MaxContentLength))
	}
	return fieldErrors
}

func ownPostView(post domain.Post, username string) ownPostResponse {
	return ownPostResponse{
		ID:        post.ID,
		Author:    username,
		Content:   post.Content,
		Hidden:    post.Hidden,
		CreatedAt: post.CreatedAt,
		UpdatedAt: post.UpdatedAt,
	}
}
