package httpapi

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	app "github.com/R3E-Network/microblog/internal/app"
	"github.com/R3E-Network/microblog/internal/app/metrics"
	svcerrors "github.com/R3E-Network/microblog/internal/errors"
	"github.com/R3E-Network/microblog/internal/httputil"
	"github.com/R3E-Network/microblog/internal/middleware"
)

// multipartOverhead is the allowance for multipart framing on top of the
// file size limit.
const multipartOverhead = 1 << 20

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a router exposing the REST API under /api together with
// /healthz, /metrics and the stored uploads.
func NewHandler(application *app.Application) *mux.Router {
	h := &handler{app: application}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.PathPrefix("/uploads/").Handler(
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(application.Media.Dir()))),
	).Methods(http.MethodGet, http.MethodHead)

	api := r.PathPrefix("/api").Subrouter()
	api.NotFoundHandler = r.NotFoundHandler
	api.MethodNotAllowedHandler = r.MethodNotAllowedHandler

	api.HandleFunc("/tweets", h.createTweet).Methods(http.MethodPost)
	api.HandleFunc("/tweets", h.feed).Methods(http.MethodGet)
	api.HandleFunc("/tweets/{id}", h.deleteTweet).Methods(http.MethodDelete)
	api.HandleFunc("/tweets/{id}/likes", h.like).Methods(http.MethodPost)
	api.HandleFunc("/tweets/{id}/likes", h.unlike).Methods(http.MethodDelete)
	api.HandleFunc("/medias", h.uploadMedia).Methods(http.MethodPost)
	api.HandleFunc("/users/me", h.me).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}", h.profile).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}/follow", h.follow).Methods(http.MethodPost)
	api.HandleFunc("/users/{id}/follow", h.unfollow).Methods(http.MethodDelete)

	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Ping(r.Context()); err != nil {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) createTweet(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		TweetData     *string `json:"tweet_data"`
		TweetMediaIDs []int64 `json:"tweet_media_ids"`
	}
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		httputil.WriteError(w, svcerrors.Validation("Invalid request body"))
		return
	}
	if payload.TweetData == nil {
		httputil.WriteError(w, svcerrors.Validation("tweet_data is required"))
		return
	}

	id, err := h.app.Tweets.Create(r.Context(), apiKey(r), *payload.TweetData, payload.TweetMediaIDs)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteResult(w, http.StatusOK, map[string]interface{}{"tweet_id": id})
}

func (h *handler) feed(w http.ResponseWriter, r *http.Request) {
	entries, err := h.app.Tweets.Feed(r.Context(), apiKey(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteResult(w, http.StatusOK, map[string]interface{}{"tweets": entries})
}

func (h *handler) deleteTweet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.app.Tweets.Delete(r.Context(), apiKey(r), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteResult(w, http.StatusOK, nil)
}

func (h *handler) like(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.app.Tweets.Like(r.Context(), apiKey(r), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteResult(w, http.StatusOK, nil)
}

func (h *handler) unlike(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.app.Tweets.Unlike(r.Context(), apiKey(r), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteResult(w, http.StatusOK, nil)
}

func (h *handler) uploadMedia(w http.ResponseWriter, r *http.Request) {
	key := apiKey(r)
	if _, err := h.app.Users.Authenticate(r.Context(), key); err != nil {
		httputil.WriteError(w, err)
		return
	}

	maxSize := h.app.Media.MaxSize()
	tooLarge := svcerrors.TooLarge("File too large. Max size: " + strconv.FormatInt(maxSize/1024/1024, 10) + "MB")
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httputil.WriteError(w, tooLarge)
			return
		}
		httputil.WriteError(w, svcerrors.Validation("Invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	header := uploadedFile(r.MultipartForm)
	if header == nil {
		httputil.WriteError(w, svcerrors.Validation("file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		httputil.WriteError(w, svcerrors.Internal("open upload", err))
		return
	}
	defer file.Close()

	id, err := h.app.Media.Upload(r.Context(), key, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteResult(w, http.StatusOK, map[string]interface{}{"media_id": id})
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	profile, err := h.app.Users.Me(r.Context(), apiKey(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteResult(w, http.StatusOK, map[string]interface{}{"user": profile})
}

func (h *handler) profile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	profile, err := h.app.Users.Profile(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteResult(w, http.StatusOK, map[string]interface{}{"user": profile})
}

func (h *handler) follow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.app.Users.Follow(r.Context(), apiKey(r), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteResult(w, http.StatusOK, nil)
}

func (h *handler) unfollow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.app.Users.Unfollow(r.Context(), apiKey(r), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteResult(w, http.StatusOK, nil)
}

func apiKey(r *http.Request) string {
	return r.Header.Get(middleware.APIKeyHeader)
}

// pathID parses the {id} route variable, writing a validation error when it
// is not a positive integer.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		httputil.WriteError(w, svcerrors.Validation("id must be a positive integer"))
		return 0, false
	}
	return id, true
}

// uploadedFile prefers the "file" field and falls back to the first file
// part under any name.
func uploadedFile(form *multipart.Form) *multipart.FileHeader {
	if form == nil {
		return nil
	}
	if files := form.File["file"]; len(files) > 0 {
		return files[0]
	}
	for _, files := range form.File {
		if len(files) > 0 {
			return files[0]
		}
	}
	return nil
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteError(w, svcerrors.NotFound("Resource not found"))
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteError(w, &svcerrors.ServiceError{
		Code:       svcerrors.CodeValidation,
		Message:    "Method not allowed",
		HTTPStatus: http.StatusMethodNotAllowed,
	})
}
