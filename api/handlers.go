// Package api - HTTP function endpoints for key sharing
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/alwitt/goutils"
	"github.com/alwitt/lexvault/auth"
	"github.com/alwitt/lexvault/encryption"
	"github.com/alwitt/lexvault/errdefs"
	"github.com/alwitt/lexvault/models"
	"github.com/alwitt/lexvault/sharing"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

// SharedKeyResponse a released shared key
type SharedKeyResponse struct {
	goutils.RestAPIBaseResponse
	// Key the document key text
	Key string `json:"key"`
}

// NewShareRequest owner request to share a document key
type NewShareRequest struct {
	// Recipient the recipient account
	Recipient string `json:"recipient" validate:"required"`
	// Key the document key text
	Key string `json:"key" validate:"required"`
	// ExpiresAt optional expiry
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ShareResponse a key share, without key material
type ShareResponse struct {
	goutils.RestAPIBaseResponse
	// Share the share
	Share models.KeyShare `json:"share"`
}

// ShareListResponse key shares of a document
type ShareListResponse struct {
	goutils.RestAPIBaseResponse
	// Shares the shares
	Shares []models.KeyShare `json:"shares"`
}

// RequestLogging request logging settings
type RequestLogging struct {
	// RequestIDHeader header carrying a caller supplied request ID; optional
	RequestIDHeader string
	// LogLevel request log level
	LogLevel goutils.HTTPRequestLogLevel
}

// KeyShareHandler key share REST API handler
type KeyShareHandler struct {
	goutils.RestAPIHandler
	shares    sharing.Service
	authn     auth.Authenticator
	validator *validator.Validate
	readiness func(ctx context.Context) error
}

// noStore key material must never be cached by clients or proxies
var noStore = map[string]string{"Cache-Control": "no-store"}

/*
NewKeyShareHandler define a key share REST API handler

	@param shares sharing.Service - key share service
	@param authn auth.Authenticator - caller authentication
	@param readiness func(ctx context.Context) error - dependency check for /v1/ready; optional
	@param logging RequestLogging - request logging settings
	@returns handler
*/
func NewKeyShareHandler(
	shares sharing.Service,
	authn auth.Authenticator,
	readiness func(ctx context.Context) error,
	logging RequestLogging,
) *KeyShareHandler {
	var requestIDHeader *string
	if logging.RequestIDHeader != "" {
		requestIDHeader = &logging.RequestIDHeader
	}
	if logging.LogLevel == "" {
		logging.LogLevel = goutils.HTTPLogLevelINFO
	}
	return &KeyShareHandler{
		RestAPIHandler: goutils.RestAPIHandler{
			Component: goutils.Component{
				LogTags: log.Fields{"package": "lexvault", "module": "api", "component": "key-share"},
				LogTagModifiers: []goutils.LogMetadataModifier{
					goutils.ModifyLogMetadataByRestRequestParam,
				},
			},
			CallRequestIDHeaderField: requestIDHeader,
			// Bearer tokens must stay out of the request log
			DoNotLogHeaders: map[string]bool{"Authorization": true},
			LogLevel:        logging.LogLevel,
		},
		shares:    shares,
		authn:     authn,
		validator: validator.New(),
		readiness: readiness,
	}
}

func (h *KeyShareHandler) reply(w http.ResponseWriter, r *http.Request, status int, body interface{}) {
	if err := h.WriteRESTResponse(w, status, body, noStore); err != nil {
		log.WithError(err).WithFields(h.GetLogTagsForContext(r.Context())).Error("Failed to write response")
	}
}

// replyError map an error to a status code
//
// Missing documents, shares, and ownership are all reported as 404 access denied.
func (h *KeyShareHandler) replyError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, errdefs.ErrUnauthenticated):
		h.reply(w, r, http.StatusUnauthorized, h.GetStdRESTErrorMsg(
			ctx, http.StatusUnauthorized, errdefs.ErrUnauthenticated.Error(), "",
		))
	case errors.Is(err, errdefs.ErrAccessDenied),
		errors.Is(err, errdefs.ErrNotOwner),
		errors.Is(err, gorm.ErrRecordNotFound):
		h.reply(w, r, http.StatusNotFound, h.GetStdRESTErrorMsg(
			ctx, http.StatusNotFound, errdefs.ErrAccessDenied.Error(), "",
		))
	case errors.Is(err, errdefs.ErrWrongKey):
		h.reply(w, r, http.StatusBadRequest, h.GetStdRESTErrorMsg(
			ctx, http.StatusBadRequest, errdefs.ErrWrongKey.Error(), "",
		))
	default:
		log.WithError(err).WithFields(h.GetLogTagsForContext(ctx)).Error("Request failed")
		h.reply(w, r, http.StatusInternalServerError, h.GetStdRESTErrorMsg(
			ctx, http.StatusInternalServerError, "internal error", "",
		))
	}
}

func (h *KeyShareHandler) caller(r *http.Request) (auth.Identity, error) {
	return h.authn.Verify(r.Header.Get("Authorization"))
}

// FetchSharedKeyHandler POST /v1/documents/{documentID}/shared-key
func (h *KeyShareHandler) FetchSharedKeyHandler(w http.ResponseWriter, r *http.Request) {
	documentID := mux.Vars(r)["documentID"]

	key, ok, err := h.shares.FetchSharedKey(r.Context(), r.Header.Get("Authorization"), documentID)
	if err != nil {
		h.replyError(w, r, err)
		return
	}
	if !ok {
		h.replyError(w, r, errdefs.ErrAccessDenied)
		return
	}

	keyText, err := key.Reveal()
	key.Wipe()
	if err != nil {
		h.replyError(w, r, err)
		return
	}
	h.reply(w, r, http.StatusOK, SharedKeyResponse{
		RestAPIBaseResponse: h.GetStdRESTSuccessMsg(r.Context()), Key: keyText,
	})
}

// ShareKeyHandler POST /v1/documents/{documentID}/shares
func (h *KeyShareHandler) ShareKeyHandler(w http.ResponseWriter, r *http.Request) {
	documentID := mux.Vars(r)["documentID"]

	caller, err := h.caller(r)
	if err != nil {
		h.replyError(w, r, err)
		return
	}

	var request NewShareRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024)).Decode(&request); err != nil {
		h.reply(w, r, http.StatusBadRequest, h.GetStdRESTErrorMsg(
			r.Context(), http.StatusBadRequest, "bad request", err.Error(),
		))
		return
	}
	if err := h.validator.Struct(&request); err != nil {
		h.reply(w, r, http.StatusBadRequest, h.GetStdRESTErrorMsg(
			r.Context(), http.StatusBadRequest, "bad request", err.Error(),
		))
		return
	}

	key := encryption.ParseDocumentKey(request.Key)
	defer key.Wipe()

	share, err := h.shares.ShareKey(
		r.Context(), caller, documentID, request.Recipient, key, request.ExpiresAt,
	)
	if err != nil {
		h.replyError(w, r, err)
		return
	}
	h.reply(w, r, http.StatusCreated, ShareResponse{
		RestAPIBaseResponse: h.GetStdRESTSuccessMsg(r.Context()), Share: share,
	})
}

// ListSharesHandler GET /v1/documents/{documentID}/shares
func (h *KeyShareHandler) ListSharesHandler(w http.ResponseWriter, r *http.Request) {
	documentID := mux.Vars(r)["documentID"]

	caller, err := h.caller(r)
	if err != nil {
		h.replyError(w, r, err)
		return
	}

	shares, err := h.shares.ListShares(r.Context(), caller, documentID)
	if err != nil {
		h.replyError(w, r, err)
		return
	}
	h.reply(w, r, http.StatusOK, ShareListResponse{
		RestAPIBaseResponse: h.GetStdRESTSuccessMsg(r.Context()), Shares: shares,
	})
}

// RevokeShareHandler DELETE /v1/shares/{shareID}
func (h *KeyShareHandler) RevokeShareHandler(w http.ResponseWriter, r *http.Request) {
	shareID := mux.Vars(r)["shareID"]

	caller, err := h.caller(r)
	if err != nil {
		h.replyError(w, r, err)
		return
	}

	if err := h.shares.RevokeShare(r.Context(), caller, shareID); err != nil {
		h.replyError(w, r, err)
		return
	}
	for header, value := range noStore {
		w.Header().Set(header, value)
	}
	w.WriteHeader(http.StatusNoContent)
}

// AliveHandler GET /v1/alive
func (h *KeyShareHandler) AliveHandler(w http.ResponseWriter, r *http.Request) {
	h.reply(w, r, http.StatusOK, h.GetStdRESTSuccessMsg(r.Context()))
}

// ReadyHandler GET /v1/ready
func (h *KeyShareHandler) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if h.readiness != nil {
		if err := h.readiness(r.Context()); err != nil {
			log.WithError(err).WithFields(h.GetLogTagsForContext(r.Context())).Error("Not ready")
			h.reply(w, r, http.StatusServiceUnavailable, h.GetStdRESTErrorMsg(
				r.Context(), http.StatusServiceUnavailable, "not ready", "",
			))
			return
		}
	}
	h.reply(w, r, http.StatusOK, h.GetStdRESTSuccessMsg(r.Context()))
}

/*
BuildRouter define the HTTP router

Every route is wrapped with the request logging middleware.

	@param handler *KeyShareHandler - key share handler
	@returns router
*/
func BuildRouter(handler *KeyShareHandler) *mux.Router {
	router := mux.NewRouter()
	v1 := router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/alive", handler.LoggingMiddleware(handler.AliveHandler)).Methods(http.MethodGet)
	v1.HandleFunc("/ready", handler.LoggingMiddleware(handler.ReadyHandler)).Methods(http.MethodGet)
	v1.HandleFunc(
		"/documents/{documentID}/shared-key",
		handler.LoggingMiddleware(handler.FetchSharedKeyHandler),
	).Methods(http.MethodPost)
	v1.HandleFunc(
		"/documents/{documentID}/shares", handler.LoggingMiddleware(handler.ShareKeyHandler),
	).Methods(http.MethodPost)
	v1.HandleFunc(
		"/documents/{documentID}/shares", handler.LoggingMiddleware(handler.ListSharesHandler),
	).Methods(http.MethodGet)
	v1.HandleFunc(
		"/shares/{shareID}", handler.LoggingMiddleware(handler.RevokeShareHandler),
	).Methods(http.MethodDelete)
	return router
}
