package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/tinywideclouds/go-key-registry/pkg/keyregistry"
)

// API holds the handlers for the key registry's REST surface.
type API struct {
	Lifecycle keyregistry.Lifecycle
	Logger    zerolog.Logger
}

// addKeyBody is the POST /keys request shape.
type addKeyBody struct {
	PublicKey  *keyregistry.PublicKey  `json:"publicKey"`
	PrivateKey *keyregistry.PrivateKey `json:"privateKey,omitempty"`
}

// AddKeyHandler manages POST /keys.
func (a *API) AddKeyHandler(w http.ResponseWriter, r *http.Request) {
	actor := ActorFromContext(r.Context())

	var body addKeyBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to decode add-key body")
		response.WriteJSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if body.PublicKey == nil {
		response.WriteJSONError(w, http.StatusBadRequest, "publicKey is required")
		return
	}

	logger := a.Logger.With().Str("owner", body.PublicKey.Owner).Logger()

	record, err := a.Lifecycle.AddPublicKey(r.Context(), keyregistry.AddKeyRequest{
		Actor:      actor,
		PublicKey:  body.PublicKey,
		PrivateKey: body.PrivateKey,
	})
	if err != nil {
		a.writeError(w, logger, err)
		return
	}

	logger.Info().Str("id", record.PublicKey.ID).Msg("Added public key")
	a.writeJSON(w, http.StatusCreated, record)
}

// GetKeyHandler manages GET /keys/{keySlug}. Anonymous callers receive the
// public fields only.
func (a *API) GetKeyHandler(w http.ResponseWriter, r *http.Request) {
	actor := ActorFromContext(r.Context())
	keyID := a.Lifecycle.CreatePublicKeyID(r.PathValue("keySlug"))

	result, err := a.Lifecycle.GetPublicKey(r.Context(), keyregistry.GetKeyRequest{
		Actor: actor,
		Query: keyregistry.KeyQuery{ID: keyID},
	})
	if err != nil {
		a.writeError(w, a.Logger.With().Str("id", keyID).Logger(), err)
		return
	}
	a.writeJSON(w, http.StatusOK, result)
}

// ListKeysHandler manages GET /keys?owner=...&capability=sign.
func (a *API) ListKeysHandler(w http.ResponseWriter, r *http.Request) {
	actor := ActorFromContext(r.Context())

	owner := r.URL.Query().Get("owner")
	if owner == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "owner query parameter is required")
		return
	}

	records, err := a.Lifecycle.GetPublicKeys(r.Context(), keyregistry.ListKeysRequest{
		Actor: actor,
		Owner: owner,
		Options: keyregistry.ListOptions{
			Capability: r.URL.Query().Get("capability"),
		},
	})
	if err != nil {
		a.writeError(w, a.Logger.With().Str("owner", owner).Logger(), err)
		return
	}
	a.writeJSON(w, http.StatusOK, records)
}

// UpdateKeyHandler manages PATCH /keys/{keySlug}. Only descriptive fields
// are honored; the key id always comes from the path.
func (a *API) UpdateKeyHandler(w http.ResponseWriter, r *http.Request) {
	actor := ActorFromContext(r.Context())
	keyID := a.Lifecycle.CreatePublicKeyID(r.PathValue("keySlug"))

	var key keyregistry.PublicKey
	if err := json.NewDecoder(r.Body).Decode(&key); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to decode update-key body")
		response.WriteJSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	key.ID = keyID

	err := a.Lifecycle.UpdatePublicKey(r.Context(), keyregistry.UpdateKeyRequest{
		Actor:     actor,
		PublicKey: &key,
	})
	if err != nil {
		a.writeError(w, a.Logger.With().Str("id", keyID).Logger(), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RevokeKeyHandler manages DELETE /keys/{keySlug}. The record is disabled,
// never removed; the revoked form is returned.
func (a *API) RevokeKeyHandler(w http.ResponseWriter, r *http.Request) {
	actor := ActorFromContext(r.Context())
	keyID := a.Lifecycle.CreatePublicKeyID(r.PathValue("keySlug"))

	record, err := a.Lifecycle.RevokePublicKey(r.Context(), keyregistry.RevokeKeyRequest{
		Actor: actor,
		KeyID: keyID,
	})
	if err != nil {
		a.writeError(w, a.Logger.With().Str("id", keyID).Logger(), err)
		return
	}
	a.writeJSON(w, http.StatusOK, record)
}

func (a *API) writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		a.Logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (a *API) writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	switch {
	case errors.Is(err, keyregistry.ErrNotFound):
		response.WriteJSONError(w, http.StatusNotFound, "Public key not found")
	case errors.Is(err, keyregistry.ErrPermissionDenied):
		logger.Warn().Err(err).Msg("Permission denied")
		response.WriteJSONError(w, http.StatusForbidden, "Forbidden")
	case keyregistry.IsDuplicateError(err):
		response.WriteJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, keyregistry.ErrInvalidPublicKey),
		errors.Is(err, keyregistry.ErrInvalidPrivateKey),
		errors.Is(err, keyregistry.ErrKeyPairMismatch),
		errors.Is(err, keyregistry.ErrUnsupportedKeyType):
		response.WriteJSONError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error().Err(err).Msg("Operation failed")
		response.WriteJSONError(w, http.StatusInternalServerError, "Internal error")
	}
}
