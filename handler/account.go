package handler

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/mstgnz/sanalpos"
	"github.com/mstgnz/sanalpos/infra/config"
	"github.com/mstgnz/sanalpos/infra/response"
)

// AccountHandler manages the SQLite-persisted provider accounts. Saved
// accounts are merged over the env configuration at startup, so new
// credentials bind on the next start.
type AccountHandler struct {
	storage *config.AccountStorage
}

// NewAccountHandler creates an account handler. storage may be nil when
// persistence is disabled (VIRTUALPOS_DB_PATH unset); the endpoints then
// answer 503.
func NewAccountHandler(storage *config.AccountStorage) *AccountHandler {
	return &AccountHandler{storage: storage}
}

// Routes mounts the account endpoints.
func (h *AccountHandler) Routes(r chi.Router) {
	r.Post("/accounts/{provider}", h.Save)
	r.Get("/accounts/{provider}", h.List)
	r.Delete("/accounts/{provider}/{accountId}", h.Delete)
}

func (h *AccountHandler) checkProvider(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.storage == nil {
		response.Error(w, http.StatusServiceUnavailable, "Hesap deposu yapılandırılmamış", nil)
		return "", false
	}

	providerName := chi.URLParam(r, "provider")
	if !slices.Contains(sanalpos.Providers(), providerName) {
		response.Error(w, http.StatusBadRequest, "Bilinmeyen sağlayıcı: "+providerName, nil)
		return "", false
	}

	return providerName, true
}

type saveAccountRequest struct {
	AccountID   string            `json:"accountId"`
	Credentials map[string]string `json:"credentials"`
}

// Save persists a provider account
func (h *AccountHandler) Save(w http.ResponseWriter, r *http.Request) {
	providerName, ok := h.checkProvider(w, r)
	if !ok {
		return
	}

	var req saveAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Geçersiz istek formatı", err)
		return
	}
	if req.AccountID == "" {
		req.AccountID = "default"
	}
	if len(req.Credentials) == 0 {
		response.Error(w, http.StatusBadRequest, "credentials zorunlu", nil)
		return
	}

	if err := h.storage.SaveAccount(providerName, req.AccountID, req.Credentials); err != nil {
		response.Error(w, http.StatusInternalServerError, "Hesap kaydedilemedi", err)
		return
	}

	response.Success(w, http.StatusOK, "Hesap kaydedildi, yeniden başlatmada etkinleşir", map[string]string{
		"provider":  providerName,
		"accountId": req.AccountID,
	})
}

// List returns the stored account ids of a provider
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	providerName, ok := h.checkProvider(w, r)
	if !ok {
		return
	}

	ids, err := h.storage.AccountIDs(providerName)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Hesaplar listelenemedi", err)
		return
	}

	response.Success(w, http.StatusOK, "Hesaplar listelendi", ids)
}

// Delete removes a stored provider account
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	providerName, ok := h.checkProvider(w, r)
	if !ok {
		return
	}

	accountID := chi.URLParam(r, "accountId")
	if err := h.storage.DeleteAccount(providerName, accountID); err != nil {
		response.Error(w, http.StatusNotFound, "Hesap silinemedi", err)
		return
	}

	response.Success(w, http.StatusOK, "Hesap silindi", nil)
}
