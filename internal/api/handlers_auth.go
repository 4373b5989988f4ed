package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/hackgods/clinic-booking/internal/availability"
	"github.com/hackgods/clinic-booking/internal/identity"
)

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	token, err := h.identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		Role:        token.Role,
		ExpiresAt:   token.ExpiresAt,
	})
}

func (h *handler) createPractitioner(ctx context.Context, req RegisterPractitionerRequest) (*identity.Practitioner, error) {
	account, err := h.identity.CreateAccount(ctx, req.toNewAccount())
	if err != nil {
		return nil, err
	}
	return h.identity.PractitionerByAccount(ctx, account.ID)
}

func (h *handler) createClient(ctx context.Context, req RegisterClientRequest) (*identity.Client, error) {
	account, err := h.identity.CreateAccount(ctx, req.toNewAccount())
	if err != nil {
		return nil, err
	}
	return h.identity.ClientByAccount(ctx, account.ID)
}

func (h *handler) registerPractitioner(w http.ResponseWriter, r *http.Request) {
	var req RegisterPractitionerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	p, err := h.createPractitioner(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, RegisterResponse{
		Message:        "Doctor registered successfully",
		AccountID:      p.Account.ID,
		PractitionerID: p.Profile.ID,
	})
}

func (h *handler) registerClient(w http.ResponseWriter, r *http.Request) {
	var req RegisterClientRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	c, err := h.createClient(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, RegisterResponse{
		Message:   "Patient registered successfully",
		AccountID: c.Account.ID,
		ClientID:  c.Profile.ID,
	})
}

// renderPractitioners attaches each practitioner's availability.
func (h *handler) renderPractitioners(ctx context.Context, list []identity.Practitioner) ([]PractitionerResponse, error) {
	ids := make([]int64, 0, len(list))
	for _, p := range list {
		ids = append(ids, p.Profile.ID)
	}
	docs := map[int64]availability.Document{}
	if len(ids) > 0 {
		var err error
		if docs, err = h.availability.GetMany(ctx, ids); err != nil {
			return nil, err
		}
	}

	out := make([]PractitionerResponse, 0, len(list))
	for _, p := range list {
		out = append(out, newPractitionerResponse(p, docs[p.Profile.ID]))
	}
	return out, nil
}

func (h *handler) listPractitioners(w http.ResponseWriter, r *http.Request) {
	list, err := h.identity.ListPractitioners(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.renderPractitioners(r.Context(), list)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) searchPractitioners(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	list, err := h.identity.SearchPractitioners(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.renderPractitioners(r.Context(), list)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) specializations(w http.ResponseWriter, r *http.Request) {
	list, err := h.identity.Specializations(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []string{}
	}
	writeJSON(w, http.StatusOK, list)
}
