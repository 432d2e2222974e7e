package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/artpar/typedwire/core/codec"
	"github.com/artpar/typedwire/core/message"
	"github.com/artpar/typedwire/core/storage"
	"github.com/artpar/typedwire/pkg/jsonapi"
)

// PutRecord validates the request payload and archives it.
func (h *Handler) PutRecord(w http.ResponseWriter, r *http.Request) {
	t, m, ok := h.readMessage(w, r)
	if !ok {
		return
	}

	id, err := h.archive.Put(r.Context(), m)
	if err != nil {
		h.logger.Error().Err(err).Str("type", t.TypeName()).Msg("failed to archive message")
		respondError(w, err)
		return
	}

	rec, err := h.archive.Record(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	res, err := h.recordResource(t, rec)
	if err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/v1/archive/%s/%s", t.TypeName(), id))
	respond(w, http.StatusCreated, jsonapi.NewSingleResourceDocument(res))
}

// ListRecords lists the archived messages of a type, honoring the limit
// and offset query parameters.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	t, err := h.lookup(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var opts storage.ListOptions
	if opts.Limit, err = queryInt(r, "limit"); err == nil {
		opts.Offset, err = queryInt(r, "offset")
	}
	if err != nil {
		respondJSONAPIError(w, jsonapi.NewError(http.StatusBadRequest, "invalid_parameter", "Invalid Parameter").
			Detail(err.Error()).
			Build())
		return
	}

	records, err := h.archive.List(r.Context(), t.TypeName(), opts)
	if err != nil {
		respondError(w, err)
		return
	}

	resources := make([]jsonapi.Resource, 0, len(records))
	for _, rec := range records {
		res, err := h.recordResource(t, rec)
		if err != nil {
			respondError(w, err)
			return
		}
		resources = append(resources, res)
	}
	respond(w, http.StatusOK, jsonapi.NewCollectionDocument(resources))
}

// GetRecord returns one archived message.
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	t, rec, ok := h.findRecord(w, r)
	if !ok {
		return
	}

	res, err := h.recordResource(t, rec)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, jsonapi.NewSingleResourceDocument(res))
}

// DeleteRecord removes one archived message.
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	_, rec, ok := h.findRecord(w, r)
	if !ok {
		return
	}

	if err := h.archive.Delete(r.Context(), rec.ID); err != nil {
		h.respondArchiveError(w, rec.TypeName, rec.ID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// findRecord loads the record of the route. A record stored under another
// type is not found.
func (h *Handler) findRecord(w http.ResponseWriter, r *http.Request) (*message.Type, storage.Record, bool) {
	t, err := h.lookup(r)
	if err != nil {
		respondError(w, err)
		return nil, storage.Record{}, false
	}

	id := chi.URLParam(r, "id")
	rec, err := h.archive.Record(r.Context(), id)
	if err == nil && rec.TypeName != t.TypeName() {
		err = storage.ErrNotFound
	}
	if err != nil {
		h.respondArchiveError(w, t.TypeName(), id, err)
		return nil, storage.Record{}, false
	}
	return t, rec, true
}

func (h *Handler) respondArchiveError(w http.ResponseWriter, typeName, id string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		respondJSONAPIError(w, jsonapi.ErrNotFoundWithID(typeName, id))
		return
	}
	h.logger.Error().Err(err).Str("id", id).Msg("archive failure")
	respondError(w, err)
}

// recordResource unpacks a record with its stored format and renders the
// wire value tree as resource attributes.
func (h *Handler) recordResource(t *message.Type, rec storage.Record) (jsonapi.Resource, error) {
	f, ok := h.formats.Get(rec.Format)
	if !ok {
		return jsonapi.Resource{}, fmt.Errorf("record %s: unknown wire format %q", rec.ID, rec.Format)
	}
	m, err := f.Unpack(t, rec.Payload)
	if err != nil {
		return jsonapi.Resource{}, err
	}
	tree, err := codec.Encode(m)
	if err != nil {
		return jsonapi.Resource{}, err
	}

	return jsonapi.NewResource(rec.TypeName, rec.ID).
		Attrs(tree).
		Meta("format", rec.Format).
		Meta("created_at", rec.CreatedAt).
		Build(), nil
}
