// Package http serves message types, checking, conversion and the message
// archive over HTTP. Payloads are read and written in the wire format named
// by the Content-Type and Accept headers; failures are JSON:API error
// documents.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/artpar/typedwire/core/codec"
	"github.com/artpar/typedwire/core/message"
	"github.com/artpar/typedwire/core/storage"
	"github.com/artpar/typedwire/core/validation"
	"github.com/artpar/typedwire/core/wireerr"
	"github.com/artpar/typedwire/pkg/jsonapi"
)

// maxBodySize bounds request payloads.
const maxBodySize = 10 << 20

// TypeSource provides the current message type registry.
// *schema.Watcher implements it.
type TypeSource interface {
	Registry() *message.Registry
}

type staticTypes struct {
	reg *message.Registry
}

func (s staticTypes) Registry() *message.Registry { return s.reg }

// StaticTypes returns a TypeSource that always serves reg.
func StaticTypes(reg *message.Registry) TypeSource {
	return staticTypes{reg: reg}
}

// RouterConfig holds the dependencies of the router.
type RouterConfig struct {
	Types          TypeSource
	Formats        *codec.Registry // wire formats by media type; codec.DefaultRegistry if nil
	Archive        storage.Archive // optional; archive routes are mounted when set
	MetricsHandler http.Handler    // optional /metrics handler
	Version        string
	Logger         zerolog.Logger
}

// Handler implements the message endpoints.
type Handler struct {
	types   TypeSource
	formats *codec.Registry
	archive storage.Archive
	logger  zerolog.Logger
}

// NewHandler creates a handler over the given types and formats.
func NewHandler(types TypeSource, formats *codec.Registry, archive storage.Archive, logger zerolog.Logger) *Handler {
	if formats == nil {
		formats = codec.DefaultRegistry
	}
	return &Handler{
		types:   types,
		formats: formats,
		archive: archive,
		logger:  logger,
	}
}

// NewRouter creates the HTTP router.
func NewRouter(cfg RouterConfig) chi.Router {
	h := NewHandler(cfg.Types, cfg.Formats, cfg.Archive, cfg.Logger)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", Liveness)
	r.Get("/version", VersionHandler(cfg.Version))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/types", h.ListTypes)
		r.Get("/types/{type}", h.GetType)
		r.Post("/check/{type}", h.Check)
		r.Post("/convert/{type}", h.Convert)

		if cfg.Archive != nil {
			r.Route("/archive/{type}", func(r chi.Router) {
				r.Get("/", h.ListRecords)
				r.Post("/", h.PutRecord)
				r.Get("/{id}", h.GetRecord)
				r.Delete("/{id}", h.DeleteRecord)
			})
		}
	})

	return r
}

// Liveness returns a simple liveness check.
func Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// VersionHandler returns the service version.
func VersionHandler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"version": version,
			"service": "typedwire",
		})
	}
}

// ListTypes lists the registered message types.
func (h *Handler) ListTypes(w http.ResponseWriter, r *http.Request) {
	types := h.types.Registry().Types()
	resources := make([]jsonapi.Resource, len(types))
	for i, t := range types {
		resources[i] = typeResource(t)
	}
	respond(w, http.StatusOK, jsonapi.NewCollectionDocument(resources))
}

// GetType describes one message type.
func (h *Handler) GetType(w http.ResponseWriter, r *http.Request) {
	t, err := h.lookup(r)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, jsonapi.NewSingleResourceDocument(typeResource(t)))
}

// Check unpacks and validates the request payload.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	t, m, ok := h.readMessage(w, r)
	if !ok {
		return
	}

	doc := jsonapi.NewDocument().
		Meta("type", t.TypeName()).
		Meta("valid", true).
		Meta("fields", len(m.Fields())).
		Build()
	respond(w, http.StatusOK, doc)
}

// Convert unpacks the request payload and packs it in the format named by
// the Accept header or the "format" query parameter.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	to, err := h.responseFormat(r)
	if err != nil {
		respondJSONAPIError(w, jsonapi.NewError(http.StatusNotAcceptable, "not_acceptable", "Not Acceptable").
			Detail(err.Error()).
			Build())
		return
	}

	t, m, ok := h.readMessage(w, r)
	if !ok {
		return
	}

	data, err := to.Pack(t, m)
	if err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", to.MIMEType())
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// readMessage resolves the type of the route, unpacks the body with the
// format of its Content-Type and validates it. On failure it writes the
// error response and returns false.
func (h *Handler) readMessage(w http.ResponseWriter, r *http.Request) (*message.Type, *message.Message, bool) {
	t, err := h.lookup(r)
	if err != nil {
		respondError(w, err)
		return nil, nil, false
	}

	from, err := h.requestFormat(r)
	if err != nil {
		respondJSONAPIError(w, jsonapi.NewError(http.StatusUnsupportedMediaType, "unsupported_media_type", "Unsupported Media Type").
			Detail(err.Error()).
			Build())
		return nil, nil, false
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondJSONAPIError(w, jsonapi.NewError(http.StatusRequestEntityTooLarge, "payload_too_large", "Payload Too Large").
				Detailf("Request body exceeds %d bytes", tooLarge.Limit).
				Build())
			return nil, nil, false
		}
		h.logger.Error().Err(err).Msg("failed to read request body")
		respondJSONAPIError(w, jsonapi.NewError(http.StatusBadRequest, "bad_request", "Bad Request").
			Detail("Failed to read request body").
			Build())
		return nil, nil, false
	}

	m, err := from.Unpack(t, body)
	if err == nil {
		err = validation.Validate(m)
	}
	if err != nil {
		h.logger.Debug().Err(err).Str("type", t.TypeName()).Msg("message rejected")
		respondError(w, err)
		return nil, nil, false
	}
	return t, m, true
}

func (h *Handler) lookup(r *http.Request) (*message.Type, error) {
	name := chi.URLParam(r, "type")
	t, ok := h.types.Registry().Type(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", wireerr.ErrTypeResolution, name)
	}
	return t, nil
}

// requestFormat returns the format of the request body. A request without
// a Content-Type is read with the default format.
func (h *Handler) requestFormat(r *http.Request) (codec.WireFormat, error) {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return h.defaultFormat()
	}
	f, ok := h.formats.ByMIME(ct)
	if !ok {
		return nil, fmt.Errorf("no wire format for %q", ct)
	}
	return f, nil
}

// responseFormat picks the output format from the "format" query
// parameter, then the first Accept entry served by a registered format.
func (h *Handler) responseFormat(r *http.Request) (codec.WireFormat, error) {
	if name := r.URL.Query().Get("format"); name != "" {
		f, ok := h.formats.Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown wire format %q", name)
		}
		return f, nil
	}

	accept := r.Header.Get("Accept")
	if accept == "" {
		return h.defaultFormat()
	}
	for _, entry := range strings.Split(accept, ",") {
		entry = strings.TrimSpace(entry)
		if strings.HasPrefix(entry, "*/*") {
			return h.defaultFormat()
		}
		if f, ok := h.formats.ByMIME(entry); ok {
			return f, nil
		}
	}
	return nil, fmt.Errorf("no wire format for %q", accept)
}

func (h *Handler) defaultFormat() (codec.WireFormat, error) {
	f := h.formats.Default()
	if f == nil {
		return nil, errors.New("no default wire format")
	}
	return f, nil
}

// typeResource describes a message type and its fields.
func typeResource(t *message.Type) jsonapi.Resource {
	fields := make([]map[string]any, 0, t.NumFields())
	for _, d := range t.Fields() {
		fields = append(fields, map[string]any{
			"name":      d.Name(),
			"wire_name": d.WireName(),
			"required":  d.IsRequired(),
			"kind":      d.String(),
		})
	}

	bases := make([]string, 0, len(t.Bases()))
	for _, b := range t.Bases() {
		bases = append(bases, b.TypeName())
	}

	return jsonapi.NewResource("message_types", t.TypeName()).
		Attr("fields", fields).
		Attr("bases", bases).
		Build()
}

func respond(w http.ResponseWriter, status int, doc jsonapi.Document) {
	w.Header().Set("Content-Type", jsonapi.ContentType)
	w.WriteHeader(status)
	jsonapi.Write(w, doc, false)
}

func respondJSONAPIError(w http.ResponseWriter, e jsonapi.Error) {
	respond(w, e.StatusCode(), jsonapi.NewErrorDocument(e))
}

// respondError writes the error document of a codec, validation or type
// failure.
func respondError(w http.ResponseWriter, err error) {
	respondJSONAPIError(w, jsonapi.FromCodecError(err))
}

// NewLoggingMiddleware creates a new logging middleware.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			// Skip logging for health checks and metrics
			if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

// queryInt reads a non-negative integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

