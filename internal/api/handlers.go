package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/forTEXT/catma-go/core/errors"
	"github.com/forTEXT/catma-go/core/sqlite"
	"github.com/forTEXT/catma-go/internal/convert"
	"github.com/forTEXT/catma-go/internal/store"
	"github.com/forTEXT/catma-go/internal/validation"
)

// Version is reported by the root and health endpoints.
const Version = "0.3.0"

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *APIMeta  `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// FormatInfo describes a registered format.
type FormatInfo struct {
	ID        string `json:"id"`
	CanDecode bool   `json:"can_decode"`
	CanEncode bool   `json:"can_encode"`
}

// ConvertResponse is the result of a synchronous conversion.
type ConvertResponse struct {
	Format           string `json:"format"`
	Encoder          string `json:"encoder"`
	Annotations      int    `json:"annotations"`
	TextLength       int    `json:"text_length"`
	SkippedSentences int    `json:"skipped_sentences,omitempty"`
	SHA256           string `json:"sha256"`
	Cached           bool   `json:"cached"`
	Duration         string `json:"duration"`
	Document         string `json:"document"`
}

// HealthInfo is the health check response.
type HealthInfo struct {
	Status      string      `json:"status"`
	Version     string      `json:"version"`
	Uptime      string      `json:"uptime"`
	Collections int         `json:"collections"`
	Formats     int         `json:"formats"`
	SQLite      sqlite.Info `json:"sqlite"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"name":    "CATMA Annotation API",
		"version": Version,
		"endpoints": []string{
			"GET /health",
			"GET /formats",
			"POST /convert",
			"GET /collections",
			"POST /collections",
			"GET /collections/:id",
			"GET /collections/:id/tags",
			"GET /collections/:id/annotations",
			"POST /jobs",
			"GET /jobs",
			"GET /jobs/:id",
			"DELETE /jobs/:id",
			"WS /ws",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	collections, err := s.collections(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}

	respond(w, http.StatusOK, HealthInfo{
		Status:      "healthy",
		Version:     Version,
		Uptime:      time.Since(s.started).String(),
		Collections: len(collections),
		Formats:     len(convert.Formats()),
		SQLite:      sqlite.GetInfo(),
	})
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	encoders := make(map[string]bool)
	for _, id := range convert.Encoders() {
		encoders[id] = true
	}

	var infos []FormatInfo
	for _, id := range convert.Formats() {
		infos = append(infos, FormatInfo{ID: id, CanDecode: true, CanEncode: encoders[id]})
		delete(encoders, id)
	}
	for id := range encoders {
		infos = append(infos, FormatInfo{ID: id, CanEncode: true})
	}

	respondList(w, infos, len(infos))
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return
	}

	filename, data, opts, ok := s.readConversionUpload(w, r)
	if !ok {
		return
	}

	s.hub.Progress("convert", "converting", "Converting "+filename, 50)
	result, err := s.converter.Convert(filename, data, opts)
	if err != nil {
		s.hub.Failure("convert", err.Error())
		respondError(w, conversionStatus(err), "CONVERSION_FAILED", err.Error())
		return
	}
	s.hub.Complete("convert", "Conversion completed", map[string]any{
		"filename": filename,
		"format":   result.Format,
	})

	if raw, _ := strconv.ParseBool(r.URL.Query().Get("raw")); raw {
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(result.Data)
		return
	}

	resp := ConvertResponse{
		Format:           result.Format,
		Encoder:          result.Encoder,
		SkippedSentences: result.Skipped,
		SHA256:           result.Fingerprint.SHA256,
		Cached:           result.Cached,
		Duration:         result.Duration.String(),
		Document:         string(result.Data),
	}
	if result.Collection != nil {
		resp.Annotations = len(result.Collection.Annotations)
		resp.TextLength = result.Collection.TextLength
	}
	respond(w, http.StatusOK, resp)
}

func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listCollectionsHandler(w, r)
	case http.MethodPost:
		s.importCollectionHandler(w, r)
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET and POST are allowed")
	}
}

func (s *Server) listCollectionsHandler(w http.ResponseWriter, r *http.Request) {
	collections, err := s.collections(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	respondList(w, collections, len(collections))
}

// collections returns the collection listing, served from a short-lived
// cache so the health check and listing endpoints don't hit the store on
// every request. Imports invalidate the cache.
func (s *Server) collections(ctx context.Context) ([]store.CollectionInfo, error) {
	if cached, ok := s.listings.Get("all"); ok {
		return cached, nil
	}
	collections, err := s.store.Collections(ctx)
	if err != nil {
		return nil, err
	}
	s.listings.Set("all", collections)
	return collections, nil
}

func (s *Server) importCollectionHandler(w http.ResponseWriter, r *http.Request) {
	filename, data, opts, ok := s.readConversionUpload(w, r)
	if !ok {
		return
	}

	s.hub.Progress("import", "converting", "Converting "+filename, 40)
	result, err := s.converter.Convert(filename, data, opts)
	if err != nil {
		s.hub.Failure("import", err.Error())
		respondError(w, conversionStatus(err), "CONVERSION_FAILED", err.Error())
		return
	}
	if result.Collection == nil {
		// cached results skip decoding, import needs the collection
		respondError(w, http.StatusConflict, "CACHED_RESULT",
			"Conversion was served from cache, retry with caching disabled")
		return
	}

	s.hub.Progress("import", "importing", "Importing into collection store", 80)
	id, err := s.store.ImportCollection(r.Context(), result.Collection)
	if err != nil {
		s.hub.Failure("import", err.Error())
		respondError(w, http.StatusInternalServerError, "IMPORT_FAILED", err.Error())
		return
	}
	s.listings.Invalidate()

	info, err := s.store.Collection(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}

	s.hub.Complete("import", "Import completed", map[string]any{
		"collection_id": id,
		"annotations":   info.Annotations,
	})
	respond(w, http.StatusCreated, info)
}

func (s *Server) handleCollectionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/collections/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		respondError(w, http.StatusBadRequest, "MISSING_ID", "Collection ID is required")
		return
	}
	if err := ValidateID(id); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", fmt.Sprintf("Invalid collection ID: %v", err))
		return
	}

	switch sub {
	case "":
		s.getCollectionHandler(w, r, id)
	case "tags":
		s.collectionTagsHandler(w, r, id)
	case "annotations":
		s.collectionAnnotationsHandler(w, r, id)
	default:
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Unknown collection resource: "+sub)
	}
}

func (s *Server) getCollectionHandler(w http.ResponseWriter, r *http.Request, id string) {
	info, err := s.store.Collection(r.Context(), id)
	if err != nil {
		respondError(w, storeStatus(err), "NOT_FOUND", err.Error())
		return
	}
	respond(w, http.StatusOK, info)
}

func (s *Server) collectionTagsHandler(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := s.store.Collection(r.Context(), id); err != nil {
		respondError(w, storeStatus(err), "NOT_FOUND", err.Error())
		return
	}
	counts, err := s.store.TagCounts(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	respondList(w, counts, len(counts))
}

func (s *Server) collectionAnnotationsHandler(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := s.store.Collection(r.Context(), id); err != nil {
		respondError(w, storeStatus(err), "NOT_FOUND", err.Error())
		return
	}

	query := r.URL.Query()
	tagPath := query.Get("tag")
	startParam := query.Get("start")
	endParam := query.Get("end")

	switch {
	case tagPath != "":
		annos, err := s.store.AnnotationsByTagPath(r.Context(), id, tagPath)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
			return
		}
		respondList(w, annos, len(annos))
	case startParam != "" && endParam != "":
		start, err := strconv.Atoi(startParam)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_RANGE", "start must be an integer")
			return
		}
		end, err := strconv.Atoi(endParam)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_RANGE", "end must be an integer")
			return
		}
		if start < 0 || end < start {
			respondError(w, http.StatusBadRequest, "INVALID_RANGE", "range must satisfy 0 <= start <= end")
			return
		}
		annos, err := s.store.AnnotationsInRange(r.Context(), id, start, end)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
			return
		}
		respondList(w, annos, len(annos))
	default:
		respondError(w, http.StatusBadRequest, "MISSING_PARAMS",
			"Provide either tag=<path> or start=<n>&end=<n>")
	}
}

// readConversionUpload parses a multipart conversion request: the
// annotation file under "file", an optional source text under
// "source_text", and the conversion options as form values. On failure
// an error response has already been written.
func (s *Server) readConversionUpload(w http.ResponseWriter, r *http.Request) (string, []byte, convert.Options, bool) {
	var opts convert.Options

	if err := r.ParseMultipartForm(validation.MaxFileSize); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to parse multipart form or file too large")
		return "", nil, opts, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "MISSING_FILE", "No file uploaded")
		return "", nil, opts, false
	}
	defer file.Close()

	if err := validation.ValidateFilename(header.Filename); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_FILENAME", "Invalid filename provided")
		return "", nil, opts, false
	}

	data, err := readLimited(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "FILE_TOO_LARGE", err.Error())
		return "", nil, opts, false
	}
	if _, err := validation.ValidateFileType(bytes.NewReader(data), header.Filename); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_FILE_TYPE", fmt.Sprintf("File validation failed: %v", err))
		return "", nil, opts, false
	}

	opts.Format = r.FormValue("format")
	opts.Author = r.FormValue("author")
	opts.Title = r.FormValue("title")
	opts.SkipBadSentences, _ = strconv.ParseBool(r.FormValue("skip_bad_sentences"))

	if sourceFile, _, err := r.FormFile("source_text"); err == nil {
		defer sourceFile.Close()
		text, err := readLimited(sourceFile)
		if err != nil {
			respondError(w, http.StatusBadRequest, "FILE_TOO_LARGE", err.Error())
			return "", nil, opts, false
		}
		opts.SourceText = string(text)
	}

	return header.Filename, data, opts, true
}

// readLimited reads an upload enforcing the size limit.
func readLimited(file multipart.File) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(file, validation.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if err := validation.CheckSize(int64(len(data))); err != nil {
		return nil, err
	}
	return data, nil
}

// conversionStatus maps conversion errors to HTTP status codes.
func conversionStatus(err error) int {
	switch {
	case errors.IsUnsupported(err):
		return http.StatusUnsupportedMediaType
	case errors.IsValidation(err), errors.IsParse(err):
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}

// storeStatus maps store errors to HTTP status codes.
func storeStatus(err error) int {
	if errors.IsNotFound(err) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func respond(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Meta:    &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func respondList(w http.ResponseWriter, data any, total int) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Total:     total,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
		Meta:    &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func writeJSON(w http.ResponseWriter, status int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
