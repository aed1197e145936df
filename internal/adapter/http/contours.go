package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/isobar-contour-service/internal/domain"
)

const maxRequestBytes = 1 << 20

var emptyFeatureCollection = []byte(`{"type":"FeatureCollection","features":[]}`)

// handleContours answers POST /v1/contours. Vertex responses are the binary
// frame; GeoJSON responses are the document. Metadata travels in headers.
// Empty results are still 200: they are a valid answer to the request.
func (s *Server) handleContours(c Contourer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
		if err != nil {
			status := http.StatusBadRequest
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
			return
		}

		req, err := domain.ParseRequest(body)
		if err != nil {
			s.metrics.DecodeErrors.Inc()
			sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		resp, err := c.Do(r.Context(), req)
		if err != nil {
			s.logger.Warn("contour request not answered", "error", err, "correlation_token", req.Token)
			sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return
		}
		s.metrics.Requests.WithLabelValues("http", string(resp.Outcome)).Inc()

		h := w.Header()
		h.Set("X-Correlation-Token", strconv.FormatInt(resp.Token, 10))
		h.Set("X-Outcome", string(resp.Outcome))
		h.Set("X-Segments", strconv.Itoa(resp.Segments))
		if resp.Reason != domain.ReasonNone {
			h.Set("X-Fallback-Reason", string(resp.Reason))
		}

		payload := domain.EncodeFrame(resp.Token, resp.Vertices)
		h.Set("Content-Type", "application/octet-stream")
		if resp.Format == domain.FormatGeoJSON {
			payload = resp.GeoJSON
			if payload == nil {
				payload = emptyFeatureCollection
			}
			h.Set("Content-Type", "application/geo+json")
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(payload); err != nil {
			s.logger.Debug("write contour response failed", "error", err, "correlation_token", resp.Token)
		}
	}
}
