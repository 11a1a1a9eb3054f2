package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/Vedantraval2444/AuraSight-AI-App/internal/attribution"
	"github.com/Vedantraval2444/AuraSight-AI-App/internal/pipeline"
	"github.com/Vedantraval2444/AuraSight-AI-App/internal/report"
)

// maxUploadSize caps multipart uploads (10MB).
const maxUploadSize = 10 << 20

// Analyzer runs the inference pipeline for one uploaded image.
type Analyzer interface {
	Analyze(filename string, data []byte) (*pipeline.Result, error)
}

// Reporter renders a diagnostic report payload to PDF bytes.
type Reporter interface {
	Render(payload *report.Payload) ([]byte, error)
}

// ErrorResponse is the JSON body for failed requests.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type Handler struct {
	analyzer Analyzer
	reporter Reporter
}

func NewHandler(analyzer Analyzer, reporter Reporter) *Handler {
	return &Handler{
		analyzer: analyzer,
		reporter: reporter,
	}
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the AuraSight AI API"})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Predict accepts a multipart upload (field "file"), runs the pipeline and
// responds with the structured result.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method_not_allowed"})
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_form", Details: err.Error()})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing_file", Details: "use 'file' as the form field name"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_upload", Details: err.Error()})
		return
	}

	log.Printf("Received file: %s, size: %d bytes", header.Filename, header.Size)

	result, err := h.analyzer.Analyze(header.Filename, data)
	if err != nil {
		h.writeAnalyzeError(w, header.Filename, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) writeAnalyzeError(w http.ResponseWriter, filename string, err error) {
	log.Printf("Analysis failed for %s: %v", filename, err)

	var decodeErr *pipeline.DecodeError
	var attrErr *attribution.AttributionError
	switch {
	case errors.As(err, &decodeErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "decode_error", Details: err.Error()})
	case errors.Is(err, pipeline.ErrModelUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "model_unavailable", Details: err.Error()})
	case errors.As(err, &attrErr):
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "attribution_error", Details: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "prediction_failed", Details: err.Error()})
	}
}

// ExportPDF renders a previously produced result payload as a downloadable
// report document.
func (h *Handler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method_not_allowed"})
		return
	}

	var payload report.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_json", Details: err.Error()})
		return
	}

	doc, err := h.reporter.Render(&payload)
	if err != nil {
		log.Printf("Report rendering failed for %s: %v", payload.Filename, err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "report_failed", Details: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment;filename=AuraSight_Report.pdf")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc); err != nil {
		log.Printf("Failed to send report: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
