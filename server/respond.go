package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/wudi/pdfstamp/compose"
	"github.com/wudi/pdfstamp/stamp"
)

// Message is the JSON error body.
type Message struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// StampResponse is the JSON body of file-path requests.
type StampResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	OutputFilePath string `json:"outputFilePath,omitempty"`
	FileSizeBytes  int    `json:"fileSizeBytes,omitempty"`
	JobID          string `json:"jobId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[ERROR] failed to write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Message{Type: "error", Message: msg})
}

func writeFailure(w http.ResponseWriter, err error) {
	msg := Message{Type: "error", Message: err.Error()}
	var inv *stamp.InvalidRequestError
	if errors.As(err, &inv) {
		msg.Field = inv.Field
	}
	writeJSON(w, statusFor(err), msg)
}

func writePDF(w http.ResponseWriter, name string, pdf []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", outputFilename(name)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		log.Printf("[ERROR] failed to write PDF response: %v", err)
	}
}

// statusFor maps an operation error to an HTTP status.
func statusFor(err error) int {
	var (
		inv     *stamp.InvalidRequestError
		rng     *stamp.PageRangeError
		num     *stamp.PageNumberError
		comp    *compose.CompositionError
		tooMany *http.MaxBytesError
	)
	switch {
	case errors.As(err, &tooMany):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &inv), errors.As(err, &rng), errors.As(err, &num), errors.Is(err, stamp.ErrUnsupportedKind):
		return http.StatusBadRequest
	case errors.As(err, &comp):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// outputFilename turns "paper.pdf" into "paper_stamped.pdf".
func outputFilename(original string) string {
	base := filepath.Base(strings.TrimSpace(original))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "stamped.pdf"
	}
	if strings.HasSuffix(strings.ToLower(base), ".pdf") {
		base = base[:len(base)-len(".pdf")]
	}
	return base + "_stamped.pdf"
}
