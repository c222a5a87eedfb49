package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wudi/pdfstamp/adsource"
	"github.com/wudi/pdfstamp/compose"
	"github.com/wudi/pdfstamp/ledger"
	"github.com/wudi/pdfstamp/observability"
	"github.com/wudi/pdfstamp/stamp"
)

// Ledger operation names.
const (
	OpStamp        = "stamp"
	OpFilePath     = "stamp_file_path"
	OpAds          = "ads"
	OpMetadataPage = "metadata_page"
	OpDynamic      = "dynamic"
)

type upload struct {
	name string
	data []byte
	mime string
}

// readUpload returns the named part, or a zero upload when it is absent.
func readUpload(r *http.Request, field string) (upload, error) {
	f, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return upload{}, nil
	}
	if err != nil {
		return upload{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return upload{}, err
	}
	return upload{name: hdr.Filename, data: data, mime: hdr.Header.Get("Content-Type")}, nil
}

// readDocument parses the multipart form and returns the required "file" part.
func readDocument(r *http.Request) (upload, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooMany *http.MaxBytesError
		if errors.As(err, &tooMany) {
			return upload{}, err
		}
		return upload{}, &stamp.InvalidRequestError{Field: "file", Reason: "expected a multipart form: " + err.Error()}
	}
	doc, err := readUpload(r, "file")
	if err != nil {
		return upload{}, err
	}
	if len(doc.data) == 0 {
		return upload{}, &stamp.InvalidRequestError{Field: "file", Reason: "PDF file is required"}
	}
	return doc, nil
}

func formBool(r *http.Request, field string) bool {
	v, _ := strconv.ParseBool(strings.TrimSpace(r.FormValue(field)))
	return v
}

// run executes one job and records it in the ledger.
func (s *Server) run(ctx context.Context, op string, input []byte, fn func(context.Context) ([]byte, error)) (ledger.Job, []byte, error) {
	job := ledger.NewJob(op, input)
	out, err := fn(ctx)
	job.Finish(out, err)
	s.ledger.Record(context.WithoutCancel(ctx), job)
	if err != nil {
		s.logger.Warn("job failed",
			observability.String("job_id", job.ID),
			observability.String("operation", op),
			observability.Error("error", err))
	}
	return job, out, err
}

func (s *Server) respondPDF(w http.ResponseWriter, r *http.Request, op string, doc upload, fn func(context.Context) ([]byte, error)) {
	job, out, err := s.run(r.Context(), op, doc.data, fn)
	w.Header().Set("X-Job-ID", job.ID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writePDF(w, doc.name, out)
}

func (s *Server) handleStamp(w http.ResponseWriter, r *http.Request) {
	doc, err := readDocument(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	var req stamp.Request
	if err := json.Unmarshal([]byte(r.FormValue("request")), &req); err != nil {
		writeFailure(w, &stamp.InvalidRequestError{Field: "request", Reason: err.Error()})
		return
	}
	payload, err := readUpload(r, "stampFile")
	if err != nil {
		writeFailure(w, err)
		return
	}
	spec, err := req.Spec(payload.data)
	if err != nil {
		writeFailure(w, err)
		return
	}
	s.respondPDF(w, r, OpStamp, doc, func(ctx context.Context) ([]byte, error) {
		return s.dispatcher.Apply(ctx, doc.data, spec)
	})
}

type filePathRequest struct {
	InputFilePath   string `json:"inputFilePath"`
	OutputDirectory string `json:"outputDirectory"`
	StampFilePath   string `json:"stampFilePath,omitempty"`
	stamp.Request
}

func (s *Server) handleFilePath(w http.ResponseWriter, r *http.Request) {
	fail := func(err error) {
		writeJSON(w, statusFor(err), StampResponse{Success: false, Message: err.Error()})
	}
	var req filePathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooMany *http.MaxBytesError
		if errors.As(err, &tooMany) {
			fail(err)
			return
		}
		fail(&stamp.InvalidRequestError{Field: "request", Reason: err.Error()})
		return
	}
	if strings.TrimSpace(req.InputFilePath) == "" {
		fail(&stamp.InvalidRequestError{Field: "inputFilePath", Reason: "input file path is required"})
		return
	}
	if strings.TrimSpace(req.OutputDirectory) == "" {
		fail(&stamp.InvalidRequestError{Field: "outputDirectory", Reason: "output directory is required"})
		return
	}

	in, err := s.confine("inputFilePath", req.InputFilePath)
	if err != nil {
		fail(err)
		return
	}
	outDir, err := s.confine("outputDirectory", req.OutputDirectory)
	if err != nil {
		fail(err)
		return
	}
	pdf, err := readLocal("inputFilePath", in)
	if err != nil {
		fail(err)
		return
	}
	var payload []byte
	if strings.TrimSpace(req.StampFilePath) != "" {
		p, err := s.confine("stampFilePath", req.StampFilePath)
		if err != nil {
			fail(err)
			return
		}
		if payload, err = readLocal("stampFilePath", p); err != nil {
			fail(err)
			return
		}
	}
	spec, err := req.Request.Spec(payload)
	if err != nil {
		fail(err)
		return
	}

	target := filepath.Join(outDir, outputFilename(in))
	job, out, err := s.run(r.Context(), OpFilePath, pdf, func(ctx context.Context) ([]byte, error) {
		out, err := s.dispatcher.Apply(ctx, pdf, spec)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(target, out, 0o644); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		writeJSON(w, statusFor(err), StampResponse{Success: false, Message: err.Error(), JobID: job.ID})
		return
	}
	s.logger.Info("stamped file written",
		observability.String("output", target),
		observability.Int("bytes", len(out)))
	writeJSON(w, http.StatusOK, StampResponse{
		Success:        true,
		Message:        "PDF stamped successfully",
		OutputFilePath: target,
		FileSizeBytes:  len(out),
		JobID:          job.ID,
	})
}

// confine resolves p against the storage root and rejects paths that
// escape it.
func (s *Server) confine(field, p string) (string, error) {
	root, err := resolveExisting(s.root)
	if err != nil {
		return "", err
	}
	abs := filepath.Clean(p)
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, abs)
	}
	if abs, err = resolveExisting(abs); err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &stamp.InvalidRequestError{Field: field, Reason: "path is outside the storage root"}
	}
	return abs, nil
}

// resolveExisting follows symlinks in the longest existing prefix of p and
// appends the components that do not exist yet.
func resolveExisting(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	var rest []string
	for dir := abs; ; {
		resolved, err := filepath.EvalSymlinks(dir)
		if err == nil {
			for i := len(rest) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, rest[i])
			}
			return resolved, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		rest = append(rest, filepath.Base(dir))
		dir = parent
	}
}

func readLocal(field, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &stamp.InvalidRequestError{Field: field, Reason: "file not found: " + filepath.Base(path)}
	}
	return data, err
}

func (s *Server) adFeed(r *http.Request) (adsource.Feed, error) {
	url := strings.TrimSpace(r.FormValue("adUrl"))
	if url == "" {
		url = s.adURL
	}
	if s.ads == nil || url == "" {
		return adsource.Feed{}, &stamp.InvalidRequestError{Field: "adUrl", Reason: "no ad source configured"}
	}
	return adsource.Feed{Source: s.ads, URL: url}, nil
}

func (s *Server) handleAds(w http.ResponseWriter, r *http.Request) {
	doc, err := readDocument(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	filter, err := compose.ParseFilter(r.FormValue("filter"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	feed, err := s.adFeed(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	s.respondPDF(w, r, OpAds, doc, func(ctx context.Context) ([]byte, error) {
		return s.pipeline.Compose(ctx, doc.data, feed, filter)
	})
}

func (s *Server) handleMetadataPage(w http.ResponseWriter, r *http.Request) {
	doc, err := readDocument(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	cover := compose.CoverPage{
		LogoURL:        r.FormValue("logoUrl"),
		LogoText:       r.FormValue("logoText"),
		Title:          r.FormValue("title"),
		Authors:        r.FormValue("authors"),
		Citation:       r.FormValue("citation"),
		DOI:            r.FormValue("doi"),
		AdditionalLink: r.FormValue("additionalLink"),
		IncludeDate:    formBool(r, "includeDate"),
	}
	s.respondPDF(w, r, OpMetadataPage, doc, func(ctx context.Context) ([]byte, error) {
		return s.pipeline.CoverPage(ctx, doc.data, cover)
	})
}

func (s *Server) handleDynamic(w http.ResponseWriter, r *http.Request) {
	doc, err := readDocument(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	logo, err := readUpload(r, "logo")
	if err != nil {
		writeFailure(w, err)
		return
	}
	pos, err := stamp.ParsePosition(r.FormValue("position"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	strategy, err := compose.ParseStrategy(r.FormValue("strategy"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	d := compose.Dynamic{
		Logo:        logo.data,
		LogoType:    logo.mime,
		Text:        r.FormValue("text"),
		HTML:        r.FormValue("html"),
		DOI:         strings.TrimSpace(r.FormValue("doi")),
		JournalCode: strings.TrimSpace(r.FormValue("jcode")),
		IncludeDate: formBool(r, "includeDate"),
		Position:    pos,
		Strategy:    strategy,
	}
	d.IncludeDOI = d.DOI != "" || d.JournalCode != ""
	if formBool(r, "includeAd") {
		feed, err := s.adFeed(r)
		if err != nil {
			writeFailure(w, err)
			return
		}
		d.Ads = feed
	}
	s.respondPDF(w, r, OpDynamic, doc, func(ctx context.Context) ([]byte, error) {
		return s.pipeline.Dynamic(ctx, doc.data, d)
	})
}
