package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"cadence/internal/jobs"
	"cadence/internal/logging"
	"cadence/internal/metrics"
	"cadence/internal/services"
	"cadence/internal/upload"
)

const (
	// multipartSlack is the request body allowance beyond the file limit for
	// boundaries, part headers and small form fields.
	multipartSlack = 1 << 20
	// maxFieldBytes bounds any non-file form field.
	maxFieldBytes = 64 << 10
)

var errMissingFile = errors.New("missing file part")

func (h *handler) handleConvert(w http.ResponseWriter, r *http.Request) {
	declared := int64(-1)
	if limit := h.opts.MaxUploadBytes; limit > 0 {
		if r.ContentLength > limit+multipartSlack {
			declared = r.ContentLength
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartSlack)
	}

	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "expected a multipart/form-data upload")
		return
	}
	part, err := h.filePart(reader)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, h.logger, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, errMissingFile):
			writeError(w, h.logger, http.StatusBadRequest, fmt.Sprintf("no file uploaded in field %q", h.opts.FormField))
		default:
			writeError(w, h.logger, http.StatusBadRequest, "malformed multipart upload")
		}
		return
	}
	defer part.Close()

	id, err := h.jobs.Submit(r.Context(), jobs.Submission{
		Body:         part,
		DeclaredType: part.Header.Get("Content-Type"),
		DeclaredSize: declared,
		OriginalName: part.FileName(),
	})
	if err != nil {
		status := submitStatus(err)
		writeJobError(w, h.logger, status, services.PublicMessage(err), id)
		return
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		writeJSON(w, h.logger, http.StatusAccepted, ConvertResponse{
			Message:     "File accepted for conversion",
			JobID:       id,
			DownloadURL: DownloadURL(id),
			StatusURL:   StatusURL(id),
		})
		return
	}

	waitCtx := r.Context()
	if h.opts.WaitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(waitCtx, h.opts.WaitTimeout)
		defer cancel()
	}
	job, err := h.jobs.Wait(waitCtx, id)
	if err != nil {
		if r.Context().Err() != nil {
			// Nobody is left to learn the job id; stop the conversion.
			_ = h.jobs.Cancel(id)
			return
		}
		writeJSON(w, h.logger, http.StatusAccepted, ConvertResponse{
			Message:     "Conversion still running",
			JobID:       id,
			DownloadURL: DownloadURL(id),
			StatusURL:   StatusURL(id),
		})
		return
	}

	if job.State == jobs.StateFailed {
		writeJobError(w, h.logger, failureStatus(job.FailureKind), job.ErrorDetail, id)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, ConvertResponse{
		Message:     "File converted successfully",
		JobID:       id,
		DownloadURL: DownloadURL(id),
	})
}

// filePart advances to the configured file field, discarding small form
// fields along the way.
func (h *handler) filePart(reader *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errMissingFile
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == h.opts.FormField && part.FileName() != "" {
			return part, nil
		}
		n, err := io.Copy(io.Discard, io.LimitReader(part, maxFieldBytes+1))
		_ = part.Close()
		if err != nil {
			return nil, err
		}
		if n > maxFieldBytes {
			return nil, fmt.Errorf("form field %q too large", part.FormName())
		}
	}
}

func (h *handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	artifact, err := h.jobs.Retrieve(id)
	if err != nil {
		metrics.DeliveriesTotal.WithLabelValues("not_found").Inc()
		writeError(w, h.logger, http.StatusNotFound, "file not found")
		return
	}
	defer artifact.Close()

	header := w.Header()
	header.Set("Content-Type", contentTypeFor(artifact.Name))
	header.Set("Content-Length", strconv.FormatInt(artifact.Size, 10))
	header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": artifact.Name}))
	header.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	copied, err := io.Copy(w, artifact)
	if err != nil || copied != artifact.Size {
		metrics.DeliveriesTotal.WithLabelValues("aborted").Inc()
		logging.WithContext(r.Context(), h.logger).Info("download ended early",
			logging.String(logging.FieldJobID, id),
			logging.Int64("sent_bytes", copied),
			logging.Int64("size_bytes", artifact.Size),
			logging.Error(err),
			logging.String(logging.FieldEventType, "delivery_aborted"),
		)
		return
	}
	metrics.DeliveriesTotal.WithLabelValues("completed").Inc()
}

func submitStatus(err error) int {
	var rejected *jobs.RejectedError
	switch {
	case errors.Is(err, jobs.ErrShuttingDown):
		return http.StatusServiceUnavailable
	case errors.As(err, &rejected):
		if upload.ReasonOf(err) == upload.ReasonSize {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case errors.Is(err, services.ErrCanceled):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func failureStatus(kind services.Kind) int {
	switch kind {
	case services.KindValidation, services.KindEngine:
		return http.StatusUnprocessableEntity
	case services.KindTimeout:
		return http.StatusGatewayTimeout
	case services.KindCanceled:
		return http.StatusConflict
	case services.KindExpired:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

var audioContentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".opus": "audio/ogg",
	".flac": "audio/flac",
	".wav":  "audio/wav",
}

func contentTypeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := audioContentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
