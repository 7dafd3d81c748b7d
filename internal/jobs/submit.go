package jobs

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"cadence/internal/logging"
	"cadence/internal/scratch"
	"cadence/internal/services"
	"cadence/internal/upload"
)

// Submit admits an upload and starts its conversion. Validation happens
// before any file is created; the body is then streamed into scratch through
// the size limit. On success the job is staged and the returned id can be
// waited on. On rejection the returned error is a *RejectedError and no
// artifact remains.
func (m *Manager) Submit(ctx context.Context, sub Submission) (string, error) {
	id := uuid.NewString()
	now := m.now()
	rec := &record{
		job: Job{
			ID:           id,
			State:        StateValidating,
			OriginalName: scratch.SanitizeName(sub.OriginalName),
			SizeBytes:    max(sub.DeclaredSize, 0),
			CreatedAt:    now,
			UpdatedAt:    now,
			Revision:     1,
		},
		settled: make(chan struct{}),
	}
	if strings.TrimSpace(sub.OriginalName) == "" {
		rec.job.OriginalName = ""
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", services.Wrap(services.ErrCanceled, "jobs", "submit", "", ErrShuttingDown)
	}
	m.jobs[id] = rec
	m.wg.Add(1)
	initial := rec.job
	originalName := rec.job.OriginalName
	m.mu.Unlock()

	logger := m.jobLogger(id)
	m.notify(initial, "")

	staged := false
	defer func() {
		if !staged {
			m.wg.Done()
		}
	}()

	if err := m.validator.CheckDeclared(sub.DeclaredType, sub.DeclaredSize); err != nil {
		m.fail(id, err)
		return id, &RejectedError{JobID: id, Err: err}
	}

	inputPath, err := m.storage.Allocate("upload", inputExtension(sub.OriginalName))
	if err != nil {
		err = services.Wrap(services.ErrStorage, "jobs", "allocate input", "", err)
		m.fail(id, err)
		return id, err
	}
	if !m.update(id, func(rec *record) { rec.job.InputPath = inputPath }) {
		return id, m.abandoned(id)
	}

	written, err := m.receive(ctx, inputPath, sub.Body)
	if err != nil {
		m.fail(id, err)
		if errors.Is(err, services.ErrValidation) {
			return id, &RejectedError{JobID: id, Err: err}
		}
		return id, err
	}
	if err := m.validator.CheckObserved(sub.DeclaredType, written); err != nil {
		m.fail(id, err)
		return id, &RejectedError{JobID: id, Err: err}
	}

	outputPath, err := m.storage.Allocate("converted", m.settings.Profile.Extension)
	if err != nil {
		err = services.Wrap(services.ErrStorage, "jobs", "allocate output", "", err)
		m.fail(id, err)
		return id, err
	}

	jobCtx, cancel := context.WithCancel(services.WithJobID(m.baseCtx, id))
	_, _, ok := m.transition(id, StateStaged, func(rec *record) {
		rec.job.SizeBytes = written
		rec.job.OutputPath = outputPath
		rec.cancel = cancel
	})
	if !ok {
		cancel()
		return id, m.abandoned(id)
	}

	logger.Info("upload staged",
		logging.String(logging.FieldState, string(StateStaged)),
		logging.String("original_name", originalName),
		logging.Int64("size_bytes", written),
		logging.String(logging.FieldEventType, "job_staged"),
	)

	staged = true
	go m.run(jobCtx, id)
	return id, nil
}

// receive streams body into a new scratch file through the size limit. Any
// partial file is removed on error.
func (m *Manager) receive(ctx context.Context, path string, body io.Reader) (int64, error) {
	if body == nil {
		return 0, nil
	}
	file, err := m.storage.Create(path)
	if err != nil {
		return 0, services.Wrap(services.ErrStorage, "jobs", "create input", "", err)
	}

	reader := m.validator.Reader(contextReader{ctx: ctx, r: body})
	written, copyErr := io.Copy(storageWriter{w: file}, reader)
	closeErr := file.Close()

	switch {
	case copyErr != nil:
		_ = m.storage.Delete(path)
		if upload.ReasonOf(copyErr) != upload.ReasonNone || errors.Is(copyErr, services.ErrStorage) {
			return written, copyErr
		}
		return written, services.Public("upload interrupted",
			services.Wrap(services.ErrCanceled, "jobs", "receive upload", "", copyErr))
	case closeErr != nil:
		_ = m.storage.Delete(path)
		return written, services.Wrap(services.ErrStorage, "jobs", "close input", "", closeErr)
	}
	return written, nil
}

// update applies mutate to a job that is still validating.
func (m *Manager) update(id string, mutate func(rec *record)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.jobs[id]
	if !ok || rec.closing || rec.job.State != StateValidating {
		return false
	}
	mutate(rec)
	return true
}

// abandoned reports why a submission lost its job mid-flight, which happens
// when Cancel or Shutdown raced the upload.
func (m *Manager) abandoned(id string) error {
	m.mu.Lock()
	rec, ok := m.jobs[id]
	var input string
	if ok {
		input = rec.job.InputPath
	}
	m.mu.Unlock()
	if input != "" {
		_ = m.storage.Delete(input)
	}
	return services.Wrap(services.ErrCanceled, "jobs", "submit", "job canceled during upload", nil)
}

func inputExtension(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(strings.TrimSpace(name)), "."))
	if ext == "" || len(ext) > 8 {
		return "upload"
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return "upload"
		}
	}
	return ext
}

// storageWriter tags write errors so they classify as storage failures
// rather than upload interruptions.
type storageWriter struct {
	w io.Writer
}

func (s storageWriter) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err != nil {
		return n, services.Wrap(services.ErrStorage, "jobs", "write input", "", err)
	}
	return n, nil
}

// contextReader stops a stream once ctx ends.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
