package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/antibyte/chayakada/pkg/configuration"
	"github.com/antibyte/chayakada/pkg/logger"
)

// DefaultSessionID groups documents created without a session.
const DefaultSessionID = "default"

// MaxFilenameLength is the longest accepted filename, in characters.
const MaxFilenameLength = 128

var (
	ErrFileNotFound     = errors.New("file not found")
	ErrInvalidFilename  = errors.New("invalid filename")
	ErrContentTooLarge  = errors.New("content too large")
	ErrQuotaExceeded    = errors.New("session file limit reached")
	ErrNothingToUpdate  = errors.New("nothing to update")
	ErrInvalidSessionID = errors.New("invalid session id")
)

// File is a stored script document.
type File struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Content   string    `json:"content"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileSummary is the listing form of a File.
type FileSummary struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`
}

// FileCreateRequest holds the fields of a new document.
type FileCreateRequest struct {
	Filename  string `json:"filename"`
	Content   string `json:"content"`
	SessionID string `json:"session_id"`
}

// FileUpdateRequest changes the fields that are set.
type FileUpdateRequest struct {
	Filename *string `json:"filename,omitempty"`
	Content  *string `json:"content,omitempty"`
}

// FileStore reads and writes documents in the mlm_files table.
type FileStore struct {
	db                 *sql.DB
	maxContentBytes    int
	maxFilesPerSession int
	now                func() time.Time
}

// NewFileStore creates a store on db with limits from the [Interpreter] and
// [Storage] configuration sections.
func NewFileStore(db *sql.DB) *FileStore {
	return &FileStore{
		db:                 db,
		maxContentBytes:    configuration.GetInt("Interpreter", "max_source_kb", 64) * 1024,
		maxFilesPerSession: configuration.GetInt("Storage", "max_files_per_session", 200),
		now:                func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new document and returns its id.
func (s *FileStore) Create(ctx context.Context, req FileCreateRequest) (string, error) {
	filename := strings.TrimSpace(req.Filename)
	if err := validateFilename(filename); err != nil {
		return "", err
	}
	if err := s.checkContentSize(req.Content); err != nil {
		return "", err
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	// The quota check and the insert are one statement, so concurrent creates
	// cannot both slip under the limit.
	id := uuid.New().String()
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO mlm_files (id, filename, content, session_id, created_at, updated_at)
		SELECT ?, ?, ?, ?, ?, ?
		WHERE ? <= 0 OR (SELECT COUNT(*) FROM mlm_files WHERE session_id = ?) < ?
	`, id, filename, req.Content, sessionID, now.UnixNano(), now.UnixNano(),
		s.maxFilesPerSession, sessionID, s.maxFilesPerSession)
	if err != nil {
		return "", fmt.Errorf("failed to insert file: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("failed to insert file: %w", err)
	}
	if n == 0 {
		logger.Warn(logger.AreaStorage, "Session %s reached its file limit (%d)", sessionID, s.maxFilesPerSession)
		return "", fmt.Errorf("%w: limit is %d files", ErrQuotaExceeded, s.maxFilesPerSession)
	}

	logger.Info(logger.AreaStorage, "Created file %s (%s) for session %s", id, filename, sessionID)
	return id, nil
}

// Get returns the document with the given id.
func (s *FileStore) Get(ctx context.Context, id string) (*File, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrFileNotFound
	}

	var f File
	var created, updated int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, filename, content, session_id, created_at, updated_at
		FROM mlm_files WHERE id = ?
	`, id).Scan(&f.ID, &f.Filename, &f.Content, &f.SessionID, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", id, err)
	}

	f.CreatedAt = time.Unix(0, created).UTC()
	f.UpdatedAt = time.Unix(0, updated).UTC()
	return &f, nil
}

// ListBySession returns the summaries of a session's documents, newest first.
func (s *FileStore) ListBySession(ctx context.Context, sessionID string) ([]FileSummary, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrInvalidSessionID
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, created_at FROM mlm_files
		WHERE session_id = ?
		ORDER BY created_at DESC, id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	files := []FileSummary{}
	for rows.Next() {
		var f FileSummary
		var created int64
		if err := rows.Scan(&f.ID, &f.Filename, &created); err != nil {
			return nil, fmt.Errorf("failed to scan file row: %w", err)
		}
		f.CreatedAt = time.Unix(0, created).UTC()
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

// Update changes the filename and/or content of a document and returns the
// stored result.
func (s *FileStore) Update(ctx context.Context, id string, req FileUpdateRequest) (*File, error) {
	if req.Filename == nil && req.Content == nil {
		return nil, ErrNothingToUpdate
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Filename != nil {
		filename := strings.TrimSpace(*req.Filename)
		if err := validateFilename(filename); err != nil {
			return nil, err
		}
		current.Filename = filename
	}
	if req.Content != nil {
		if err := s.checkContentSize(*req.Content); err != nil {
			return nil, err
		}
		current.Content = *req.Content
	}
	current.UpdatedAt = s.now()

	res, err := s.db.ExecContext(ctx, `
		UPDATE mlm_files SET filename = ?, content = ?, updated_at = ? WHERE id = ?
	`, current.Filename, current.Content, current.UpdatedAt.UnixNano(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update file %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrFileNotFound
	}

	logger.Info(logger.AreaStorage, "Updated file %s", id)
	return current, nil
}

// Delete removes a document.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM mlm_files WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete file %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete file %s: %w", id, err)
	}
	if n == 0 {
		return ErrFileNotFound
	}

	logger.Info(logger.AreaStorage, "Deleted file %s", id)
	return nil
}

func (s *FileStore) checkContentSize(content string) error {
	if s.maxContentBytes > 0 && len(content) > s.maxContentBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrContentTooLarge, len(content), s.maxContentBytes)
	}
	return nil
}

// validateFilename rejects empty names, overly long names and names with
// path separators or control characters.
func validateFilename(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidFilename)
	}
	if utf8.RuneCountInString(name) > MaxFilenameLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidFilename, MaxFilenameLength)
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: contains a path separator", ErrInvalidFilename)
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: contains control characters", ErrInvalidFilename)
		}
	}
	return nil
}
