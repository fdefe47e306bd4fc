package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"autoingest/internal/document"
	"autoingest/internal/fileutil"
)

// UserByID fetches a user. A missing user returns (nil, nil).
func (s *Store) UserByID(ctx context.Context, id int64) (*User, error) {
	var (
		user     User
		fullName sql.NullString
		email    sql.NullString
		active   int
	)
	err := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT id, username, full_name, email, role, is_active FROM users WHERE id = ?`,
		id,
	).Scan(&user.ID, &user.Username, &fullName, &email, &user.Role, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	user.FullName = fullName.String
	user.Email = email.String
	user.Active = active != 0
	return &user, nil
}

// CreateUser inserts an active user and returns it.
func (s *Store) CreateUser(ctx context.Context, username, fullName, email, role string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username is required")
	}
	if strings.TrimSpace(role) == "" {
		role = "user"
	}
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO users (username, full_name, email, role, is_active, created_at) VALUES (?, ?, ?, ?, 1, ?)`,
		username,
		nullableString(fullName),
		nullableString(email),
		role,
		s.timestamp(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.UserByID(ctx, id)
}

// PersistProcessingResult records an enriched classification for the file at
// path and returns the new document id.
func (s *Store) PersistProcessingResult(ctx context.Context, path string, result document.Result, start, end time.Time, user *User) (int64, error) {
	if user == nil {
		return 0, errors.New("persist result: user is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("persist result: %w", err)
	}
	checksum, _, err := fileutil.Checksum(path)
	if err != nil {
		return 0, fmt.Errorf("persist result: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	tags, err := json.Marshal(result.Tags)
	if err != nil {
		return 0, fmt.Errorf("marshal tags: %w", err)
	}
	uploadStatus := result.UploadStatus
	if uploadStatus == "" {
		uploadStatus = document.UploadSkipped
	}
	name := filepath.Base(path)
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO documents (
            user_id, uploaded_by, file_name, original_file_name, file_size, file_type, mime_type,
            document_type, criticality_level, storage_type, retention_years, file_path,
            processing_started_at, processing_duration_seconds, confidence, tags_json, summary,
            reasoning, checksum, processing_status, upload_status, upload_object_id, upload_error, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.DisplayName(),
		name,
		name,
		info.Size(),
		nullableString(strings.TrimPrefix(ext, ".")),
		nullableString(mime.TypeByExtension(ext)),
		result.DocumentType,
		result.Criticality,
		result.StorageType,
		result.RetentionYears,
		path,
		start.UTC().Format(time.RFC3339Nano),
		end.Sub(start).Seconds(),
		result.Confidence,
		string(tags),
		nullableString(result.Summary),
		nullableString(result.Reasoning),
		checksum,
		"completed",
		uploadStatus,
		nullableString(result.UploadObjectID),
		nullableString(result.UploadError),
		s.timestamp(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}
	return res.LastInsertId()
}

// DocumentByID fetches a persisted document. A missing document returns (nil, nil).
func (s *Store) DocumentByID(ctx context.Context, id int64) (*document.Record, error) {
	var (
		rec          document.Record
		fileType     sql.NullString
		mimeType     sql.NullString
		tagsJSON     sql.NullString
		summary      sql.NullString
		reasoning    sql.NullString
		checksum     sql.NullString
		uploadStatus string
		objectID     sql.NullString
		uploadErr    sql.NullString
		startedRaw   string
		duration     float64
		createdRaw   string
	)
	err := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT id, user_id, uploaded_by, file_name, original_file_name, file_size, file_type, mime_type,
                document_type, criticality_level, storage_type, retention_years, file_path,
                processing_started_at, processing_duration_seconds, confidence, tags_json, summary,
                reasoning, checksum, processing_status, upload_status, upload_object_id, upload_error, created_at
         FROM documents WHERE id = ?`,
		id,
	).Scan(
		&rec.ID, &rec.UserID, &rec.UploadedBy, &rec.FileName, &rec.OriginalFileName, &rec.FileSize,
		&fileType, &mimeType, &rec.Result.DocumentType, &rec.Result.Criticality, &rec.Result.StorageType,
		&rec.Result.RetentionYears, &rec.FilePath, &startedRaw, &duration, &rec.Result.Confidence,
		&tagsJSON, &summary, &reasoning, &checksum, &rec.ProcessingStatus, &uploadStatus, &objectID,
		&uploadErr, &createdRaw,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	rec.FileType = fileType.String
	rec.MimeType = mimeType.String
	rec.Result.Summary = summary.String
	rec.Result.Reasoning = reasoning.String
	rec.Checksum = checksum.String
	rec.Result.UploadStatus = document.UploadStatus(uploadStatus)
	rec.Result.UploadObjectID = objectID.String
	rec.Result.UploadError = uploadErr.String
	rec.ProcessingDuration = time.Duration(duration * float64(time.Second))
	if tagsJSON.Valid && tagsJSON.String != "" {
		_ = json.Unmarshal([]byte(tagsJSON.String), &rec.Result.Tags)
	}
	if started, err := parseTimeString(startedRaw); err == nil {
		rec.ProcessingStartedAt = started
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		rec.CreatedAt = created
	}
	return &rec, nil
}
