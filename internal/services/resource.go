package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/campuslink/internal/logging"
	"github.com/HammerMeetNail/campuslink/internal/models"
)

var (
	ErrResourceNotFound    = errors.New("resource not found")
	ErrCertificateNotFound = errors.New("certificate not found")
	ErrFileTooLarge        = errors.New("file is too large")
	ErrTitleRequired       = errors.New("title is required")
)

const (
	resourceColumns    = `id, uploader_id, title, subject, description, object_key, file_url, content_type, size_bytes, created_at`
	certificateColumns = `id, owner_id, title, issuer, object_key, file_url, verified_by, verified_at, created_at`
)

type ResourceServiceInterface interface {
	Upload(ctx context.Context, uploaderID uuid.UUID, in models.ResourceInput, file models.Upload, r io.Reader) (*models.Resource, error)
	List(ctx context.Context, subject string) ([]models.Resource, error)
	Delete(ctx context.Context, actor *models.Profile, id uuid.UUID) error
	UploadCertificate(ctx context.Context, ownerID uuid.UUID, in models.CertificateInput, file models.Upload, r io.Reader) (*models.Certificate, error)
	ListCertificates(ctx context.Context, ownerID uuid.UUID) ([]models.Certificate, error)
	DeleteCertificate(ctx context.Context, actor *models.Profile, id uuid.UUID) error
	VerifyCertificate(ctx context.Context, actor *models.Profile, id uuid.UUID) (*models.Certificate, error)
}

type ResourceService struct {
	db       DBConn
	store    ObjectStore
	maxBytes int64
	audit    AuditLogger
}

// NewResourceService accepts a nil store; uploads then fail with ErrStorageDisabled.
func NewResourceService(db DBConn, store ObjectStore, maxBytes int64) *ResourceService {
	return &ResourceService{db: db, store: store, maxBytes: maxBytes}
}

func (s *ResourceService) SetAuditLogger(audit AuditLogger) {
	s.audit = audit
}

func scanResource(row Row) (*models.Resource, error) {
	r := &models.Resource{}
	err := row.Scan(&r.ID, &r.UploaderID, &r.Title, &r.Subject, &r.Description, &r.ObjectKey, &r.FileURL, &r.ContentType, &r.SizeBytes, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func scanCertificate(row Row) (*models.Certificate, error) {
	c := &models.Certificate{}
	err := row.Scan(&c.ID, &c.OwnerID, &c.Title, &c.Issuer, &c.ObjectKey, &c.FileURL, &c.VerifiedBy, &c.VerifiedAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ResourceService) checkUpload(title string, file models.Upload) error {
	if s.store == nil {
		return ErrStorageDisabled
	}
	if strings.TrimSpace(title) == "" {
		return ErrTitleRequired
	}
	if s.maxBytes > 0 && file.Size > s.maxBytes {
		return ErrFileTooLarge
	}
	return nil
}

// discardObject removes an object whose row could not be written.
func (s *ResourceService) discardObject(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		logging.Warn("Failed to delete stored object", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

func (s *ResourceService) Upload(ctx context.Context, uploaderID uuid.UUID, in models.ResourceInput, file models.Upload, r io.Reader) (*models.Resource, error) {
	if err := s.checkUpload(in.Title, file); err != nil {
		return nil, err
	}

	key := objectKey("resources", uploaderID, file.Filename)
	url, err := s.store.Put(ctx, key, file.ContentType, r)
	if err != nil {
		return nil, err
	}

	res, err := scanResource(s.db.QueryRow(ctx,
		`INSERT INTO resources (uploader_id, title, subject, description, object_key, file_url, content_type, size_bytes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+resourceColumns,
		uploaderID, strings.TrimSpace(in.Title), strings.TrimSpace(in.Subject), strings.TrimSpace(in.Description),
		key, url, file.ContentType, file.Size,
	))
	if err != nil {
		s.discardObject(ctx, key)
		return nil, fmt.Errorf("saving resource: %w", err)
	}
	return res, nil
}

func (s *ResourceService) List(ctx context.Context, subject string) ([]models.Resource, error) {
	subject = strings.TrimSpace(subject)
	rows, err := s.db.Query(ctx,
		`SELECT `+resourceColumns+` FROM resources
		 WHERE ($1 = '' OR lower(subject) = lower($1))
		 ORDER BY created_at DESC`,
		subject,
	)
	if err != nil {
		return nil, fmt.Errorf("listing resources: %w", err)
	}
	defer rows.Close()

	out := []models.Resource{}
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning resource: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *ResourceService) Delete(ctx context.Context, actor *models.Profile, id uuid.UUID) error {
	res, err := scanResource(s.db.QueryRow(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrResourceNotFound
	}
	if err != nil {
		return fmt.Errorf("loading resource: %w", err)
	}
	if actor == nil || (actor.ID != res.UploaderID && actor.Role != models.RoleAuthority) {
		return ErrForbidden
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM resources WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting resource: %w", err)
	}
	if s.store != nil {
		s.discardObject(ctx, res.ObjectKey)
	}
	return nil
}

func (s *ResourceService) UploadCertificate(ctx context.Context, ownerID uuid.UUID, in models.CertificateInput, file models.Upload, r io.Reader) (*models.Certificate, error) {
	if err := s.checkUpload(in.Title, file); err != nil {
		return nil, err
	}

	key := objectKey("certificates", ownerID, file.Filename)
	url, err := s.store.Put(ctx, key, file.ContentType, r)
	if err != nil {
		return nil, err
	}

	c, err := scanCertificate(s.db.QueryRow(ctx,
		`INSERT INTO certificates (owner_id, title, issuer, object_key, file_url)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+certificateColumns,
		ownerID, strings.TrimSpace(in.Title), strings.TrimSpace(in.Issuer), key, url,
	))
	if err != nil {
		s.discardObject(ctx, key)
		return nil, fmt.Errorf("saving certificate: %w", err)
	}
	return c, nil
}

func (s *ResourceService) ListCertificates(ctx context.Context, ownerID uuid.UUID) ([]models.Certificate, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE owner_id = $1 ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing certificates: %w", err)
	}
	defer rows.Close()

	out := []models.Certificate{}
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning certificate: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *ResourceService) DeleteCertificate(ctx context.Context, actor *models.Profile, id uuid.UUID) error {
	c, err := scanCertificate(s.db.QueryRow(ctx, `SELECT `+certificateColumns+` FROM certificates WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrCertificateNotFound
	}
	if err != nil {
		return fmt.Errorf("loading certificate: %w", err)
	}
	if actor == nil || (actor.ID != c.OwnerID && actor.Role != models.RoleAuthority) {
		return ErrForbidden
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM certificates WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting certificate: %w", err)
	}
	if s.store != nil {
		s.discardObject(ctx, c.ObjectKey)
	}
	return nil
}

func (s *ResourceService) VerifyCertificate(ctx context.Context, actor *models.Profile, id uuid.UUID) (*models.Certificate, error) {
	if actor == nil || actor.Role != models.RoleAuthority {
		return nil, ErrForbidden
	}
	c, err := scanCertificate(s.db.QueryRow(ctx,
		`UPDATE certificates SET verified_by = $2, verified_at = NOW()
		 WHERE id = $1
		 RETURNING `+certificateColumns,
		id, actor.ID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCertificateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("verifying certificate: %w", err)
	}
	recordAudit(ctx, s.audit, actor.ID, "certificate.verified", "certificate", &c.ID, map[string]any{
		"owner_id": c.OwnerID.String(),
		"title":    c.Title,
	})
	return c, nil
}
