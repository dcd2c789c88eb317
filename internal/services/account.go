package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type AccountServiceInterface interface {
	BuildExportZip(ctx context.Context, profileID uuid.UUID) ([]byte, error)
	Delete(ctx context.Context, profileID uuid.UUID) error
}

type AccountService struct {
	db  DB
	now func() time.Time
}

func NewAccountService(db DB) *AccountService {
	return &AccountService{db: db, now: time.Now}
}

// exportTable is one CSV in the account export. Every query selects text
// columns only and takes the profile id as $1.
type exportTable struct {
	file   string
	header []string
	query  string
}

var accountExportTables = []exportTable{
	{
		file:   "profile.csv",
		header: []string{"id", "email", "full_name", "role", "department", "year_of_study", "bio", "is_public", "connections_count", "daily_streak", "last_activity_date", "created_at"},
		query: `SELECT id::text, email, full_name, role, department, COALESCE(year_of_study::text, ''), bio, is_public::text,
			connections_count::text, daily_streak::text, COALESCE(last_activity_date::text, ''), created_at::text
			FROM profiles WHERE id = $1`,
	},
	{
		file:   "connections.csv",
		header: []string{"id", "sender_id", "receiver_id", "status", "message", "created_at", "responded_at"},
		query: `SELECT id::text, sender_id::text, receiver_id::text, status, COALESCE(message, ''), created_at::text, COALESCE(responded_at::text, '')
			FROM connection_requests WHERE sender_id = $1 OR receiver_id = $1 ORDER BY created_at`,
	},
	{
		file:   "mentoring.csv",
		header: []string{"id", "mentor_id", "mentee_id", "status", "message", "created_at", "responded_at"},
		query: `SELECT id::text, mentor_id::text, mentee_id::text, status, COALESCE(message, ''), created_at::text, COALESCE(responded_at::text, '')
			FROM mentoring_relationships WHERE mentor_id = $1 OR mentee_id = $1 ORDER BY created_at`,
	},
	{
		file:   "messages.csv",
		header: []string{"id", "conversation_id", "content", "created_at"},
		query: `SELECT id::text, conversation_id::text, content, created_at::text
			FROM messages WHERE sender_id = $1 ORDER BY created_at`,
	},
	{
		file:   "posts.csv",
		header: []string{"id", "content", "likes_count", "comments_count", "created_at"},
		query: `SELECT id::text, content, likes_count::text, comments_count::text, created_at::text
			FROM posts WHERE author_id = $1 ORDER BY created_at`,
	},
	{
		file:   "comments.csv",
		header: []string{"id", "post_id", "content", "created_at"},
		query: `SELECT id::text, post_id::text, content, created_at::text
			FROM post_comments WHERE author_id = $1 ORDER BY created_at`,
	},
	{
		file:   "attendance.csv",
		header: []string{"schedule_id", "course_code", "attendance_date", "status"},
		query: `SELECT a.schedule_id::text, s.course_code, a.attendance_date::text, a.status
			FROM attendance a JOIN schedules s ON s.id = a.schedule_id
			WHERE a.student_id = $1 ORDER BY a.attendance_date`,
	},
	{
		file:   "event_registrations.csv",
		header: []string{"event_id", "title", "starts_at", "registered_at"},
		query: `SELECT e.id::text, e.title, e.starts_at::text, r.created_at::text
			FROM event_registrations r JOIN campus_events e ON e.id = r.event_id
			WHERE r.user_id = $1 ORDER BY e.starts_at`,
	},
	{
		file:   "marketplace_listings.csv",
		header: []string{"id", "title", "category", "price_cents", "status", "created_at"},
		query: `SELECT id::text, title, category, price_cents::text, status, created_at::text
			FROM marketplace_listings WHERE seller_id = $1 ORDER BY created_at`,
	},
	{
		file:   "study_groups.csv",
		header: []string{"group_id", "name", "owner", "joined_at"},
		query: `SELECT g.id::text, g.name, (g.owner_id = $1)::text, m.joined_at::text
			FROM study_group_members m JOIN study_groups g ON g.id = m.group_id
			WHERE m.user_id = $1 ORDER BY m.joined_at`,
	},
	{
		file:   "projects.csv",
		header: []string{"id", "title", "skills_needed", "created_at"},
		query: `SELECT id::text, title, array_to_string(skills_needed, ';'), created_at::text
			FROM projects WHERE owner_id = $1 ORDER BY created_at`,
	},
	{
		file:   "resources.csv",
		header: []string{"id", "title", "subject", "file_url", "created_at"},
		query: `SELECT id::text, title, subject, file_url, created_at::text
			FROM resources WHERE uploader_id = $1 ORDER BY created_at`,
	},
	{
		file:   "certificates.csv",
		header: []string{"id", "title", "issuer", "file_url", "verified_at", "created_at"},
		query: `SELECT id::text, title, issuer, file_url, COALESCE(verified_at::text, ''), created_at::text
			FROM certificates WHERE owner_id = $1 ORDER BY created_at`,
	},
	{
		file:   "approval_requests.csv",
		header: []string{"id", "type", "title", "status", "review_note", "created_at"},
		query: `SELECT id::text, type, title, status, COALESCE(review_note, ''), created_at::text
			FROM approval_requests WHERE requester_id = $1 ORDER BY created_at`,
	},
	{
		file:   "notifications.csv",
		header: []string{"id", "type", "actor_id", "reference_id", "read_at", "created_at"},
		query: `SELECT id::text, type, COALESCE(actor_id::text, ''), COALESCE(reference_id::text, ''), COALESCE(read_at::text, ''), created_at::text
			FROM notifications WHERE user_id = $1 ORDER BY created_at`,
	},
}

// BuildExportZip bundles everything the profile owns or is party to into a
// zip of CSV files.
func (s *AccountService) BuildExportZip(ctx context.Context, profileID uuid.UUID) ([]byte, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM profiles WHERE id = $1 AND deleted_at IS NULL)`, profileID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("load profile for export: %w", err)
	}
	if !exists {
		return nil, ErrProfileNotFound
	}

	var buf bytes.Buffer
	zipWriter := zip.NewWriter(&buf)

	if err := writeReadme(zipWriter, s.now().UTC()); err != nil {
		return nil, err
	}
	for _, table := range accountExportTables {
		if err := s.writeTable(ctx, zipWriter, table, profileID); err != nil {
			return nil, err
		}
	}

	if err := zipWriter.Close(); err != nil {
		return nil, fmt.Errorf("close export zip: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *AccountService) writeTable(ctx context.Context, zipWriter *zip.Writer, table exportTable, profileID uuid.UUID) error {
	rows, err := s.db.Query(ctx, table.query, profileID)
	if err != nil {
		return fmt.Errorf("query %s: %w", table.file, err)
	}
	defer rows.Close()

	return writeCSVFile(zipWriter, table.file, table.header, func(w *csv.Writer) error {
		values := make([]string, len(table.header))
		dest := make([]any, len(values))
		for i := range values {
			dest[i] = &values[i]
		}
		for rows.Next() {
			if err := rows.Scan(dest...); err != nil {
				return err
			}
			record := make([]string, len(values))
			for i, v := range values {
				record[i] = sanitizeCSVValue(v)
			}
			if err := w.Write(record); err != nil {
				return err
			}
		}
		return rows.Err()
	})
}

// Delete anonymises the profile and removes its relationships. Authored
// content stays behind under the scrubbed name.
func (s *AccountService) Delete(ctx context.Context, profileID uuid.UUID) error {
	return withTx(ctx, s.db, func(tx Tx) error {
		var deletedAt *time.Time
		err := tx.QueryRow(ctx, `SELECT deleted_at FROM profiles WHERE id = $1 FOR UPDATE`, profileID).Scan(&deletedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProfileNotFound
		}
		if err != nil {
			return fmt.Errorf("load profile: %w", err)
		}
		if deletedAt != nil {
			return nil
		}

		if _, err := tx.Exec(ctx, `
			UPDATE profiles
			SET connections_count = GREATEST(connections_count - 1, 0), updated_at = NOW()
			WHERE id IN (
				SELECT CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END
				FROM connection_requests
				WHERE status = 'accepted' AND (sender_id = $1 OR receiver_id = $1)
			)`, profileID); err != nil {
			return fmt.Errorf("release connection counts: %w", err)
		}

		cleanup := []struct {
			what  string
			query string
		}{
			{"connections", `DELETE FROM connection_requests WHERE sender_id = $1 OR receiver_id = $1`},
			{"invites", `DELETE FROM connection_invites WHERE inviter_id = $1`},
			{"mentoring", `DELETE FROM mentoring_relationships WHERE mentor_id = $1 OR mentee_id = $1`},
			{"identities", `DELETE FROM profile_identities WHERE profile_id = $1`},
			{"study group memberships", `DELETE FROM study_group_members WHERE user_id = $1`},
			{"event registrations", `DELETE FROM event_registrations WHERE user_id = $1`},
			{"listings", `DELETE FROM marketplace_listings WHERE seller_id = $1`},
			{"notifications", `DELETE FROM notifications WHERE user_id = $1`},
		}
		for _, c := range cleanup {
			if _, err := tx.Exec(ctx, c.query, profileID); err != nil {
				return fmt.Errorf("delete %s: %w", c.what, err)
			}
		}

		_, err = tx.Exec(ctx, `
			UPDATE profiles
			SET deleted_at = NOW(),
			    email = $2,
			    password_hash = NULL,
			    full_name = 'Deleted user',
			    department = '',
			    year_of_study = NULL,
			    bio = '',
			    avatar_url = NULL,
			    is_public = false,
			    connections_count = 0,
			    updated_at = NOW()
			WHERE id = $1`,
			profileID, fmt.Sprintf("deleted+%s@deleted.invalid", profileID),
		)
		if err != nil {
			return fmt.Errorf("soft delete profile: %w", err)
		}
		return nil
	})
}

func writeReadme(zipWriter *zip.Writer, generatedAt time.Time) error {
	file, err := zipWriter.Create("README.txt")
	if err != nil {
		return fmt.Errorf("create README.txt: %w", err)
	}
	content := fmt.Sprintf(
		"CampusLink account export\nexport_version: 1\ngenerated_at: %s\nnotes: password hashes and session tokens are excluded from this export.\n",
		generatedAt.Format(time.RFC3339),
	)
	if _, err := io.WriteString(file, content); err != nil {
		return fmt.Errorf("write README.txt: %w", err)
	}
	return nil
}

func writeCSVFile(zipWriter *zip.Writer, name string, header []string, writeRows func(*csv.Writer) error) error {
	file, err := zipWriter.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write %s header: %w", name, err)
	}
	if err := writeRows(writer); err != nil {
		return fmt.Errorf("write %s rows: %w", name, err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", name, err)
	}
	return nil
}

// sanitizeCSVValue neutralises spreadsheet formula injection.
func sanitizeCSVValue(value string) string {
	switch firstNonSpace(value) {
	case '=', '+', '-', '@':
		return "'" + strings.ReplaceAll(value, "'", "''")
	default:
		return value
	}
}

func firstNonSpace(value string) rune {
	for _, r := range value {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return r
		}
	}
	return 0
}
