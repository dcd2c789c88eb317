package services

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/HammerMeetNail/campuslink/internal/models"
)

const profileSheet = "Users"

var profileExportHeaders = []string{
	"Full Name", "Email", "Role", "Department", "Year", "Connections", "Streak", "Last Active", "Joined",
}

// ExportXLSX writes every active profile to a workbook. Authority only.
func (s *ProfileService) ExportXLSX(ctx context.Context, actor *models.Profile, w io.Writer) error {
	if actor == nil || actor.Role != models.RoleAuthority {
		return ErrForbidden
	}
	profiles, err := s.ListAll(ctx)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", profileSheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	if err := writeHeaderRow(f, profileSheet, profileExportHeaders); err != nil {
		return err
	}

	for i, p := range profiles {
		year, lastActive := "", ""
		if p.YearOfStudy != nil {
			year = strconv.Itoa(*p.YearOfStudy)
		}
		if p.LastActivityDate != nil {
			lastActive = p.LastActivityDate.Format("2006-01-02")
		}
		values := []interface{}{
			p.FullName, p.Email, string(p.Role), p.Department, year,
			p.ConnectionsCount, p.DailyStreak, lastActive, p.CreatedAt.Format("2006-01-02"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(profileSheet, cell, &values); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
