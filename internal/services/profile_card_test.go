package services

import (
	"bytes"
	"context"
	"image/png"
	"strings"
	"testing"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/HammerMeetNail/campuslink/internal/models"
)

func TestClampLines_TruncatesWithValidUTF8(t *testing.T) {
	face := basicfont.Face7x13
	d := &font.Drawer{Face: face}

	original := "こんにちは世界😀😀😀"
	maxWidth := d.MeasureString("こんにちは...").Ceil()

	out := clampLines(face, []string{original, "unused"}, 1, maxWidth)
	if len(out) != 1 {
		t.Fatalf("expected 1 line, got %d", len(out))
	}
	if !strings.HasSuffix(out[0], "...") {
		t.Fatalf("expected ellipsis suffix, got %q", out[0])
	}
	if !utf8.ValidString(out[0]) {
		t.Fatalf("expected valid UTF-8, got %q", out[0])
	}
}

func TestClampLines_ShortLinesUntouched(t *testing.T) {
	out := clampLines(basicfont.Face7x13, []string{"a", "b"}, 3, 100)
	if len(out) != 2 || out[1] != "b" {
		t.Fatalf("unexpected lines %v", out)
	}
}

func TestWrapText(t *testing.T) {
	face := basicfont.Face7x13
	width := (&font.Drawer{Face: face}).MeasureString("gamma delta").Ceil()
	lines := wrapText(face, "alpha beta gamma delta", width)
	if len(lines) != 2 || lines[0] != "alpha beta" || lines[1] != "gamma delta" {
		t.Fatalf("unexpected wrap %q", lines)
	}
	if got := wrapText(face, "   ", width); len(got) != 0 {
		t.Fatalf("expected no lines for blank text, got %q", got)
	}
}

func TestRenderProfileCardPNG(t *testing.T) {
	for _, limited := range []bool{false, true} {
		data, err := RenderProfileCardPNG(models.PublicProfile{
			FullName:         "Ada Lovelace",
			Role:             models.RoleMentor,
			Department:       "Mathematics",
			Limited:          limited,
			Bio:              strings.Repeat("analytical engines and notes ", 30),
			ConnectionsCount: 1,
			DailyStreak:      12,
		})
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if b := img.Bounds(); b.Dx() != cardWidth || b.Dy() != cardHeight {
			t.Fatalf("unexpected size %v", b)
		}
	}
}

func TestProfileService_RenderCard_NotFound(t *testing.T) {
	db := &fakeDB{QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row { return noRows() }}
	viewer := testProfile(models.RoleStudent)
	if _, err := NewProfileService(db).RenderCard(context.Background(), &viewer, viewer.ID); err == nil {
		t.Fatal("expected error for missing profile")
	}
}

func TestPluralize(t *testing.T) {
	if got := pluralize(1, "connection"); got != "1 connection" {
		t.Fatalf("got %q", got)
	}
	if got := pluralize(0, "connection"); got != "0 connections" {
		t.Fatalf("got %q", got)
	}
}
