package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/HammerMeetNail/campuslink/internal/models"
)

const (
	cardWidth   = 1200
	cardHeight  = 630
	cardPadding = 60
	cardBand    = 24
)

var (
	fontOnce     sync.Once
	regularFont  *opentype.Font
	boldFont     *opentype.Font
	fontParseErr error
)

var roleColors = map[models.Role]color.RGBA{
	models.RoleStudent:   {0x2F, 0x6F, 0xDE, 0xFF},
	models.RoleMentor:    {0x1B, 0x8A, 0x5A, 0xFF},
	models.RoleTeacher:   {0xC9, 0x7A, 0x12, 0xFF},
	models.RoleAuthority: {0x8E, 0x2D, 0xA8, 0xFF},
}

// RenderCard draws the shareable card for a profile as the viewer is allowed
// to see it.
func (s *ProfileService) RenderCard(ctx context.Context, viewer *models.Profile, id uuid.UUID) ([]byte, error) {
	pub, err := s.GetPublicProfile(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	return RenderProfileCardPNG(*pub)
}

func RenderProfileCardPNG(p models.PublicProfile) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, cardWidth, cardHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{0xFA, 0xF9, 0xF7, 0xFF}}, image.Point{}, draw.Src)

	accent, ok := roleColors[p.Role]
	if !ok {
		accent = color.RGBA{0x3A, 0x3A, 0x3A, 0xFF}
	}
	draw.Draw(img, image.Rect(0, 0, cardBand, cardHeight), &image.Uniform{C: accent}, image.Point{}, draw.Src)

	nameFace, err := newFontFace(true, 56)
	if err != nil {
		return nil, err
	}
	defer func() { _ = nameFace.Close() }()

	metaFace, err := newFontFace(false, 28)
	if err != nil {
		return nil, err
	}
	defer func() { _ = metaFace.Close() }()

	bodyFace, err := newFontFace(false, 24)
	if err != nil {
		return nil, err
	}
	defer func() { _ = bodyFace.Close() }()

	textWidth := cardWidth - cardBand - cardPadding*2
	left := cardBand + cardPadding
	dark := color.RGBA{0x2D, 0x2D, 0x2D, 0xFF}
	muted := color.RGBA{0x6B, 0x6B, 0x6B, 0xFF}

	name := clampLines(nameFace, []string{p.FullName}, 1, textWidth)
	if len(name) == 1 {
		drawText(img, nameFace, left, 140, name[0], dark)
	}

	meta := capitalize(string(p.Role))
	if p.Department != "" {
		meta += " - " + p.Department
	}
	drawText(img, metaFace, left, 195, meta, accent)

	y := 280
	if !p.Limited {
		stats := fmt.Sprintf("%s - %d day streak", pluralize(p.ConnectionsCount, "connection"), p.DailyStreak)
		drawText(img, metaFace, left, y, stats, muted)
		y += 70

		lines := clampLines(bodyFace, wrapText(bodyFace, p.Bio, textWidth), 5, textWidth)
		lineHeight := bodyFace.Metrics().Height.Ceil() + 6
		for _, line := range lines {
			drawText(img, bodyFace, left, y, line, dark)
			y += lineHeight
		}
	}

	drawText(img, metaFace, left, cardHeight-cardPadding, "CampusLink", muted)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func newFontFace(bold bool, size float64) (font.Face, error) {
	fontOnce.Do(func() {
		regularFont, fontParseErr = opentype.Parse(goregular.TTF)
		if fontParseErr == nil {
			boldFont, fontParseErr = opentype.Parse(gobold.TTF)
		}
	})
	if fontParseErr != nil {
		return nil, fmt.Errorf("parse font: %w", fontParseErr)
	}
	f := regularFont
	if bold {
		f = boldFont
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("load font face: %w", err)
	}
	return face, nil
}

func drawText(img draw.Image, face font.Face, x, y int, text string, clr color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(clr),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func wrapText(face font.Face, text string, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{}
	}

	d := &font.Drawer{Face: face}
	lines := []string{}
	current := words[0]
	for _, word := range words[1:] {
		test := current + " " + word
		if d.MeasureString(test).Ceil() <= maxWidth {
			current = test
			continue
		}
		lines = append(lines, current)
		current = word
	}
	return append(lines, current)
}

// clampLines keeps at most maxLines and ends the last kept line with an
// ellipsis when anything was cut or the line overflows maxWidth.
func clampLines(face font.Face, lines []string, maxLines int, maxWidth int) []string {
	d := &font.Drawer{Face: face}
	if len(lines) <= maxLines {
		if len(lines) == 0 || d.MeasureString(lines[len(lines)-1]).Ceil() <= maxWidth {
			return lines
		}
	} else {
		lines = lines[:maxLines]
	}

	const ellipsis = "..."
	runes := []rune(lines[len(lines)-1])
	for d.MeasureString(string(runes)+ellipsis).Ceil() > maxWidth && len(runes) > 0 {
		runes = runes[:len(runes)-1]
	}
	lines[len(lines)-1] = strings.TrimSpace(string(runes)) + ellipsis
	return lines
}
