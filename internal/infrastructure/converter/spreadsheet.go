package converter

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"unicode/utf8"

	"github.com/disintegration/imaging"
	"github.com/xuri/excelize/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	maxSheetRows    = 80
	maxSheetColumns = 16
	maxCellRunes    = 24
	cellPadding     = 6
	rowHeight       = 18
)

var gridColor = color.Gray{Y: 200}

// renderSpreadsheet draws the first sheet's leading rows as a text grid.
func (c *Converter) renderSpreadsheet(ctx context.Context, path string) (string, error) {
	book, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return "", errors.New("workbook has no sheets")
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return "", fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	grid := renderGrid(clipRows(rows))
	fitted := imaging.Fit(grid, c.maxEdge, c.maxEdge, imaging.Lanczos)
	out := c.pageImagePath(path)
	if err := imaging.Save(fitted, out); err != nil {
		return "", fmt.Errorf("save sheet image: %w", err)
	}
	return out, nil
}

func clipRows(rows [][]string) [][]string {
	if len(rows) > maxSheetRows {
		rows = rows[:maxSheetRows]
	}
	clipped := make([][]string, len(rows))
	for i, row := range rows {
		if len(row) > maxSheetColumns {
			row = row[:maxSheetColumns]
		}
		cells := make([]string, len(row))
		for j, cell := range row {
			if utf8.RuneCountInString(cell) > maxCellRunes {
				cell = string([]rune(cell)[:maxCellRunes-1]) + "~"
			}
			cells[j] = cell
		}
		clipped[i] = cells
	}
	return clipped
}

func renderGrid(rows [][]string) *image.RGBA {
	face := basicfont.Face7x13

	widths := []int{}
	for _, row := range rows {
		for j, cell := range row {
			w := font.MeasureString(face, cell).Ceil() + 2*cellPadding
			if j >= len(widths) {
				widths = append(widths, w)
			} else {
				widths[j] = max(widths[j], w)
			}
		}
	}
	totalWidth := 1
	for _, w := range widths {
		totalWidth += w
	}
	totalWidth = max(totalWidth, 64)
	totalHeight := max(len(rows)*rowHeight+1, rowHeight)

	img := image.NewRGBA(image.Rect(0, 0, totalWidth, totalHeight))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	for i := 0; i <= len(rows); i++ {
		y := i * rowHeight
		for x := 0; x < totalWidth; x++ {
			img.Set(x, y, gridColor)
		}
	}
	x := 0
	for _, w := range widths {
		for y := 0; y < totalHeight; y++ {
			img.Set(x, y, gridColor)
		}
		x += w
	}

	drawer := &font.Drawer{Dst: img, Src: image.Black, Face: face}
	for i, row := range rows {
		x := 0
		for j, cell := range row {
			drawer.Dot = fixed.P(x+cellPadding, i*rowHeight+rowHeight-5)
			drawer.DrawString(cell)
			x += widths[j]
		}
	}
	return img
}
