package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// Range is a parsed A1 range. Columns are zero based, rows one based, both
// inclusive. ToRow == 0 means the range is open ended.
type Range struct {
	FromCol, ToCol int
	FromRow, ToRow int
}

// ParseRange accepts "C5", "A2:C", "A:A" and "A1:D10".
func ParseRange(s string) (Range, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Range{}, fmt.Errorf("%w: empty", ErrInvalidRange)
	}

	start, end, hasEnd := strings.Cut(s, ":")
	fromCol, fromRow, err := parseCell(start)
	if err != nil {
		return Range{}, err
	}
	if !hasEnd {
		r := Range{FromCol: fromCol, ToCol: fromCol, FromRow: fromRow, ToRow: fromRow}
		if fromRow == 0 {
			r.FromRow = 1
		}
		return r, nil
	}

	toCol, toRow, err := parseCell(end)
	if err != nil {
		return Range{}, err
	}
	if fromRow == 0 {
		fromRow = 1
	}
	if toCol < fromCol || (toRow != 0 && toRow < fromRow) {
		return Range{}, fmt.Errorf("%w: %q is reversed", ErrInvalidRange, s)
	}
	return Range{FromCol: fromCol, ToCol: toCol, FromRow: fromRow, ToRow: toRow}, nil
}

// IsCell reports whether the range addresses exactly one cell.
func (r Range) IsCell() bool {
	return r.FromCol == r.ToCol && r.ToRow != 0 && r.FromRow == r.ToRow
}

// ContainsRow reports whether the one based row lies inside the range.
func (r Range) ContainsRow(row int) bool {
	return row >= r.FromRow && (r.ToRow == 0 || row <= r.ToRow)
}

// Slice returns the cells of a row that fall inside the range's columns,
// without trailing empty cells.
func (r Range) Slice(cells []string) []string {
	if r.FromCol >= len(cells) {
		return []string{}
	}
	to := r.ToCol + 1
	if to > len(cells) {
		to = len(cells)
	}
	out := append([]string(nil), cells[r.FromCol:to]...)
	return trimRow(out)
}

// ClearRow blanks the range's columns in a row.
func (r Range) ClearRow(cells []string) []string {
	out := append([]string(nil), cells...)
	for c := r.FromCol; c <= r.ToCol && c < len(out); c++ {
		out[c] = ""
	}
	return trimRow(out)
}

// SetCell returns a copy of cells with column col set to value.
func SetCell(cells []string, col int, value string) []string {
	out := append([]string(nil), cells...)
	for len(out) <= col {
		out = append(out, "")
	}
	out[col] = value
	return trimRow(out)
}

// CellRef formats a zero based column and one based row, e.g. (2, 5) -> "C5".
func CellRef(col, row int) string {
	return columnName(col) + strconv.Itoa(row)
}

func parseCell(s string) (col, row int, err error) {
	i := 0
	for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
		i++
	}
	if i == 0 {
		return 0, 0, fmt.Errorf("%w: %q has no column", ErrInvalidRange, s)
	}
	for _, ch := range s[:i] {
		col = col*26 + int(ch-'A'+1)
	}
	col--

	if i == len(s) {
		return col, 0, nil
	}
	row, err = strconv.Atoi(s[i:])
	if err != nil || row < 1 {
		return 0, 0, fmt.Errorf("%w: bad row in %q", ErrInvalidRange, s)
	}
	return col, row, nil
}

func columnName(col int) string {
	name := ""
	for col >= 0 {
		name = string(rune('A'+col%26)) + name
		col = col/26 - 1
	}
	return name
}

func trimRow(cells []string) []string {
	n := len(cells)
	for n > 0 && cells[n-1] == "" {
		n--
	}
	return cells[:n]
}

func isEmptyRow(cells []string) bool {
	return len(trimRow(cells)) == 0
}
