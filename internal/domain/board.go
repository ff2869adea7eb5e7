package domain

// Cell represents a board cell state.
type Cell uint8

const (
    Empty Cell = iota
    X
    O
)

// String renders a cell as "X", "O" or "".
func (c Cell) String() string {
    switch c {
    case X:
        return "X"
    case O:
        return "O"
    default:
        return ""
    }
}

// Other returns the opposing symbol.
func (c Cell) Other() Cell {
    if c == X {
        return O
    }
    return X
}

// ParseCell is the inverse of String. Unknown values map to Empty.
func ParseCell(s string) Cell {
    switch s {
    case "X":
        return X
    case "O":
        return O
    default:
        return Empty
    }
}

// Board is a fixed 3x3 board stored row-major.
type Board [9]Cell

// At returns the cell at row r, column c. Coordinates must be in range.
func (b Board) At(r, c int) Cell { return b[r*3+c] }

// Rows returns the board as a 3x3 grid of symbols.
func (b Board) Rows() [3][3]string {
    var out [3][3]string
    for i, c := range b {
        out[i/3][i%3] = c.String()
    }
    return out
}

// BoardFromRows builds a board from a 3x3 grid of symbols.
func BoardFromRows(rows [3][3]string) Board {
    var b Board
    for r := range rows {
        for c := range rows[r] {
            b[r*3+c] = ParseCell(rows[r][c])
        }
    }
    return b
}

// Result is the outcome of evaluating a board.
type Result uint8

const (
    ResultNone Result = iota
    ResultX
    ResultO
    ResultDraw
)

// rows, then columns, then diagonals
var lines = [8][3]int{
    {0, 1, 2}, {3, 4, 5}, {6, 7, 8},
    {0, 3, 6}, {1, 4, 7}, {2, 5, 8},
    {0, 4, 8}, {2, 4, 6},
}

// Evaluate reports the first complete line on the board, a draw when the
// board is full without one, or ResultNone otherwise.
func Evaluate(b Board) Result {
    for _, ln := range lines {
        c := b[ln[0]]
        if c != Empty && b[ln[1]] == c && b[ln[2]] == c {
            if c == X {
                return ResultX
            }
            return ResultO
        }
    }
    for _, c := range b {
        if c == Empty {
            return ResultNone
        }
    }
    return ResultDraw
}
