package web

import (
    "errors"
    "net/http"

    "go.uber.org/zap"

    "github.com/jaminalder/tictactoe-rooms/internal/domain"
)

type errorBody struct {
    Error struct {
        Code    string `json:"code"`
        Message string `json:"message"`
    } `json:"error"`
}

// validationError rejects a malformed request before it reaches the service.
type validationError string

func (e validationError) Error() string { return string(e) }

var errorStatus = []struct {
    err    error
    status int
    code   string
}{
    {domain.ErrRoomNotFound, http.StatusNotFound, "room_not_found"},
    {domain.ErrRoomNotWaiting, http.StatusConflict, "room_not_waiting"},
    {domain.ErrRoomFull, http.StatusConflict, "room_full"},
    {domain.ErrAlreadyMember, http.StatusConflict, "already_member"},
    {domain.ErrCellOccupied, http.StatusConflict, "cell_occupied"},
    {domain.ErrNotYourTurn, http.StatusConflict, "not_your_turn"},
    {domain.ErrGameNotActive, http.StatusConflict, "game_not_active"},
    {domain.ErrNotAMember, http.StatusForbidden, "not_a_member"},
    {domain.ErrNotAPlayer, http.StatusForbidden, "not_a_player"},
    {domain.ErrInvalidCoordinate, http.StatusBadRequest, "invalid_coordinate"},
}

func writeErrorBody(w http.ResponseWriter, status int, code, msg string) {
    var body errorBody
    body.Error.Code = code
    body.Error.Message = msg
    writeJSON(w, status, body)
}

// fail maps err onto a status and error code. Anything unrecognised is logged
// and reported as internal.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
    var ve validationError
    if errors.As(err, &ve) {
        writeErrorBody(w, http.StatusBadRequest, "validation_error", ve.Error())
        return
    }
    for _, e := range errorStatus {
        if errors.Is(err, e.err) {
            writeErrorBody(w, e.status, e.code, e.err.Error())
            return
        }
    }
    h.log.Error("request failed",
        zap.String("method", r.Method),
        zap.String("path", r.URL.Path),
        zap.Error(err),
    )
    writeErrorBody(w, http.StatusInternalServerError, "internal", "internal error")
}
