package api

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/valyala/fasthttp"

	"github.com/park285/Cheese-chess-server/internal/auth"
	"github.com/park285/Cheese-chess-server/internal/lobby"
	"github.com/park285/Cheese-chess-server/internal/store"
	"github.com/park285/Cheese-chess-server/pkg/chessdto"
)

// classify maps service errors to an HTTP status and error code.
func classify(err error) (int, string) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs), errors.Is(err, lobby.ErrInvalidArgs):
		return fasthttp.StatusBadRequest, chessdto.CodeBadRequest
	case errors.Is(err, auth.ErrBadCredentials), errors.Is(err, auth.ErrInvalidToken):
		return fasthttp.StatusUnauthorized, chessdto.CodeUnauthorized
	case errors.Is(err, auth.ErrUsernameTaken), errors.Is(err, lobby.ErrSeatTaken):
		return fasthttp.StatusForbidden, chessdto.CodeForbidden
	case errors.Is(err, lobby.ErrGameOver):
		return fasthttp.StatusForbidden, chessdto.CodeGameOver
	case errors.Is(err, lobby.ErrGameNotFound), errors.Is(err, store.ErrNotFound):
		return fasthttp.StatusNotFound, chessdto.CodeNotFound
	case errors.Is(err, store.ErrConflict):
		return fasthttp.StatusConflict, chessdto.CodeConflict
	default:
		return fasthttp.StatusInternalServerError, chessdto.CodeInternal
	}
}
