package session

import (
	"github.com/park285/Cheese-chess-server/pkg/chessdto"
)

type staticErr string

func (e staticErr) Error() string { return string(e) }

const (
	errNoBinding  staticErr = "no binding for identity in game"
	errSeatIsFree staticErr = "identity holds no seat"
)

func domainErr(code, msg string) chessdto.DomainError {
	return chessdto.DomainError{Code: code, Message: msg}
}
