package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{CodeInvalidParam, http.StatusBadRequest},
		{CodeTokenExpired, http.StatusUnauthorized},
		{CodeGenerationNotFound, http.StatusNotFound},
		{CodePersistenceConflict, http.StatusConflict},
		{CodeOutlineParseError, http.StatusBadGateway},
		{CodeQueueError, http.StatusInternalServerError},
		{ErrorCode("9999"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusOf(tt.code); got != tt.want {
			t.Errorf("StatusOf(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestWrappedSentinelMatches(t *testing.T) {
	cause := stderrors.New("duplicate key")
	err := fmt.Errorf("save outline: %w", ErrPersistenceConflict.WithError(cause))

	if !stderrors.Is(err, ErrPersistenceConflict) {
		t.Error("errors.Is should match by code")
	}
	if !stderrors.Is(err, cause) {
		t.Error("cause should stay reachable")
	}
	if stderrors.Is(err, ErrOutlineParse) {
		t.Error("different code should not match")
	}
	if CodeOf(err) != CodePersistenceConflict {
		t.Errorf("CodeOf = %s", CodeOf(err))
	}
	if ErrPersistenceConflict.Err != nil {
		t.Error("sentinel must not be mutated")
	}
}

func TestAsAppError(t *testing.T) {
	plain := stderrors.New("boom")
	got := AsAppError(plain)
	if got.Code != CodeUnknown || got.HTTPStatus != http.StatusInternalServerError {
		t.Errorf("AsAppError(plain) = %+v", got)
	}
	if CodeOf(plain) != CodeUnknown {
		t.Error("plain error should report CodeUnknown")
	}

	detailed := ErrInvalidParam.WithDetail("chapter_count must be between 1 and 10")
	if AsAppError(detailed) != detailed {
		t.Error("AppError should be returned as is")
	}
}
