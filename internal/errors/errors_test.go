package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCode(t *testing.T) {
	base := LoadFailed(fmt.Errorf("bad zip"))
	wrapped := Wrap(base, "upload")

	assert.Equal(t, CodeLoadFailed, GetCode(wrapped))
	assert.Contains(t, wrapped.Error(), "bad zip")
	assert.Nil(t, Wrap(nil, "ignored"))
}

func TestGetCodeThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("session: %w", EmptyAfterFilter("Fecha", "auto"))
	assert.True(t, HasCode(err, CodeEmptyAfterFilter))
	assert.True(t, IsAppError(err))
	assert.Equal(t, "UNKNOWN", GetCode(fmt.Errorf("plain")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{LoadFailed(nil), http.StatusBadRequest},
		{InvalidInput("x"), http.StatusBadRequest},
		{EmptyAfterFilter("Fecha", "iso"), http.StatusUnprocessableEntity},
		{NotFound("session"), http.StatusNotFound},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}
