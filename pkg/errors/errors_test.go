package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	plain := FromError(errors.New("disk full"))
	assert.Equal(t, ErrInternal.Code, plain.Code)
	assert.Equal(t, http.StatusInternalServerError, plain.Status)

	wrapped := fmt.Errorf("load group: %w", Clone(ErrNotFound, "group not found"))
	assert.Equal(t, "group not found", FromError(wrapped).Message)
}

func TestIsMatchesByCode(t *testing.T) {
	err := Wrap(errors.New("no rows"), ErrNotFound.Code, ErrNotFound.Status, "group not found")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, Clone(ErrValidation, "bad"), ErrValidation)
	assert.NotErrorIs(t, err, ErrValidation)
}

func TestWithDetailsCopies(t *testing.T) {
	detailed := ErrGenerationFailed.WithDetails(map[string]interface{}{"attempts": 30})
	assert.Equal(t, 30, detailed.Details["attempts"])
	assert.Nil(t, ErrGenerationFailed.Details)
}
