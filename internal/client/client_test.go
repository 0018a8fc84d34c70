package client

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/odapt/internal/ir"
)

func TestRequestError_MatchesNotFound(t *testing.T) {
	err := fmt.Errorf("get Products: %w", NotFound("Products(%d)", -1))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "404 Not Found")
	assert.Contains(t, err.Error(), "Products(-1)")

	var re *RequestError
	assert.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusNotFound, re.Status)
}

func TestRequestError_OtherStatusIsNotNotFound(t *testing.T) {
	assert.False(t, errors.Is(BadRequest("bad filter"), ErrNotFound))
	assert.False(t, errors.Is(&RequestError{Status: http.StatusUnauthorized}, ErrNotFound))
}

func TestKey(t *testing.T) {
	positional := Key{Positional: []ir.Value{ir.Int(10248), ir.Int(11)}}
	assert.Equal(t, 2, positional.Len())
	assert.Equal(t, []ir.Value{ir.Int(10248), ir.Int(11)}, positional.Values())

	named := Key{Named: ir.RecordOf(ir.P("OrderID", ir.Int(10248)), ir.P("ProductID", ir.Int(11)))}
	assert.Equal(t, 2, named.Len())
	assert.Equal(t, []ir.Value{ir.Int(10248), ir.Int(11)}, named.Values())

	assert.True(t, Key{}.IsZero())
	assert.False(t, named.IsZero())
}
