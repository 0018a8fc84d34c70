package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/odapt/internal/client"
	"github.com/roach88/odapt/internal/ir"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONNoHTMLEscape(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success("Products?$skip=1&$top=2"))
	assert.Contains(t, buf.String(), "$skip=1&$top=2")
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("NOT_FOUND", "entry not found", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	assert.Equal(t, "entry not found", resp.Error.Message)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("3 affected")
	require.NoError(t, err)
	assert.Equal(t, "3 affected\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Error("KEY_MISMATCH", "expected 2 key values, got 1", nil)
	require.NoError(t, err)
	assert.Equal(t, "Error [KEY_MISMATCH]: expected 2 key values, got 1\n", buf.String())
}

func TestOutputFormatter_Records(t *testing.T) {
	rows := []*ir.Record{
		ir.RecordOf(ir.P("ProductID", ir.Int(1)), ir.P("ProductName", ir.String("Chai"))),
		ir.RecordOf(ir.P("ProductID", ir.Int(2)), ir.P("ProductName", ir.String("Chang"))),
	}

	t.Run("text", func(t *testing.T) {
		buf := &bytes.Buffer{}
		require.NoError(t, (&OutputFormatter{Format: "text", Writer: buf}).Records(rows))
		assert.Equal(t, `{"ProductID":1,"ProductName":"Chai"}
{"ProductID":2,"ProductName":"Chang"}
(2 rows)
`, buf.String())
	})

	t.Run("json empty", func(t *testing.T) {
		buf := &bytes.Buffer{}
		require.NoError(t, (&OutputFormatter{Format: "json", Writer: buf}).Records(nil))
		assert.JSONEq(t, `{"status":"ok","data":[]}`, buf.String())
	})
}

func TestOutputFormatter_Fail(t *testing.T) {
	cause := client.NotFound("Products(99) not found")

	t.Run("json", func(t *testing.T) {
		buf := &bytes.Buffer{}
		err := (&OutputFormatter{Format: "json", Writer: buf}).Fail("get", cause)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.True(t, IsReported(err))
		assert.True(t, errors.Is(err, cause))

		var resp CLIResponse
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	})

	t.Run("text", func(t *testing.T) {
		buf := &bytes.Buffer{}
		err := (&OutputFormatter{Format: "text", Writer: buf}).Fail("get", cause)
		require.Error(t, err)
		assert.False(t, IsReported(err))
		assert.Empty(t, buf.String())
		assert.Contains(t, err.Error(), "get failed")
	})
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.False(t, IsReported(errors.New("plain")))
}
