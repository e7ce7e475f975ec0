package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/roastery/internal/domain"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"result": "success"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error("BATCH_NOT_FOUND", "no such batch", nil))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "BATCH_NOT_FOUND", resp.Error.Code)
	assert.Equal(t, "no such batch", resp.Error.Message)
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Error("RECIPE_NOT_FOUND", "recipe not found", map[string]string{"id": "x"}))
	assert.Contains(t, buf.String(), "Error [RECIPE_NOT_FOUND]: recipe not found")
	assert.NotContains(t, buf.String(), "Details:")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	require.NoError(t, formatter.Error("RECIPE_NOT_FOUND", "recipe not found", map[string]string{"id": "x"}))
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			errBuf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: buf, ErrWriter: errBuf, Verbose: tt.verbose}

			formatter.VerboseLog("Loading %s", "catalog")

			assert.Empty(t, buf.String(), "diagnostics never go to the JSON stream")
			if tt.wantLog {
				assert.Contains(t, errBuf.String(), "Loading catalog")
			} else {
				assert.Empty(t, errBuf.String())
			}
		})
	}
}

func TestOutputFormatter_FailDomainError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	shortage := domain.NewInsufficientStock("house", []domain.Shortage{{
		MaterialID: "green-eth",
		Requested:  decimal.NewFromInt(6),
		Available:  decimal.NewFromInt(4),
		Shortfall:  decimal.NewFromInt(2),
	}})
	err := formatter.Fail(shortage)

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, IsReported(err))
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INSUFFICIENT_STOCK", resp.Error.Code)
	assert.NotNil(t, resp.Error.Details, "shortages are listed")
}

func TestOutputFormatter_FailOtherErrors(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Fail(errors.New("disk on fire"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.False(t, IsReported(err))

	exitErr := NewExitError(ExitCommandError, "bad flag")
	assert.Same(t, exitErr, formatter.Fail(exitErr))
	assert.Empty(t, buf.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "wrapped", errors.New("inner"))))
	assert.Equal(t, "wrapped: inner", WrapExitError(ExitCommandError, "wrapped", errors.New("inner")).Error())
}

func TestGrouped(t *testing.T) {
	tests := []struct {
		in     string
		places int32
		want   string
	}{
		{"0", 2, "0.00"},
		{"8.6", 2, "8.60"},
		{"1234.5", 2, "1,234.50"},
		{"12345678.125", 2, "12,345,678.13"},
		{"-1234.5", 2, "-1,234.50"},
		{"999.999", 2, "1,000.00"},
		{"42", 0, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, grouped(decimal.RequireFromString(tt.in), tt.places))
		})
	}
}
