package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error is a classified failure of a planning, execution or ledger operation.
//
// Callers match on Code, either with CodeOf or with errors.Is against one of the
// Err* sentinels below:
//
//	if errors.Is(err, domain.ErrInsufficientStock) { ... }
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// RecipeID identifies the affected recipe, if any.
	RecipeID string

	// MaterialID identifies the affected material, if any.
	MaterialID string

	// Shortages lists every short component for INSUFFICIENT_STOCK.
	Shortages []Shortage

	// Err is the underlying cause (storage errors).
	Err error
}

// Code categorizes domain errors.
type Code string

const (
	CodeInvalidRecipe      Code = "INVALID_RECIPE"
	CodeInvalidTarget      Code = "INVALID_TARGET"
	CodeInvalidQuantity    Code = "INVALID_QUANTITY"
	CodeRecipeNotFound     Code = "RECIPE_NOT_FOUND"
	CodeMaterialNotFound   Code = "MATERIAL_NOT_FOUND"
	CodeInsufficientStock  Code = "INSUFFICIENT_STOCK"
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
	CodeBatchNotFound      Code = "BATCH_NOT_FOUND"
	CodeEntryNotFound      Code = "ENTRY_NOT_FOUND"
	CodeNotReversible      Code = "NOT_REVERSIBLE"
	CodeInvalidCursor      Code = "INVALID_CURSOR"
)

// Sentinels for errors.Is. They match any *Error with the same Code.
var (
	ErrInvalidRecipe      = &Error{Code: CodeInvalidRecipe}
	ErrInvalidTarget      = &Error{Code: CodeInvalidTarget}
	ErrInvalidQuantity    = &Error{Code: CodeInvalidQuantity}
	ErrRecipeNotFound     = &Error{Code: CodeRecipeNotFound}
	ErrMaterialNotFound   = &Error{Code: CodeMaterialNotFound}
	ErrInsufficientStock  = &Error{Code: CodeInsufficientStock}
	ErrStorageUnavailable = &Error{Code: CodeStorageUnavailable}
	ErrBatchNotFound      = &Error{Code: CodeBatchNotFound}
	ErrEntryNotFound      = &Error{Code: CodeEntryNotFound}
	ErrNotReversible      = &Error{Code: CodeNotReversible}
	ErrInvalidCursor      = &Error{Code: CodeInvalidCursor}
)

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.RecipeID != "" {
		fmt.Fprintf(&b, " (recipe=%s)", e.RecipeID)
	}
	if e.MaterialID != "" {
		fmt.Fprintf(&b, " (material=%s)", e.MaterialID)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ShortagesOf returns the shortages carried by an INSUFFICIENT_STOCK error.
func ShortagesOf(err error) []Shortage {
	var de *Error
	if errors.As(err, &de) && de.Code == CodeInsufficientStock {
		return de.Shortages
	}
	return nil
}

// NewInvalidRecipe creates an INVALID_RECIPE error.
func NewInvalidRecipe(recipeID, message string) *Error {
	return &Error{Code: CodeInvalidRecipe, Message: message, RecipeID: recipeID}
}

// NewInvalidTarget creates an INVALID_TARGET error.
func NewInvalidTarget(message string) *Error {
	return &Error{Code: CodeInvalidTarget, Message: message}
}

// NewInvalidQuantity creates an INVALID_QUANTITY error.
func NewInvalidQuantity(materialID, message string) *Error {
	return &Error{Code: CodeInvalidQuantity, Message: message, MaterialID: materialID}
}

// NewRecipeNotFound creates a RECIPE_NOT_FOUND error.
func NewRecipeNotFound(recipeID string) *Error {
	return &Error{Code: CodeRecipeNotFound, Message: "no such recipe", RecipeID: recipeID}
}

// NewMaterialNotFound creates a MATERIAL_NOT_FOUND error.
func NewMaterialNotFound(materialID string) *Error {
	return &Error{Code: CodeMaterialNotFound, Message: "no such material", MaterialID: materialID}
}

// NewInsufficientStock creates an INSUFFICIENT_STOCK error listing every short material.
func NewInsufficientStock(recipeID string, shortages []Shortage) *Error {
	parts := make([]string, len(shortages))
	for i, s := range shortages {
		parts[i] = fmt.Sprintf("%s short by %s", s.MaterialID, s.Shortfall.StringFixed(WeightPlaces))
	}
	return &Error{
		Code:      CodeInsufficientStock,
		Message:   strings.Join(parts, ", "),
		RecipeID:  recipeID,
		Shortages: shortages,
	}
}

// NewStorageUnavailable wraps an infrastructure failure.
func NewStorageUnavailable(op string, err error) *Error {
	return &Error{Code: CodeStorageUnavailable, Message: op, Err: err}
}

// NewBatchNotFound creates a BATCH_NOT_FOUND error.
func NewBatchNotFound(batchID string) *Error {
	return &Error{Code: CodeBatchNotFound, Message: fmt.Sprintf("no batch %q", batchID)}
}

// NewEntryNotFound creates an ENTRY_NOT_FOUND error.
func NewEntryNotFound(entryID string) *Error {
	return &Error{Code: CodeEntryNotFound, Message: fmt.Sprintf("no ledger entry %q", entryID)}
}

// NewNotReversible creates a NOT_REVERSIBLE error.
func NewNotReversible(entryID, reason string) *Error {
	return &Error{Code: CodeNotReversible, Message: fmt.Sprintf("entry %s: %s", entryID, reason)}
}

// NewInvalidCursor creates an INVALID_CURSOR error for a page cursor that was
// not produced by a batch listing.
func NewInvalidCursor(cursor string, err error) *Error {
	return &Error{Code: CodeInvalidCursor, Message: fmt.Sprintf("cursor %q", cursor), Err: err}
}
