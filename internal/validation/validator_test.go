// Atelier - Infinite Artwork Canvas and Similarity Explorer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/atelier

package validation

import (
	"strings"
	"testing"
)

type chunkQuery struct {
	Count   int      `validate:"gt=0,lte=200"`
	Exclude []string `validate:"max=3"`
}

type batchQuery struct {
	Coords []string `validate:"required,min=1,max=64"`
	Count  int      `validate:"gt=0,lte=200"`
}

func TestValidateStruct_Valid(t *testing.T) {
	if err := ValidateStruct(chunkQuery{Count: 20}); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestValidateStruct_SingleFailure(t *testing.T) {
	err := ValidateStruct(chunkQuery{Count: 0})
	if err == nil {
		t.Fatal("expected validation error")
	}

	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %q", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "Count") {
		t.Errorf("message should name the field, got %q", apiErr.Message)
	}
	if apiErr.Details["field"] != "Count" {
		t.Errorf("expected field detail Count, got %v", apiErr.Details["field"])
	}
	if apiErr.Details["tag"] != "gt" {
		t.Errorf("expected tag detail gt, got %v", apiErr.Details["tag"])
	}
}

func TestValidateStruct_MultipleFailures(t *testing.T) {
	err := ValidateStruct(batchQuery{Coords: nil, Count: 500})
	if err == nil {
		t.Fatal("expected validation error")
	}

	apiErr := err.ToAPIError()
	fields, ok := apiErr.Details["fields"].([]map[string]interface{})
	if !ok {
		t.Fatalf("expected fields detail, got %T", apiErr.Details["fields"])
	}
	if len(fields) != 2 {
		t.Fatalf("expected 2 field failures, got %d", len(fields))
	}
	if !strings.Contains(apiErr.Message, ";") {
		t.Errorf("expected joined messages, got %q", apiErr.Message)
	}
}

func TestValidateStruct_TranslatedMessages(t *testing.T) {
	err := ValidateStruct(chunkQuery{Count: 500})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "less than or equal to 200") {
		t.Errorf("expected lte translation, got %q", err.Error())
	}

	err = ValidateStruct(chunkQuery{Count: 1, Exclude: []string{"a", "b", "c", "d"}})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "above the maximum") {
		t.Errorf("expected max translation, got %q", err.Error())
	}
}

func TestGetValidator_Singleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("expected the same validator instance")
	}
}
