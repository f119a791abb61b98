package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/lotkeeper/lotkeeper-backend/pkg/errors"
	"github.com/lotkeeper/lotkeeper-backend/pkg/types"
)

func TestWriteSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"lot_number": "LOT-20260412-0001"})

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var envelope struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Data["lot_number"] != "LOT-20260412-0001" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestWritePaged(t *testing.T) {
	rec := httptest.NewRecorder()
	WritePaged(rec, []string{"a", "b"}, types.PageMeta{Page: 1, Limit: 2, Total: 5, TotalPages: 3})

	var envelope struct {
		Data []string       `json:"data"`
		Meta types.PageMeta `json:"meta"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(envelope.Data) != 2 || envelope.Meta.TotalPages != 3 {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestWriteErrorTypedCode(t *testing.T) {
	rec := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeQuantityMismatch, "children quantities must sum to the parent's current quantity").
		WithDetails(map[string]string{"parent_quantity": "70", "children_sum": "60"})
	WriteError(context.Background(), nil, rec, err)

	if rec.Code != 422 {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	var envelope types.ErrorEnvelope
	if unmarshalErr := json.Unmarshal(rec.Body.Bytes(), &envelope); unmarshalErr != nil {
		t.Fatalf("unmarshal: %v", unmarshalErr)
	}
	if envelope.Error.Code != string(pkgerrors.CodeQuantityMismatch) {
		t.Fatalf("code = %s", envelope.Error.Code)
	}
	if envelope.Error.Details == nil {
		t.Fatal("expected details to pass through")
	}
}

func TestWriteErrorUntypedMasksMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, errors.New("pq: connection refused"))

	if rec.Code != 500 {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeInternal) {
		t.Fatalf("code = %s", envelope.Error.Code)
	}
	if envelope.Error.Message == "pq: connection refused" {
		t.Fatal("internal error detail must not leak")
	}
}
