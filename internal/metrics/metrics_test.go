package metrics

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRecordStoreOperation(t *testing.T) {
	m := New()

	m.RecordStoreOperation("add_shift", nil, 0.01)
	m.RecordStoreOperation("add_shift", nil, 0.02)
	m.RecordStoreOperation("get_shift", errors.New("db down"), 0.05)

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	var total, errored float64
	var durationSamples uint64
	for _, f := range families {
		switch f.GetName() {
		case "shiftlog_store_operations_total":
			for _, mt := range f.GetMetric() {
				v := mt.GetCounter().GetValue()
				total += v
				for _, lp := range mt.GetLabel() {
					if lp.GetName() == "status" && lp.GetValue() == "error" {
						errored += v
					}
				}
			}
		case "shiftlog_store_operation_duration_seconds":
			for _, mt := range f.GetMetric() {
				durationSamples += mt.GetHistogram().GetSampleCount()
			}
		}
	}

	if total != 3 {
		t.Errorf("expected 3 recorded operations, got %v", total)
	}
	if errored != 1 {
		t.Errorf("expected 1 errored operation, got %v", errored)
	}
	if durationSamples != 3 {
		t.Errorf("expected 3 duration samples, got %d", durationSamples)
	}
}

func TestHandlerReportsStoreOperations(t *testing.T) {
	m := New()
	m.RecordStoreOperation("add_shift", nil, 0.01)
	m.RecordStoreOperation("update_shift", errors.New("db down"), 0.02)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler()(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var summary Summary
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.Store.TotalOperations != 2 {
		t.Errorf("expected 2 store operations, got %v", summary.Store.TotalOperations)
	}
	if summary.Store.Errors != 1 {
		t.Errorf("expected 1 store error, got %v", summary.Store.Errors)
	}
}
