package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/quantfolio/guidelines/internal/llm"
	"github.com/quantfolio/guidelines/internal/log"
)

const sampleOutput = "```json\n" + `{
  "is_valid": true,
  "validation_summary": "Investment policy statement with limit rules.",
  "collection_id": "fund-x",
  "collection_name": "Fund X",
  "doc_id": "ips-2024",
  "doc_name": "IPS 2024",
  "doc_date": "2024-03-01",
  "digest": "Equity and fixed income limits for Fund X.",
  "guidelines": [
    {
      "rule_id": "V-C-3",
      "part": "Part V",
      "section": "C. Limits",
      "subsection": "3",
      "text": "No single issuer may exceed 5% of portfolio market value.",
      "page": 8,
      "provenance": "Part V.C.3, page 8"
    },
    {
      "rule_id": "",
      "part": "Part V",
      "section": "C. Limits",
      "subsection": "4",
      "text": "Derivatives may be used for hedging only.",
      "page": 9,
      "provenance": "Part V.C.4, page 9",
      "structured": {"instrument": "derivatives", "purpose": "hedging"}
    }
  ]
}` + "\n```"

func TestModelExtractorExtract(t *testing.T) {
	mock := &llm.Mock{Response: sampleOutput}
	ex := NewModelExtractor(mock, log.NewNop())

	res, err := ex.Extract(context.Background(), []byte("%PDF-1.7 fake"), Hints{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if !res.IsValid {
		t.Error("IsValid = false, want true")
	}
	if res.CollectionID != "fund-x" || res.DocumentID != "ips-2024" {
		t.Errorf("identity = %s/%s", res.CollectionID, res.DocumentID)
	}
	if res.EffectiveDate == nil || res.EffectiveDate.Format("2006-01-02") != "2024-03-01" {
		t.Errorf("EffectiveDate = %v", res.EffectiveDate)
	}
	if len(res.Rules) != 2 {
		t.Fatalf("rules = %d, want 2", len(res.Rules))
	}
	if res.Rules[0].RuleID != "V-C-3" {
		t.Errorf("rule 0 key = %q", res.Rules[0].RuleID)
	}
	// The second rule came back unkeyed and must get a derived key.
	want := RuleID("ips-2024", "C. Limits", "Derivatives may be used for hedging only.")
	if res.Rules[1].RuleID != want {
		t.Errorf("rule 1 key = %q, want derived %q", res.Rules[1].RuleID, want)
	}
	if res.Rules[1].StructuredData == nil {
		t.Error("rule 1 structured data missing")
	}

	reqs := mock.Requests()
	if len(reqs) != 1 {
		t.Fatalf("provider calls = %d", len(reqs))
	}
	if len(reqs[0].Blobs) != 1 || reqs[0].Blobs[0].MIMEType != "application/pdf" {
		t.Errorf("blobs = %+v", reqs[0].Blobs)
	}
}

func TestModelExtractorHintsOverride(t *testing.T) {
	mock := &llm.Mock{Response: sampleOutput}
	ex := NewModelExtractor(mock, log.NewNop())

	res, err := ex.Extract(context.Background(), []byte("pdf"), Hints{
		CollectionID: "fund-y",
		DocumentID:   "ips-custom",
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.CollectionID != "fund-y" {
		t.Errorf("CollectionID = %q, want hint override", res.CollectionID)
	}
	if res.DocumentID != "ips-custom" {
		t.Errorf("DocumentID = %q, want hint override", res.DocumentID)
	}
	// Names not overridden keep the model's values.
	if res.CollectionName != "Fund X" {
		t.Errorf("CollectionName = %q", res.CollectionName)
	}
}

func TestModelExtractorInvalidDocument(t *testing.T) {
	mock := &llm.Mock{Response: `{"is_valid": false, "validation_summary": "This is a restaurant menu.", "guidelines": []}`}
	ex := NewModelExtractor(mock, log.NewNop())

	res, err := ex.Extract(context.Background(), []byte("menu"), Hints{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.IsValid {
		t.Error("IsValid = true, want false")
	}
	if res.ValidationSummary == "" {
		t.Error("ValidationSummary empty")
	}
	if len(res.Rules) != 0 {
		t.Errorf("rules = %d, want 0", len(res.Rules))
	}
}

func TestModelExtractorBadDate(t *testing.T) {
	mock := &llm.Mock{Response: `{"is_valid": true, "doc_id": "d", "doc_date": "March 2024", "guidelines": []}`}
	ex := NewModelExtractor(mock, log.NewNop())

	res, err := ex.Extract(context.Background(), []byte("pdf"), Hints{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.EffectiveDate != nil {
		t.Errorf("EffectiveDate = %v, want nil for unparseable date", res.EffectiveDate)
	}
}

func TestModelExtractorMalformedOutput(t *testing.T) {
	mock := &llm.Mock{Response: "I could not process the document."}
	ex := NewModelExtractor(mock, log.NewNop())

	if _, err := ex.Extract(context.Background(), []byte("pdf"), Hints{}); err == nil {
		t.Error("expected error for output with no JSON object")
	}
}

func TestModelExtractorProviderError(t *testing.T) {
	boom := errors.New("quota exceeded")
	mock := &llm.Mock{Respond: func(llm.Request) (string, error) { return "", boom }}
	ex := NewModelExtractor(mock, log.NewNop())

	if _, err := ex.Extract(context.Background(), []byte("pdf"), Hints{}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped provider error", err)
	}
}
