package product

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestSourceID_Valid(t *testing.T) {
	if !SourceCellphones.Valid() || !SourceTheGioiDiDong.Valid() {
		t.Fatal("expected registered sources to be valid")
	}
	if SourceID("amazon").Valid() {
		t.Error("expected unknown source to be invalid")
	}
	if SourceID("").Valid() {
		t.Error("expected empty source to be invalid")
	}
}

func TestProduct_Validate(t *testing.T) {
	valid := Product{ID: "iphone-15", Name: "Apple iPhone 15", URL: "https://cellphones.com.vn/iphone-15.html"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := map[string]Product{
		"missing id":     {Name: "x", URL: "https://x"},
		"missing name":   {ID: "x", URL: "https://x"},
		"missing url":    {ID: "x", Name: "x"},
		"negative price": {ID: "x", Name: "x", URL: "https://x", Price: Price{Current: -1}},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			if err := p.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}

	var nilProduct *Product
	if err := nilProduct.Validate(); err == nil {
		t.Error("expected error for nil product")
	}
}

func TestResult_JSONShape(t *testing.T) {
	ok := Succeeded(&Product{ID: "a", Name: "b", URL: "c", ScrapedAt: time.Unix(0, 0).UTC()}, "Product scraped successfully")
	data, err := json.Marshal(ok)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"success":true`) || strings.Contains(s, `"error"`) {
		t.Errorf("unexpected success shape: %s", s)
	}
	if !strings.Contains(s, `"scrapedAt"`) {
		t.Errorf("expected camelCase scrapedAt field: %s", s)
	}

	failed := Failed("Scraping failed")
	data, _ = json.Marshal(failed)
	s = string(data)
	if !strings.Contains(s, `"success":false`) || strings.Contains(s, `"data"`) {
		t.Errorf("unexpected failure shape: %s", s)
	}
}
