package scraper

import (
	"errors"
	"testing"

	"github.com/use-agent/figscrape/models"
)

func TestNormalizeScale(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Premium Figure 1/7 Scale Complete Figure", "1/7"},
		{"1 / 8", "1/8"},
		{"Scale: 1/12 (approx.)", "1/12"},
		{"  Non-scale  ", "Non-scale"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeScale(tt.in); got != tt.want {
			t.Errorf("NormalizeScale(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

const fieldRowsHTML = `<html><body>
<div class="item-picture"><a class="main" href="/gallery/1"><img data-src="/upload/items/1.jpg"></a></div>
<div class="data-field"><div class="data-label">Origin</div><div class="data-value"><a><span>Vocaloid</span></a></div></div>
<div class="data-field"><div class="data-label">Company</div><div class="data-value"><a><span>Good Smile Company</span></a></div></div>
<div class="data-field"><div class="data-label">Character</div><div class="data-value"><a><span>Hatsune Miku</span></a></div></div>
<div class="item-scale">Scale <a>1/7</a></div>
</body></html>`

func TestExtract_FieldLayout(t *testing.T) {
	cfg := &models.ScrapeConfig{
		ImageSelector:        ".item-picture img",
		ManufacturerSelector: ".data-value a span",
		NameSelector:         ".data-value a span",
		ScaleSelector:        ".item-scale",
		FieldLayout:          &models.FieldLayout{Container: ".data-field", Label: ".data-label"},
	}

	got, err := extract(fieldRowsHTML, "https://myfigurecollection.net/item/1", cfg)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	want := models.ScrapedData{
		ImageURL:     "https://myfigurecollection.net/upload/items/1.jpg",
		Manufacturer: "Good Smile Company",
		Name:         "Hatsune Miku",
		Scale:        "1/7",
	}
	if *got != want {
		t.Errorf("extract = %+v, want %+v", *got, want)
	}
}

func TestExtract_FieldLayoutFallsBackToDirectSelection(t *testing.T) {
	cfg := &models.ScrapeConfig{
		ManufacturerSelector: ".data-value a span",
		FieldLayout:          &models.FieldLayout{Container: ".missing-row", Label: ".data-label"},
	}
	got, err := extract(fieldRowsHTML, "https://myfigurecollection.net/item/1", cfg)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got.Manufacturer != "Vocaloid" {
		t.Errorf("Manufacturer = %q, want first direct match", got.Manufacturer)
	}
}

func TestExtract_MissingElementsAreOmitted(t *testing.T) {
	cfg := &models.ScrapeConfig{
		ImageSelector: "img.nope",
		NameSelector:  "h1.nope",
		ScaleSelector: ".nope",
	}
	got, err := extract(`<html><body><p>nothing here</p></body></html>`, "https://example.com", cfg)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if *got != (models.ScrapedData{}) {
		t.Errorf("extract = %+v, want empty", *got)
	}
}

func TestExtract_ImageAttributeOrder(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"src wins", `<img class="i" src="a.jpg" data-src="b.jpg">`, "https://example.com/item/a.jpg"},
		{"data-src", `<img class="i" data-src="/b.jpg">`, "https://example.com/b.jpg"},
		{"href", `<a class="i" href="https://cdn.example.com/c.jpg">x</a>`, "https://cdn.example.com/c.jpg"},
		{"blank src skipped", `<img class="i" src="  " data-src="d.jpg">`, "https://example.com/item/d.jpg"},
		{"no attributes", `<img class="i">`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extract(tt.html, "https://example.com/item/1", &models.ScrapeConfig{ImageSelector: ".i"})
			if err != nil {
				t.Fatalf("extract: %v", err)
			}
			if got.ImageURL != tt.want {
				t.Errorf("ImageURL = %q, want %q", got.ImageURL, tt.want)
			}
		})
	}
}

func TestIsCritical(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"Some random error", false},
		{"Cannot read properties of null (reading 'textContent')", false},
		{"Evaluation failed: Timeout", true},
		{"Navigation timeout of 20000 ms exceeded", true},
		{"net::ERR_CONNECTION_REFUSED at https://example.com", true},
		{"Protocol error (Runtime.callFunctionOn): Target closed.", true},
		{"Browser has disconnected", true},
		{"HTTP 503 Service Unavailable", true},
		{"failed to launch browser: exec: not found", true},
		{"x509: certificate signed by unknown authority", true},
		{"context deadline exceeded", true},
		{"remote error: tls handshake failure", true},
		{"Cannot read properties of undefined (reading 'classList')", false},
	}
	for _, tt := range tests {
		if got := IsCritical(errors.New(tt.msg)); got != tt.want {
			t.Errorf("IsCritical(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
	if IsCritical(nil) {
		t.Error("IsCritical(nil) = true")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *models.ScrapeConfig
		wantErr bool
	}{
		{"nil", nil, true},
		{"empty", &models.ScrapeConfig{}, false},
		{"valid", &models.ScrapeConfig{NameSelector: "h1.title, .name", ImageSelector: "img[src]"}, false},
		{"bad selector", &models.ScrapeConfig{NameSelector: "div["}, true},
		{"bad layout", &models.ScrapeConfig{FieldLayout: &models.FieldLayout{Container: "a[href", Label: ".l"}}, true},
		{"negative wait", &models.ScrapeConfig{WaitTime: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && models.CodeOf(err) != models.ErrCodeInvalidInput {
				t.Errorf("code = %s, want %s", models.CodeOf(err), models.ErrCodeInvalidInput)
			}
		})
	}
}
