package challenge

import (
	"math"
	"testing"
)

var cfTitle = []string{"Just a moment"}

func TestDetect(t *testing.T) {
	tests := []struct {
		name  string
		title string
		body  string
		want  bool
	}{
		{"exact title", "Just a moment...", "", true},
		{"typo in title", "Jst a moment...", "", true},
		{"case and whitespace noise", "  JUST   a\n\tMOMENT... ", "", true},
		{"normal title", "Welcome to our website", "", false},
		{"fragments", "Just", "moment", false},
		{"empty", "", "", false},
		{"whitespace only", "   ", "\n\t", false},
		{"cloudflare body", "example.com", "Checking if the site connection is secure\nexample.com needs to review the security of your connection before proceeding.\nRay ID: 8a1b2c3d4e5f", true},
		{"french title with dots", "Un instant...", "", true},
		{"german title", "Einen Moment bitte", "", true},
		{"japanese title", "しばらくお待ちください", "", true},
		{"russian body", "", "Проверка безопасности подключения к сайту", true},
		{"product page", "Hatsune Miku 1/7 Scale Figure | MyFigureCollection.net", "Company Good Smile Company Character Hatsune Miku Scale 1/7", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(tt.title, tt.body, cfTitle, nil)
			if got != tt.want {
				t.Errorf("Detect(%q, %q) = %v, want %v", tt.title, tt.body, got, tt.want)
			}
		})
	}
}

func TestDetect_CallerBodyPatterns(t *testing.T) {
	body := "Our custom shield is inspecting your request"
	if Detect("Shop", body, nil, nil) {
		t.Fatal("unexpected match without caller patterns")
	}
	if !Detect("Shop", body, nil, []string{"custom shield is inspecting"}) {
		t.Error("caller body pattern should match")
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 1},
		{"abc", "abc", 1},
		{"abc", "", 0},
		{"jst a moment...", "just a moment...", 0.9375},
		{"kitten", "sitting", 1 - 3.0/7.0},
		{"請稍候", "請稍等", 1 - 1.0/3.0},
	}
	for _, tt := range tests {
		got := Similarity(tt.a, tt.b)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestMatches_LengthShortCircuit(t *testing.T) {
	// A long body can never be similar enough to a short pattern as a
	// whole string; only containment applies.
	body := "lorem ipsum dolor sit amet consectetur adipiscing elit sed do eiusmod"
	if Matches(body, "just a moment", BodyThreshold) {
		t.Error("long unrelated body should not match")
	}
	if !Matches(body+" just  a MOMENT", "Just a moment", BodyThreshold) {
		t.Error("contained pattern should match")
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize("  Checking\tYOUR \n\n browser ")
	if got != "checking your browser" {
		t.Errorf("Normalize = %q", got)
	}
}

func TestContainsAny(t *testing.T) {
	if !ContainsAny("Just  a moment...", cfTitle) {
		t.Error("expected containment")
	}
	if ContainsAny("Product page", cfTitle) {
		t.Error("unexpected containment")
	}
	if ContainsAny("", []string{""}) {
		t.Error("empty text never contains anything")
	}
	if ContainsAny("anything", []string{"", "  "}) {
		t.Error("blank patterns never match")
	}
}
