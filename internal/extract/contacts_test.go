package extract

import (
	"testing"
)

func TestContactExtractor_Anchors(t *testing.T) {
	extractor := NewContactExtractor()

	page := `
	<html>
	<body>
		<a href="mailto:Sales@Shop.example?subject=hi">Email us</a>
		<a href="tel:+92 300 1234567">Call</a>
		<a href="/about">About</a>
		<a href="https://facebook.com/shop">Facebook</a>
		<a href="javascript:void(0)">noop</a>
	</body>
	</html>
	`

	contacts, err := extractor.Extract(page, "https://shop.example/")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(contacts.Emails) != 1 || contacts.Emails[0] != "sales@shop.example" {
		t.Errorf("Expected one lowercased email, got %v", contacts.Emails)
	}
	if len(contacts.Phones) != 1 || contacts.Phones[0] != "+923001234567" {
		t.Errorf("Expected one cleaned phone, got %v", contacts.Phones)
	}
	if len(contacts.Links) != 1 || contacts.Links[0] != "https://facebook.com/shop" {
		t.Errorf("Expected only the off-site link, got %v", contacts.Links)
	}
	if contacts.Empty() {
		t.Error("Expected contacts to be non-empty")
	}
}

func TestContactExtractor_VisibleText(t *testing.T) {
	extractor := NewContactExtractor()

	page := `
	<html>
	<head><script>var support = "hidden@tracker.example";</script></head>
	<body>
		<p>WhatsApp: 0300-1234567 or write to orders@shop.example</p>
	</body>
	</html>
	`

	contacts, err := extractor.Extract(page, "https://shop.example/")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(contacts.Emails) != 1 || contacts.Emails[0] != "orders@shop.example" {
		t.Errorf("Expected script text to be ignored, got %v", contacts.Emails)
	}
	if len(contacts.Phones) != 1 || contacts.Phones[0] != "03001234567" {
		t.Errorf("Expected phone from text, got %v", contacts.Phones)
	}
}

func TestContactExtractor_NothingFound(t *testing.T) {
	contacts, err := NewContactExtractor().Extract(`<p>Welcome to our store</p>`, "https://shop.example/")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !contacts.Empty() {
		t.Errorf("Expected no contacts, got %+v", contacts)
	}
}

func TestExtractText_DropsShortNumbers(t *testing.T) {
	contacts := ExtractText("Order 2024-11 shipped in 3 days. Call +44 20 7946 0958.")
	if len(contacts.Phones) != 1 || contacts.Phones[0] != "+442079460958" {
		t.Errorf("Expected only the real phone number, got %v", contacts.Phones)
	}
}

func TestExtractText_Limit(t *testing.T) {
	text := ""
	for i := 0; i < 15; i++ {
		text += " user" + string(rune('a'+i)) + "@shop.example"
	}
	contacts := ExtractText(text)
	if len(contacts.Emails) != maxPerKind {
		t.Errorf("Expected %d emails, got %d", maxPerKind, len(contacts.Emails))
	}
}
