package validation

import (
	"net"
	"strings"
	"testing"
)

func TestValidateItem(t *testing.T) {
	long := strings.Repeat("x", MaxNameLength+1)

	tests := []struct {
		name    string
		in      ItemInput
		valid   bool
		wantMsg string
	}{
		{"name only", ItemInput{Name: "Lego Set"}, true, ""},
		{"with link", ItemInput{Name: "Lego Set", Link: "https://example.com/lego"}, true, ""},
		{"missing name", ItemInput{Link: "https://example.com"}, false, "Item name is required."},
		{"name too long", ItemInput{Name: long}, false, "Item name is too long."},
		{"notes too long", ItemInput{Name: "a", Notes: strings.Repeat("n", MaxTextLength+1)}, false, "Notes are too long."},
		{"bad link scheme", ItemInput{Name: "a", Link: "javascript:alert(1)"}, false, "URL must use http:// or https:// scheme"},
		{"link without host", ItemInput{Name: "a", Link: "https://"}, false, "URL must have a valid host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, msg := ValidateItem(tt.in)
			if valid != tt.valid || msg != tt.wantMsg {
				t.Errorf("ValidateItem(%+v) = (%v, %q), want (%v, %q)", tt.in, valid, msg, tt.valid, tt.wantMsg)
			}
		})
	}
}

func TestItemInput_Normalize(t *testing.T) {
	got := ItemInput{Name: "  Scarf ", Link: " https://example.com ", Notes: "\nblue\n"}.Normalize()
	want := ItemInput{Name: "Scarf", Link: "https://example.com", Notes: "blue"}
	if got != want {
		t.Errorf("Normalize() = %+v, want %+v", got, want)
	}
}

func TestValidateNote(t *testing.T) {
	if ok, _ := ValidateNote(""); !ok {
		t.Error("empty note should be valid")
	}
	if ok, _ := ValidateNote("ordered, arrives 12/20"); !ok {
		t.Error("short note should be valid")
	}
	if ok, msg := ValidateNote(strings.Repeat("n", MaxTextLength+1)); ok || msg != "Note is too long." {
		t.Errorf("ValidateNote(long) = (%v, %q)", ok, msg)
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		valid   bool
		wantMsg string
	}{
		{"valid https", "https://example.com", true, ""},
		{"valid http", "http://example.com", true, ""},
		{"valid with path", "https://example.com/path/to/page", true, ""},
		{"valid with query", "https://example.com?foo=bar", true, ""},
		{"valid with port", "https://example.com:8080", true, ""},
		{"empty string", "", false, "URL is required"},
		{"javascript scheme", "javascript:alert(1)", false, "URL must use http:// or https:// scheme"},
		{"data scheme", "data:text/html,<script>alert(1)</script>", false, "URL must use http:// or https:// scheme"},
		{"vbscript scheme", "vbscript:msgbox", false, "URL must use http:// or https:// scheme"},
		{"file scheme", "file:///etc/passwd", false, "URL must use http:// or https:// scheme"},
		{"ftp scheme", "ftp://example.com", false, "URL must use http:// or https:// scheme"},
		{"no scheme", "example.com", false, "URL must use http:// or https:// scheme"},
		{"relative url", "/path/to/page", false, "URL must use http:// or https:// scheme"},
		{"uppercase scheme", "HTTPS://example.com", true, ""},
		{"mixed case scheme", "HtTpS://example.com", true, ""},
		{"scheme only", "https://", false, "URL must have a valid host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, msg := ValidateURL(tt.url)
			if valid != tt.valid {
				t.Errorf("ValidateURL(%q) valid = %v, want %v", tt.url, valid, tt.valid)
			}
			if !valid && msg != tt.wantMsg {
				t.Errorf("ValidateURL(%q) msg = %q, want %q", tt.url, msg, tt.wantMsg)
			}
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	blocked := []string{
		"127.0.0.1", "::1", "10.1.2.3", "172.16.0.1", "172.31.255.255", "192.168.1.10",
		"169.254.1.1", "fe80::1", "169.254.169.254", "168.63.129.16", "0.0.0.0", "::",
	}
	allowed := []string{"8.8.8.8", "1.1.1.1", "203.0.113.1", "2001:4860:4860::8888", "172.15.255.255", "172.32.0.0"}

	for _, ip := range blocked {
		if !IsPrivateIP(net.ParseIP(ip)) {
			t.Errorf("IsPrivateIP(%s) = false, want true", ip)
		}
	}
	for _, ip := range allowed {
		if IsPrivateIP(net.ParseIP(ip)) {
			t.Errorf("IsPrivateIP(%s) = true, want false", ip)
		}
	}
	if IsPrivateIP(nil) {
		t.Error("IsPrivateIP(nil) = true, want false")
	}
}

func TestValidateURLForHealthCheck(t *testing.T) {
	const private = "URL points to a private or reserved IP address"

	tests := []struct {
		url     string
		wantMsg string
	}{
		{"", "URL is required"},
		{"ftp://example.com/list.txt", "URL must use http:// or https:// scheme"},
		{"http://127.0.0.1:8080/wishlist", private},
		{"http://10.0.0.1", private},
		{"http://192.168.1.1/admin", private},
		{"http://169.254.169.254/latest/meta-data/", private},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			valid, msg := ValidateURLForHealthCheck(tt.url)
			if valid {
				t.Fatalf("ValidateURLForHealthCheck(%q) = valid, want rejected", tt.url)
			}
			if msg != tt.wantMsg {
				t.Errorf("ValidateURLForHealthCheck(%q) msg = %q, want %q", tt.url, msg, tt.wantMsg)
			}
		})
	}
}
