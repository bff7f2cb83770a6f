package charset

import "testing"

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		coding  string
		in      []byte
		want    string
		wantErr bool
	}{
		{"default utf-8", "", []byte("Käse"), "Käse", false},
		{"explicit utf-8", "utf-8", []byte("Käse"), "Käse", false},
		{"latin-1", "latin-1", []byte{'K', 0xE4, 's', 'e'}, "Käse", false},
		{"iso alias", "iso-8859-1", []byte{0xDF}, "ß", false},
		{"invalid utf-8", "", []byte{0xFF, 0xFE}, "", true},
		{"unknown coding", "klingon", []byte("x"), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.coding, tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode(%q) error = %v, wantErr %v", tt.coding, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Decode(%q) = %q, want %q", tt.coding, got, tt.want)
			}
		})
	}
}

func TestDecodeFile(t *testing.T) {
	in := append([]byte(".. -*- coding: latin-1 -*-\n"), 0xE4)
	got, err := DecodeFile(in)
	if err != nil {
		t.Fatal(err)
	}
	if want := ".. -*- coding: latin-1 -*-\nä"; got != want {
		t.Errorf("DecodeFile = %q, want %q", got, want)
	}
}

func TestDecodeFileDefaultsToUTF8(t *testing.T) {
	got, err := DecodeFile([]byte("plain text, no header"))
	if err != nil {
		t.Fatal(err)
	}
	if got != "plain text, no header" {
		t.Errorf("DecodeFile = %q", got)
	}
}
