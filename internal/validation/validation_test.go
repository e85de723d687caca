package validation

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"simple file", "novel.tsv", nil},
		{"nested path", "corpus/novel.tsv", nil},
		{"empty", "", ErrEmptyPath},
		{"parent escape", "../etc/passwd", ErrPathTraversal},
		{"hidden escape", "corpus/../../etc", ErrPathTraversal},
		{"absolute", "/etc/passwd", ErrPathTraversal},
		{"too long", strings.Repeat("a", MaxPathLength+1), ErrPathTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SanitizePath("/data", tt.path)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SanitizePath(%q) error = %v, want %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestValidateFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		wantErr  bool
	}{
		{"plain", "novel.tsv", false},
		{"unicode", "ged_roman.tsv", false},
		{"empty", "", true},
		{"dot", ".", true},
		{"dotdot", "..", true},
		{"slash", "a/b", true},
		{"backslash", `a\b`, true},
		{"null byte", "a\x00b", true},
		{"control char", "a\tb", true},
		{"leading hyphen", "-rf", true},
		{"too long", strings.Repeat("x", MaxFilenameLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilename(tt.filename)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFilename(%q) error = %v, wantErr %v", tt.filename, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"novel.tsv", "novel.tsv"},
		{"a/b.xml", "a_b.xml"},
		{"  spaced  ", "spaced"},
		{"--flags", "flags"},
	}
	for _, tt := range tests {
		got, err := SanitizeFilename(tt.in)
		if err != nil {
			t.Errorf("SanitizeFilename(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := SanitizeFilename(""); err == nil {
		t.Error("empty filename was accepted")
	}
}

func TestCheckSize(t *testing.T) {
	if err := CheckSize(1024); err != nil {
		t.Errorf("small size rejected: %v", err)
	}
	if err := CheckSize(MaxFileSize + 1); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("oversize error = %v, want ErrFileTooLarge", err)
	}
}

func TestValidateFileType(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  []byte
		want     FileType
		wantErr  bool
	}{
		{
			name:     "conll text",
			filename: "novel.tsv",
			content:  []byte("tok0\t(1\ntok1\t1)\n"),
			want:     FileTypeText,
		},
		{
			name:     "tei xml",
			filename: "collection.xml",
			content:  []byte(`<?xml version="1.0"?><TEI/>`),
			want:     FileTypeXML,
		},
		{
			name:     "gzip",
			filename: "novel.tsv.gz",
			content:  []byte{0x1f, 0x8b, 0x08, 0x00},
			want:     FileTypeGzip,
		},
		{
			name:     "xz",
			filename: "novel.tsv.xz",
			content:  []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00, 0x00},
			want:     FileTypeXZ,
		},
		{
			name:     "sqlite",
			filename: "annotations.db",
			content:  append([]byte("SQLite format 3"), 0x00),
			want:     FileTypeSQLite,
		},
		{
			name:     "binary claiming text",
			filename: "novel.tsv",
			content:  []byte{0x00, 0x01, 0x02, 0x03},
			wantErr:  true,
		},
		{
			name:     "gzip claiming xml",
			filename: "collection.xml",
			content:  []byte{0x1f, 0x8b, 0x08, 0x00},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateFileType(bytes.NewReader(tt.content), tt.filename)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateFileType error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ValidateFileType = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsPathSafe(t *testing.T) {
	if !IsPathSafe("/data", "novel.tsv") {
		t.Error("safe path rejected")
	}
	if IsPathSafe("/data", "../secret") {
		t.Error("traversal accepted")
	}
}
