package config

import (
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Conversion.Quality != 80 {
		t.Errorf("Quality = %d, want 80", cfg.Conversion.Quality)
	}
	if cfg.Conversion.MaxWidth != 1920 {
		t.Errorf("MaxWidth = %d, want 1920", cfg.Conversion.MaxWidth)
	}
	if len(cfg.SupportedExtensions) != 3 {
		t.Errorf("SupportedExtensions = %v, want .jpg/.jpeg/.png", cfg.SupportedExtensions)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate, got %v", err)
	}
}

func TestValidate_Quality(t *testing.T) {
	tests := []struct {
		name    string
		quality int
		wantErr bool
	}{
		{"minimum", 1, false},
		{"default", 80, false},
		{"maximum", 100, false},
		{"zero is invalid", 0, true},
		{"negative is invalid", -5, true},
		{"above maximum is invalid", 101, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Conversion.Quality = tt.quality
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_Method(t *testing.T) {
	tests := []struct {
		name    string
		method  int
		wantErr bool
	}{
		{"fastest", 0, false},
		{"slowest", 6, false},
		{"negative is invalid", -1, true},
		{"above range is invalid", 7, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Conversion.Method = tt.method
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_MaxWidth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Conversion.MaxWidth = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject max_width 0")
	}
}

func TestValidate_LogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "loud"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject unknown log level")
	}
}

func TestValidate_NormalizesExtensions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SupportedExtensions = []string{"JPG", ".PNG", "jpeg"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	want := []string{".jpg", ".png", ".jpeg"}
	for i, ext := range cfg.SupportedExtensions {
		if ext != want[i] {
			t.Errorf("SupportedExtensions[%d] = %q, want %q", i, ext, want[i])
		}
	}
}

func TestIsSupportedExtension(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		ext  string
		want bool
	}{
		{".jpg", true},
		{".JPG", true},
		{".jpeg", true},
		{".png", true},
		{".webp", false},
		{".txt", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			if got := cfg.IsSupportedExtension(tt.ext); got != tt.want {
				t.Errorf("IsSupportedExtension(%q) = %v, want %v", tt.ext, got, tt.want)
			}
		})
	}
}
