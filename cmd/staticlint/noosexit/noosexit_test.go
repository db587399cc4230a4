package noosexit

import (
	"testing"

	"golang.org/x/tools/go/analysis/analysistest"
)

func TestAnalyzer(t *testing.T) {
	analysistest.Run(t, analysistest.TestData(), Analyzer, "a")
}

func TestIsGoBuildCacheFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{path: "/home/u/.cache/go-build/ab/abcdef-d", want: true},
		{path: `C:\Users\u\AppData\Local\go-build\ab\x`, want: true},
		{path: "/src/blogshelf/cmd/blogshelf/main.go", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := isGoBuildCacheFile(tt.path); got != tt.want {
				t.Errorf("isGoBuildCacheFile(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
