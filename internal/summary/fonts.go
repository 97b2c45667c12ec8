package summary

import (
	"os"
	"path/filepath"
	"runtime"
)

type fontSet struct {
	regular string
	bold    string
}

// fontCandidates lists (regular, bold) pairs in preference order. Hangul
// capable fonts come first so Korean ids and driver errors render.
func fontCandidates() []fontSet {
	if runtime.GOOS == "windows" {
		root := os.Getenv("WINDIR")
		if root == "" {
			root = `C:\Windows`
		}
		dir := filepath.Join(root, "Fonts")
		return []fontSet{
			{filepath.Join(dir, "malgun.ttf"), filepath.Join(dir, "malgunbd.ttf")},
			{filepath.Join(dir, "arial.ttf"), filepath.Join(dir, "arialbd.ttf")},
		}
	}
	return []fontSet{
		{"/usr/share/fonts/truetype/nanum/NanumGothic.ttf", "/usr/share/fonts/truetype/nanum/NanumGothicBold.ttf"},
		{"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf", "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf"},
		{"/usr/share/fonts/TTF/DejaVuSans.ttf", "/usr/share/fonts/TTF/DejaVuSans-Bold.ttf"},
	}
}

// locateFonts returns the first installed pair. A missing bold face falls
// back to the regular one. With nothing installed the first candidate is
// returned and font loading reports the error.
func locateFonts() fontSet {
	for _, fs := range fontCandidates() {
		if !exists(fs.regular) {
			continue
		}
		if !exists(fs.bold) {
			fs.bold = fs.regular
		}
		return fs
	}
	return fontCandidates()[0]
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
