package ritual

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
)

// BundleFolder is the directory inside the zip that holds the artifacts.
const BundleFolder = "necromancer_ritual_output"

// BundleName is the suggested download name of a bundle.
const BundleName = "ritual_artifacts.zip"

const bundleReadme = "The ritual is complete. These are the artifacts recovered from the void."

// Bundle writes the artifacts of a full ritual as a zip archive to w. Code
// files are named with the extension of the target language. Empty
// artifacts are left out; the README is always present.
func Bundle(w io.Writer, req Request, a Artifacts) error {
	ext := Extension(req.TargetLang)
	files := []struct {
		name, body string
	}{
		{"1_autopsy_report.md", a.Autopsy},
		{"2_resurrected." + ext, a.Resurrected},
		{"3_purified." + ext, a.Purified},
		{"4_bound_soul." + ext, a.Bound},
		{"README.txt", bundleReadme},
	}

	zw := zip.NewWriter(w)
	for _, f := range files {
		if f.body == "" {
			continue
		}
		fw, err := zw.Create(path.Join(BundleFolder, f.name))
		if err != nil {
			return fmt.Errorf("ritual: bundle %s: %w", f.name, err)
		}
		if _, err := io.WriteString(fw, f.body); err != nil {
			return fmt.Errorf("ritual: bundle %s: %w", f.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("ritual: bundle: %w", err)
	}
	return nil
}

// FileName is the download name of a single-mode result.
func FileName(mode Mode, targetLang string) string {
	switch mode {
	case ModeAutopsy:
		return "autopsy_report.txt"
	case ModeFullRitual:
		return BundleName
	default:
		return "resurrected_code." + Extension(targetLang)
	}
}
