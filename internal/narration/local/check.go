package local

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
)

var installGuidance = map[string]string{
	"piper":    "Install Piper from https://github.com/rhasspy/piper/releases and download a voice model (.onnx) from https://huggingface.co/rhasspy/piper-voices",
	"gtts-cli": "Install gTTS with: pip install gTTS",
	"ffmpeg":   "Install ffmpeg with your package manager, for example: apt install ffmpeg",
}

// MissingBinaryError reports a helper program that can't be found.
type MissingBinaryError struct {
	Name     string
	Guidance string
	Err      error
}

func (e *MissingBinaryError) Error() string {
	msg := fmt.Sprintf("%s not found in PATH: %v", e.Name, e.Err)
	if e.Guidance != "" {
		msg += "\n\n" + e.Guidance
	}
	return msg
}

func (e *MissingBinaryError) Unwrap() error {
	return e.Err
}

// Binaries lists the programs s runs.
func Binaries(s Synthesizer) []string {
	switch s := s.(type) {
	case *Piper:
		return []string{s.binary}
	case *GTTS:
		return []string{s.gttsBinary, s.ffmpegBinary}
	}
	return nil
}

// CheckBinaries verifies that every named program can be run.
func CheckBinaries(names ...string) error {
	var errs []error
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			errs = append(errs, &MissingBinaryError{
				Name:     name,
				Guidance: installGuidance[filepath.Base(name)],
				Err:      err,
			})
		}
	}
	return errors.Join(errs...)
}
