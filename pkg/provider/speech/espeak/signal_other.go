//go:build !unix

package espeak

import (
	"os"

	"github.com/MrWong99/necromancer/pkg/provider/speech"
)

func suspend(*os.Process) error { return speech.ErrUnsupported }

func resume(*os.Process) error { return speech.ErrUnsupported }
