package build

import "errors"

var (
	// ErrConfig reports a missing or empty descriptor.
	ErrConfig = errors.New("config error")
	// ErrIO reports a directory creation, removal or copy failure.
	ErrIO = errors.New("io error")
	// ErrRender reports a rendered manifest that is absent after rendering.
	ErrRender = errors.New("render error")
	// ErrSubprocess reports a non-zero exit from an external command.
	ErrSubprocess = errors.New("subprocess error")
	// ErrArtifactMissing reports a packaging tool that exited 0 without producing its artifact.
	ErrArtifactMissing = errors.New("artifact missing")
	// ErrRunInProgress reports another live run holding the source tree lock.
	ErrRunInProgress = errors.New("another run is in progress")
)
