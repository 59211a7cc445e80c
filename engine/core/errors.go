package core

import (
	"errors"
)

var (
	ErrNoCompatibleAdapter  = errors.New("no compatible hardware adapter")
	ErrZeroDimension        = errors.New("width and height must be non-zero")
	ErrSwapchainOutOfDate   = errors.New("swapchain out of date")
	ErrInvalidRecorderState = errors.New("frame recorder in wrong state")
	ErrShaderCompile        = errors.New("shader compilation failed")
	ErrNotInitialized       = errors.New("not initialized")
	ErrDecode               = errors.New("decode failed")
	ErrCommandRecording     = errors.New("command recording failed")
	ErrUnknown              = errors.New("unknown")
)
