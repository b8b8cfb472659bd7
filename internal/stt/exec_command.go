package stt

import "os/exec"

// Indirection so tests can stub the external transcription process.
var execCommand = exec.CommandContext
