//go:build audiodebug

// This file is conditionally compiled when the build tag 'audiodebug' is set
// to include per-frame trace statements in the audio paths.

package voicechat

const addDebugTrace = true
