//go:build !audiodebug

package voicechat

const addDebugTrace = false
