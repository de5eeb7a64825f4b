package parser

import "strings"

// BlockSignal is a heuristic classification of a page that produced no
// listings. It only feeds diagnostics.
type BlockSignal int

const (
	BlockNone BlockSignal = iota
	BlockCaptcha
	BlockDenied
)

func (b BlockSignal) String() string {
	switch b {
	case BlockCaptcha:
		return "captcha"
	case BlockDenied:
		return "denied"
	default:
		return "none"
	}
}

func (b BlockSignal) Description() string {
	switch b {
	case BlockCaptcha:
		return "possible CAPTCHA or anti-bot measures detected"
	case BlockDenied:
		return "access appears to be blocked or denied"
	default:
		return "no blocking markers found"
	}
}

func DetectBlock(content string) BlockSignal {
	lower := strings.ToLower(content)

	if strings.Contains(lower, "captcha") || strings.Contains(lower, "robot") {
		return BlockCaptcha
	}
	if strings.Contains(lower, "access denied") || strings.Contains(lower, "blocked") {
		return BlockDenied
	}
	return BlockNone
}
