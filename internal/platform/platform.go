// Package platform classifies product URLs into the supported shopping sites.
package platform

import (
	"strings"
)

type Platform string

const (
	Musinsa      Platform = "musinsa"
	TwentyNineCM Platform = "29cm"
	Zigzag       Platform = "zigzag"
	Unknown      Platform = "unknown"
)

type rule struct {
	platform Platform
	fragment string
	name     string
}

// Checked in order; the first matching fragment wins.
var rules = []rule{
	{Musinsa, "musinsa.com", "무신사"},
	{TwentyNineCM, "29cm.co.kr", "29CM"},
	{Zigzag, "zigzag.kr", "지그재그"},
}

// Detect returns the platform whose domain fragment occurs in rawURL, or
// Unknown when none does.
func Detect(rawURL string) Platform {
	for _, r := range rules {
		if strings.Contains(rawURL, r.fragment) {
			return r.platform
		}
	}
	return Unknown
}

// Supported lists the platforms in detection order.
func Supported() []Platform {
	out := make([]Platform, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.platform)
	}
	return out
}

func (p Platform) String() string {
	return string(p)
}

func (p Platform) IsSupported() bool {
	return p != Unknown && p.DisplayName() != ""
}

// DisplayName is the user facing shop name.
func (p Platform) DisplayName() string {
	for _, r := range rules {
		if r.platform == p {
			return r.name
		}
	}
	return ""
}

// Parse maps a platform identifier back to its constant.
func Parse(s string) Platform {
	for _, r := range rules {
		if strings.EqualFold(string(r.platform), s) {
			return r.platform
		}
	}
	return Unknown
}
