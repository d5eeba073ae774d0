package entity

import (
	"fmt"
	"strconv"
	"strings"
)

type Size struct {
	Width  int
	Height int
}

var DefaultSize = Size{Width: 1024, Height: 1024}

// ParseSize accepts "1024x1024", "1024*1024" and "1024X1024".
func ParseSize(s string) (Size, error) {
	s = strings.TrimSpace(s)
	sep := strings.IndexAny(s, "xX*")
	if sep <= 0 || sep == len(s)-1 {
		return Size{}, fmt.Errorf("invalid size %q: expected WIDTHxHEIGHT", s)
	}

	w, err := strconv.Atoi(s[:sep])
	if err != nil {
		return Size{}, fmt.Errorf("invalid size width %q: %w", s[:sep], err)
	}
	h, err := strconv.Atoi(s[sep+1:])
	if err != nil {
		return Size{}, fmt.Errorf("invalid size height %q: %w", s[sep+1:], err)
	}
	if w <= 0 || h <= 0 {
		return Size{}, fmt.Errorf("invalid size %q: dimensions must be positive", s)
	}
	return Size{Width: w, Height: h}, nil
}

func (s Size) IsZero() bool {
	return s.Width == 0 && s.Height == 0
}

// Format joins the dimensions with sep; DashScope wants "*", OpenAI-style APIs want "x".
func (s Size) Format(sep string) string {
	return strconv.Itoa(s.Width) + sep + strconv.Itoa(s.Height)
}

func (s Size) String() string {
	return s.Format("x")
}
