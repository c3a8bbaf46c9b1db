// Package qrcode renders verification URLs as PNG data URIs.
package qrcode

import (
	"encoding/base64"
	"errors"
	"fmt"

	goqrcode "github.com/skip2/go-qrcode"
)

const DefaultSize = 256

type Encoder struct {
	size  int
	level goqrcode.RecoveryLevel
}

func NewEncoder(size int) *Encoder {
	if size <= 0 {
		size = DefaultSize
	}
	return &Encoder{size: size, level: goqrcode.Medium}
}

// Encode returns content as a base64 PNG data URI.
func (e *Encoder) Encode(content string) (string, error) {
	if content == "" {
		return "", errors.New("qrcode: empty content")
	}
	png, err := goqrcode.Encode(content, e.level, e.size)
	if err != nil {
		return "", fmt.Errorf("qrcode: encode: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
