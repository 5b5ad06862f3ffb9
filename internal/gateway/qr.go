package gateway

import (
	"encoding/base64"

	qrcode "github.com/skip2/go-qrcode"
)

// RenderQR encodes an EMV payload as a PNG data URI suitable for an <img>.
func RenderQR(payload string) (string, error) {
	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
