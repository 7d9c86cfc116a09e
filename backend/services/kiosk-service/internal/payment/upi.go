package payment

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const defaultQRSize = 256

// Code is a scannable payment request.
type Code struct {
	URI       string `json:"uri"`
	QRDataURI string `json:"qr"`
	Amount    int    `json:"amount"`
}

// Generator turns an amount into a payment code.
type Generator interface {
	Generate(amount int) (Code, error)
}

// UPIConfig describes the payee.
type UPIConfig struct {
	PayeeVPA  string
	PayeeName string
	Note      string
	QRSize    int
}

// UPIGenerator builds upi://pay deep links and renders them as QR PNGs.
type UPIGenerator struct {
	cfg UPIConfig
}

// NewUPIGenerator validates the payee and returns a generator.
func NewUPIGenerator(cfg UPIConfig) (*UPIGenerator, error) {
	if strings.TrimSpace(cfg.PayeeVPA) == "" {
		return nil, errors.New("payment: payee vpa is required")
	}
	if cfg.QRSize <= 0 {
		cfg.QRSize = defaultQRSize
	}
	return &UPIGenerator{cfg: cfg}, nil
}

// Link returns the deep link for amount.
func (g *UPIGenerator) Link(amount int) string {
	return fmt.Sprintf("upi://pay?pa=%s&pn=%s&am=%d&tn=%s",
		g.cfg.PayeeVPA,
		url.QueryEscape(g.cfg.PayeeName),
		amount,
		url.QueryEscape(g.cfg.Note),
	)
}

// Generate implements Generator.
func (g *UPIGenerator) Generate(amount int) (Code, error) {
	if amount < 0 {
		return Code{}, fmt.Errorf("payment: negative amount %d", amount)
	}
	link := g.Link(amount)
	png, err := qrcode.Encode(link, qrcode.Medium, g.cfg.QRSize)
	if err != nil {
		return Code{}, fmt.Errorf("payment: encode qr: %w", err)
	}
	return Code{
		URI:       link,
		QRDataURI: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		Amount:    amount,
	}, nil
}
