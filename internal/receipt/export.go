package receipt

import (
	"encoding/json"
	"fmt"

	"github.com/skip2/go-qrcode"

	"github.com/mmeshcher/uc-storefront/internal/proof"
)

// QRExporter выгружает чек в PNG с QR-кодом.
type QRExporter struct {
	size  int
	level qrcode.RecoveryLevel
}

// NewQRExporter создаёт экспортёр. level принимает значения L, M, Q, H.
func NewQRExporter(size int, level string) *QRExporter {
	var l qrcode.RecoveryLevel
	switch level {
	case "L":
		l = qrcode.Low
	case "Q":
		l = qrcode.High
	case "H":
		l = qrcode.Highest
	default:
		l = qrcode.Medium
	}
	if size <= 0 {
		size = 256
	}
	return &QRExporter{size: size, level: l}
}

type qrPayload struct {
	OrderID  string `json:"orderId"`
	Number   string `json:"receiptNumber"`
	PlayerID string `json:"playerId"`
	Units    int64  `json:"units"`
	Total    string `json:"total"`
	IssuedAt string `json:"issuedAt"`
}

// Export возвращает файл Receipt_<orderId>.png.
func (e *QRExporter) Export(r Receipt) (proof.Artifact, error) {
	data, err := json.Marshal(qrPayload{
		OrderID:  r.OrderID,
		Number:   r.Number,
		PlayerID: r.PlayerID,
		Units:    r.Units,
		Total:    r.TotalText,
		IssuedAt: r.IssuedAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
	if err != nil {
		return proof.Artifact{}, fmt.Errorf("failed to marshal receipt: %w", err)
	}

	code, err := qrcode.New(string(data), e.level)
	if err != nil {
		return proof.Artifact{}, fmt.Errorf("failed to create QR code: %w", err)
	}

	png, err := code.PNG(e.size)
	if err != nil {
		return proof.Artifact{}, fmt.Errorf("failed to generate PNG: %w", err)
	}

	return proof.Artifact{
		Name:        "Receipt_" + r.OrderID + ".png",
		ContentType: "image/png",
		Data:        png,
	}, nil
}
