package qrgen

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/skip2/go-qrcode"
)

// QRGenerator renders the entry pass for a sold ticket. The embedded payload
// is AES-GCM encrypted so gate scanners can verify it offline without the
// ticket id being forgeable.
type QRGenerator struct {
	secret []byte
}

func NewQRGenerator(secret string) *QRGenerator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &QRGenerator{secret: hashed[:]}
}

type passPayload struct {
	TicketID     string `json:"ticket_id"`
	OrderID      string `json:"order_id"`
	TicketNumber string `json:"ticket_number"`
}

// GenerateTicketPass returns the PNG bytes of the QR code for one sold ticket.
func (q *QRGenerator) GenerateTicketPass(ticketID, orderID, ticketNumber string) ([]byte, error) {
	data, err := json.Marshal(passPayload{
		TicketID:     ticketID,
		OrderID:      orderID,
		TicketNumber: ticketNumber,
	})
	if err != nil {
		return nil, err
	}

	encrypted, err := encryptAES(data, q.secret)
	if err != nil {
		return nil, err
	}

	return qrcode.Encode(encrypted, qrcode.Medium, 256)
}

// FileKey is the storage key under which a ticket pass is filed.
func FileKey(orderID, ticketID string) string {
	return fmt.Sprintf("passes/%s/%s.png", orderID, ticketID)
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, data, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}
